package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"finwise/internal/auth"
	"finwise/internal/coach"
	"finwise/internal/finance"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCoach(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &in); err != nil || strings.TrimSpace(in.Message) == "" {
		writeError(w, http.StatusBadRequest, "Missing message")
		return
	}
	if !s.coach.Configured() {
		writeJSON(w, http.StatusOK, map[string]any{"reply": coach.NotConfiguredReply})
		return
	}
	reply, err := s.coach.Complete(r.Context(), in.Message)
	if err != nil {
		details := err.Error()
		var perr *coach.ProviderError
		if errors.As(err, &perr) {
			details = perr.Body
		}
		s.log.Warn("coach provider failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "AI provider error", "details": details})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in auth.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.auth.Signup(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.touch(r.Context(), sess.User.Email)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.touch(r.Context(), sess.User.Email)
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	sess, err := s.auth.Demo(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.touch(r.Context(), sess.User.Email)
	writeJSON(w, http.StatusOK, sess)
}

// touch loads the user's state and bumps the login streak. Failures are
// logged and do not fail the login.
func (s *Server) touch(ctx context.Context, email string) {
	user, err := s.auth.User(ctx, email)
	if err != nil {
		s.log.Warn("touch: load user", "user", email, "err", err)
		return
	}
	store, err := s.hub.Open(ctx, profileFor(user))
	if err != nil {
		s.log.Warn("touch: open state", "user", email, "err", err)
		return
	}
	if _, err := store.Touch(ctx); err != nil {
		s.log.Warn("touch: persist", "user", email, "err", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	st, err := store.Touch(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in finance.OnboardingInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := store.CompleteOnboarding(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := s.auth.MarkOnboarded(r.Context(), store.Email()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in finance.AccountInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acc, err := store.AddAccount(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var patch finance.AccountPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := store.UpdateAccount(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.FinancialHub)
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	st, err := store.RemoveAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.FinancialHub)
}

func (s *Server) handleSetPrimary(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	st, err := store.SetPrimaryAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.FinancialHub)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("account_id"))
	if id == "" {
		id = store.Snapshot().FinancialHub.PrimaryAccountID
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "balance": store.AccountBalance(id)})
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in finance.TransactionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	txn, err := store.AddTransaction(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in finance.IncomeInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	txn, err := store.AddIncome(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in finance.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	goal, err := store.AddGoal(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var patch finance.GoalPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := store.UpdateGoal(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": st.Goals})
}

func (s *Server) handleRemoveGoal(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	st, err := store.RemoveGoal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": st.Goals})
}

func (s *Server) handleCIBIL(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in struct {
		Reason finance.CIBILReason `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cibil, err := store.UpdateCIBIL(r.Context(), in.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cibil)
}

func (s *Server) handleXP(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in struct {
		Amount int    `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := store.AddXP(r.Context(), in.Amount, in.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in finance.BadgeInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	badge, err := store.AddBadge(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, badge)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	added, err := store.SendCoachMessage(r.Context(), in.Message, finance.RoleUser)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": added})
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, store.MonthlySummary())
}

func (s *Server) handleLessons(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	completed := store.Snapshot().Progress.LessonsCompleted
	type row struct {
		finance.Lesson
		Completed bool `json:"completed"`
	}
	lessons := store.Lessons()
	out := make([]row, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, row{Lesson: l, Completed: containsString(completed, l.ID)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"lessons": out})
}

func (s *Server) handleLesson(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	lesson, found := store.Lesson(chi.URLParam(r, "id"))
	if !found {
		writeDomainError(w, finance.ErrUnknownLesson)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (s *Server) handleLessonAttempt(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in struct {
		Answers map[string]int `json:"answers"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := store.CompleteLesson(r.Context(), finance.LessonAttempt{LessonID: chi.URLParam(r, "id"), Answers: in.Answers})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecordSimulation(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	var in finance.SimulationResult
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.ReportID == "" {
		in.ReportID = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}
	rec, err := store.RecordSimulation(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": finance.Leaderboard(store.Snapshot().User)})
}
