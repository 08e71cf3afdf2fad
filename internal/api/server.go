package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finwise/internal/auth"
	"finwise/internal/coach"
	"finwise/internal/config"
	"finwise/internal/finance"
	"finwise/internal/market"
	"finwise/internal/scenario"
	"finwise/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

const sweepInterval = time.Minute

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	auth     *auth.Service
	hub      *finance.Hub
	coach    *coach.Remote
	sessions *registry
	mux      *chi.Mux

	stopSweep context.CancelFunc
	sweepDone chan struct{}
}

func New(cfg config.APIConfig, logger *slog.Logger, authSvc *auth.Service, hub *finance.Hub, remote *coach.Remote) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.FinishedTTL <= 0 {
		cfg.FinishedTTL = 15 * time.Minute
	}
	if cfg.StoreIdleTTL <= 0 {
		cfg.StoreIdleTTL = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		log:       logger,
		auth:      authSvc,
		hub:       hub,
		coach:     remote,
		sessions:  newRegistry(),
		mux:       chi.NewRouter(),
		stopSweep: cancel,
		sweepDone: make(chan struct{}),
	}
	s.routes()
	go s.sweepLoop(ctx)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close stops the sweeper and every running market session.
func (s *Server) Close() {
	s.stopSweep()
	<-s.sweepDone
	s.sessions.closeAll()
}

func (s *Server) sweepLoop(ctx context.Context) {
	defer close(s.sweepDone)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep drops stale simulator sessions and idle user stores.
func (s *Server) sweep(now time.Time) {
	games, markets := s.sessions.sweep(now.Add(-s.cfg.SessionTTL), now.Add(-s.cfg.FinishedTTL))
	stores := s.hub.EvictIdle(now.Add(-s.cfg.StoreIdleTTL))
	if games+markets+stores > 0 {
		s.log.Info("sweep", "games", games, "markets", markets, "stores", stores)
	}
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.cfg.OTelEnabled {
		r.Use(telemetry.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.cors)
		r.Get("/ping", s.handlePing)
		r.With(middleware.Timeout(60*time.Second)).Post("/coach", s.handleCoach)

		r.Route("/v1", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))
				r.Post("/auth/signup", s.handleSignup)
				r.Post("/auth/login", s.handleLogin)
				r.Post("/auth/demo", s.handleDemo)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				// The stream outlives any request timeout.
				r.Get("/market/sessions/{id}/stream", s.handleMarketStream)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(60 * time.Second))
					r.Get("/state", s.handleState)
					r.Post("/onboarding", s.handleOnboarding)

					r.Post("/accounts", s.handleAddAccount)
					r.Patch("/accounts/{id}", s.handleUpdateAccount)
					r.Delete("/accounts/{id}", s.handleRemoveAccount)
					r.Post("/accounts/{id}/primary", s.handleSetPrimary)
					r.Get("/balance", s.handleBalance)

					r.Post("/transactions", s.handleAddTransaction)
					r.Post("/income", s.handleAddIncome)

					r.Post("/goals", s.handleAddGoal)
					r.Patch("/goals/{id}", s.handleUpdateGoal)
					r.Delete("/goals/{id}", s.handleRemoveGoal)

					r.Post("/cibil", s.handleCIBIL)
					r.Post("/xp", s.handleXP)
					r.Post("/badges", s.handleBadge)
					r.Post("/chat", s.handleChat)
					r.Get("/summary/monthly", s.handleMonthlySummary)

					r.Get("/lessons", s.handleLessons)
					r.Get("/lessons/{id}", s.handleLesson)
					r.Post("/lessons/{id}/attempts", s.handleLessonAttempt)

					r.Post("/simulations", s.handleRecordSimulation)
					r.Get("/leaderboard", s.handleLeaderboard)
					r.Get("/export.xlsx", s.handleExport)

					r.Get("/scenarios", s.handleScenarios)
					r.Post("/scenarios/{id}/games", s.handleCreateGame)
					r.Get("/games/{id}", s.handleGame)
					r.Post("/games/{id}/start", s.handleStartGame)
					r.Post("/games/{id}/choices", s.handleChoose)
					r.Delete("/games/{id}", s.handleDeleteGame)

					r.Post("/market/sessions", s.handleCreateMarket)
					r.Get("/market/sessions/{id}", s.handleMarket)
					r.Post("/market/sessions/{id}/start", s.handleStartMarket)
					r.Post("/market/sessions/{id}/buy", s.handleBuy)
					r.Post("/market/sessions/{id}/sell", s.handleSell)
					r.Post("/market/sessions/{id}/end", s.handleEndMarket)
					r.Delete("/market/sessions/{id}", s.handleDeleteMarket)
				})
			})
		})
	})

	r.NotFound(s.handleStatic)
}

// cors allows the configured origin to call the API from a browser.
func (s *Server) cors(next http.Handler) http.Handler {
	allowed := strings.Split(s.cfg.CORSOrigin, ",")
	for i := range allowed {
		allowed[i] = strings.TrimSpace(allowed[i])
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case s.cfg.CORSOrigin == "" || s.cfg.CORSOrigin == "*":
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && containsString(allowed, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: claims.Subject,
			Email:  claims.Email,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.Email == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

// storeFor resolves the caller's finance store, building the profile from the
// auth record on first use.
func (s *Server) storeFor(w http.ResponseWriter, r *http.Request) (*finance.Store, bool) {
	uc, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	user, err := s.auth.User(r.Context(), uc.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	store, err := s.hub.Open(r.Context(), profileFor(user))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return store, true
}

func profileFor(u auth.User) finance.UserProfile {
	return finance.UserProfile{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Age:                u.Age,
		IncomeType:         u.IncomeType,
		OnboardingComplete: u.OnboardingComplete,
		JoinedAt:           u.JoinedAt,
	}
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": s.cfg.PingMessage})
}

// handleStatic serves the built web client and falls back to index.html for
// client-side routes.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if s.cfg.StaticDir == "" || r.Method != http.MethodGet || strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	root := filepath.Clean(s.cfg.StaticDir)
	path := filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}
	http.ServeFile(w, r, filepath.Join(root, "index.html"))
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrNameRequired), errors.Is(err, auth.ErrInvalidAge),
		errors.Is(err, auth.ErrInvalidIncomeType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, finance.ErrInvalidInput), errors.Is(err, finance.ErrUnknownReason):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, finance.ErrUnknownLesson), errors.Is(err, scenario.ErrUnknownScenario),
		errors.Is(err, errSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scenario.ErrUnknownDecision):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scenario.ErrWrongStage), errors.Is(err, market.ErrWrongStage):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, market.ErrTradeLimit):
		writeError(w, http.StatusConflict, market.Message(err))
	case errors.Is(err, market.ErrInsufficientCash), errors.Is(err, market.ErrInvalidQuantity),
		errors.Is(err, market.ErrStockDelisted):
		writeError(w, http.StatusBadRequest, market.Message(err))
	case errors.Is(err, market.ErrStockNotFound), errors.Is(err, market.ErrLotNotFound):
		writeError(w, http.StatusNotFound, market.Message(err))
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
