package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finwise/internal/money"

	"github.com/shopspring/decimal"
)

const (
	xpRewardingExpense = 10
	xpIncome           = 30
	xpNewGoal          = 50

	bufferAccountName = "Income Buffer"
	defaultBadgeGroup = "milestones"
)

// errAlreadyApplied aborts a mutation that would repeat an earlier report.
var errAlreadyApplied = errors.New("already applied")

var rewardedExpenseCategories = map[string]bool{
	"savings":    true,
	"investment": true,
	"bill":       true,
}

var cibilDeltas = map[CIBILReason]int{
	ReasonPaymentOnTime:     5,
	ReasonMissedPayment:     -20,
	ReasonReduceUtilization: 3,
}

// ApplyExpense debits an account for a transaction. Balances never go below
// zero on this path.
func ApplyExpense(acc *Account, amount decimal.Decimal, now time.Time) {
	acc.Balance = money.Max(decimal.Zero, acc.Balance.Sub(amount))
	acc.LastUpdated = now
}

// ApplyIncome credits an account for a transaction.
func ApplyIncome(acc *Account, amount decimal.Decimal, now time.Time) {
	acc.Balance = acc.Balance.Add(amount)
	acc.LastUpdated = now
}

// SetBalance replaces a balance verbatim. Negative values are allowed.
func SetBalance(acc *Account, balance decimal.Decimal, now time.Time) {
	acc.Balance = balance
	acc.LastUpdated = now
}

func (s *Store) AddAccount(ctx context.Context, in AccountInput) (Account, error) {
	if !in.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", ErrInvalidInput, in.Type)
	}
	var created Account
	_, err := s.mutate(ctx, func(st *AppState, now time.Time) error {
		created = Account{
			ID:          s.opts.NewID("acc"),
			Type:        in.Type,
			Name:        strings.TrimSpace(in.Name),
			Balance:     in.Balance,
			Institution: strings.TrimSpace(in.Institution),
			LastUpdated: now,
		}
		st.FinancialHub.Accounts = append(st.FinancialHub.Accounts, created)
		return nil
	})
	return created, err
}

func (s *Store) UpdateAccount(ctx context.Context, id string, patch AccountPatch) (AppState, error) {
	if patch.Type != nil && !patch.Type.Valid() {
		return AppState{}, fmt.Errorf("%w: unknown account type %q", ErrInvalidInput, *patch.Type)
	}
	return s.mutate(ctx, func(st *AppState, now time.Time) error {
		idx := st.accountIndex(id)
		if idx < 0 {
			return nil
		}
		acc := &st.FinancialHub.Accounts[idx]
		if patch.Type != nil {
			acc.Type = *patch.Type
		}
		if patch.Name != nil {
			acc.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Institution != nil {
			acc.Institution = strings.TrimSpace(*patch.Institution)
		}
		if patch.Balance != nil {
			SetBalance(acc, *patch.Balance, now)
		}
		acc.LastUpdated = now
		return nil
	})
}

// RemoveAccount drops an account. Transactions keep their dangling account id.
func (s *Store) RemoveAccount(ctx context.Context, id string) (AppState, error) {
	return s.mutate(ctx, func(st *AppState, _ time.Time) error {
		kept := st.FinancialHub.Accounts[:0]
		for _, acc := range st.FinancialHub.Accounts {
			if acc.ID != id {
				kept = append(kept, acc)
			}
		}
		st.FinancialHub.Accounts = kept
		return nil
	})
}

func (s *Store) SetPrimaryAccount(ctx context.Context, id string) (AppState, error) {
	return s.mutate(ctx, func(st *AppState, _ time.Time) error {
		idx := st.accountIndex(id)
		if idx < 0 || st.FinancialHub.Accounts[idx].System {
			return nil
		}
		st.FinancialHub.PrimaryAccountID = id
		return nil
	})
}

func (s *Store) AddTransaction(ctx context.Context, in TransactionInput) (Transaction, error) {
	if in.Type != TransactionIncome && in.Type != TransactionExpense {
		return Transaction{}, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidInput, in.Type)
	}
	if !in.Amount.IsPositive() {
		return Transaction{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	var created Transaction
	_, err := s.mutate(ctx, func(st *AppState, now time.Time) error {
		created = Transaction{
			ID:            s.opts.NewID("txn"),
			Type:          in.Type,
			Amount:        in.Amount,
			Category:      strings.TrimSpace(in.Category),
			Date:          now,
			Note:          strings.TrimSpace(in.Note),
			PaymentMethod: strings.TrimSpace(in.PaymentMethod),
			GoalID:        strings.TrimSpace(in.GoalID),
		}
		if idx := st.primaryIndex(); idx >= 0 {
			acc := &st.FinancialHub.Accounts[idx]
			created.AccountID = acc.ID
			if in.Type == TransactionIncome {
				ApplyIncome(acc, in.Amount, now)
			} else {
				ApplyExpense(acc, in.Amount, now)
			}
		}
		st.Transactions = append(st.Transactions, created)

		if in.Type != TransactionExpense {
			return nil
		}
		if gi := st.goalIndex(created.GoalID); gi >= 0 {
			g := &st.Goals[gi]
			g.Current = g.Current.Add(in.Amount)
			g.Status = ProjectGoalStatus(*g, now)
		}
		if rewardedExpenseCategories[strings.ToLower(created.Category)] {
			st.grantXP(xpRewardingExpense)
		}
		return nil
	})
	return created, err
}

// AddIncome records payroll-style income split 70/20/10 between the primary
// account, an optional goal and the income buffer account. A goal share with
// no goal to land in goes to the buffer; with no primary account everything
// does.
func (s *Store) AddIncome(ctx context.Context, in IncomeInput) (Transaction, error) {
	if !in.Amount.IsPositive() {
		return Transaction{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = "salary"
	}
	var created Transaction
	_, err := s.mutate(ctx, func(st *AppState, now time.Time) error {
		toAccount := money.Share(in.Amount, 70)
		toGoal := money.Share(in.Amount, 20)
		toBuffer := in.Amount.Sub(toAccount).Sub(toGoal)

		if gi := st.goalIndex(strings.TrimSpace(in.AllocateToGoal)); gi >= 0 {
			g := &st.Goals[gi]
			g.Current = g.Current.Add(toGoal)
			g.Status = ProjectGoalStatus(*g, now)
		} else {
			toBuffer = toBuffer.Add(toGoal)
		}

		bufferIdx := st.bufferIndex(s.opts.NewID, now)
		primaryIdx := st.primaryIndex()
		if primaryIdx < 0 {
			primaryIdx = bufferIdx
		}
		ApplyIncome(&st.FinancialHub.Accounts[primaryIdx], toAccount, now)
		ApplyIncome(&st.FinancialHub.Accounts[bufferIdx], toBuffer, now)

		created = Transaction{
			ID:            s.opts.NewID("txn"),
			Type:          TransactionIncome,
			Amount:        in.Amount,
			Category:      source,
			Date:          now,
			Note:          "Income: " + source,
			PaymentMethod: "bank-transfer",
			GoalID:        strings.TrimSpace(in.AllocateToGoal),
			AccountID:     st.FinancialHub.Accounts[primaryIdx].ID,
		}
		st.Transactions = append(st.Transactions, created)
		st.grantXP(xpIncome)
		return nil
	})
	return created, err
}

// bufferIndex returns the system buffer account, creating it on first use.
func (st *AppState) bufferIndex(newID func(string) string, now time.Time) int {
	for i, acc := range st.FinancialHub.Accounts {
		if acc.System && acc.Name == bufferAccountName {
			return i
		}
	}
	st.FinancialHub.Accounts = append(st.FinancialHub.Accounts, Account{
		ID:          newID("acc"),
		Type:        AccountBank,
		Name:        bufferAccountName,
		Balance:     decimal.Zero,
		Institution: "FinWise",
		System:      true,
		LastUpdated: now,
	})
	return len(st.FinancialHub.Accounts) - 1
}

func (s *Store) AddGoal(ctx context.Context, in GoalInput) (Goal, error) {
	if !in.Target.IsPositive() {
		return Goal{}, fmt.Errorf("%w: target must be positive", ErrInvalidInput)
	}
	if in.Current.IsNegative() || in.MonthlyCommitment.IsNegative() {
		return Goal{}, fmt.Errorf("%w: amounts must not be negative", ErrInvalidInput)
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	var created Goal
	_, err := s.mutate(ctx, func(st *AppState, now time.Time) error {
		deadline := in.Deadline
		if deadline.IsZero() {
			deadline = now.Add(365 * day)
		}
		created = Goal{
			ID:                s.opts.NewID("goal"),
			Type:              strings.TrimSpace(in.Type),
			Name:              strings.TrimSpace(in.Name),
			Target:            in.Target,
			Current:           in.Current,
			Deadline:          deadline,
			Priority:          priority,
			Status:            GoalOnTrack,
			MonthlyCommitment: in.MonthlyCommitment,
			CreatedAt:         now,
		}
		st.Goals = append(st.Goals, created)
		st.grantXP(xpNewGoal)
		return nil
	})
	return created, err
}

// UpdateGoal merges fields; status is left as it was even when current changes.
func (s *Store) UpdateGoal(ctx context.Context, id string, patch GoalPatch) (AppState, error) {
	if patch.Target != nil && !patch.Target.IsPositive() {
		return AppState{}, fmt.Errorf("%w: target must be positive", ErrInvalidInput)
	}
	return s.mutate(ctx, func(st *AppState, _ time.Time) error {
		idx := st.goalIndex(id)
		if idx < 0 {
			return nil
		}
		g := &st.Goals[idx]
		if patch.Type != nil {
			g.Type = strings.TrimSpace(*patch.Type)
		}
		if patch.Name != nil {
			g.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Target != nil {
			g.Target = *patch.Target
		}
		if patch.Current != nil {
			g.Current = *patch.Current
		}
		if patch.Deadline != nil {
			g.Deadline = *patch.Deadline
		}
		if patch.Priority != nil {
			g.Priority = *patch.Priority
		}
		if patch.MonthlyCommitment != nil {
			g.MonthlyCommitment = *patch.MonthlyCommitment
		}
		return nil
	})
}

func (s *Store) RemoveGoal(ctx context.Context, id string) (AppState, error) {
	return s.mutate(ctx, func(st *AppState, _ time.Time) error {
		kept := st.Goals[:0]
		for _, g := range st.Goals {
			if g.ID != id {
				kept = append(kept, g)
			}
		}
		st.Goals = kept
		return nil
	})
}

func (s *Store) UpdateCIBIL(ctx context.Context, reason CIBILReason) (CIBILData, error) {
	delta, ok := cibilDeltas[reason]
	if !ok {
		return CIBILData{}, fmt.Errorf("%w: %q", ErrUnknownReason, reason)
	}
	st, err := s.mutate(ctx, func(st *AppState, now time.Time) error {
		before := st.CIBIL.Score
		st.CIBIL.Score = clampScore(before + delta)
		switch {
		case st.CIBIL.Score > before:
			st.CIBIL.Trend = "improving"
		case st.CIBIL.Score < before:
			st.CIBIL.Trend = "declining"
		default:
			st.CIBIL.Trend = "stable"
		}
		st.CIBIL.LastUpdated = now
		return nil
	})
	if err != nil {
		return CIBILData{}, err
	}
	return st.CIBIL, nil
}

func clampScore(score int) int {
	if score < MinCIBILScore {
		return MinCIBILScore
	}
	if score > MaxCIBILScore {
		return MaxCIBILScore
	}
	return score
}

func (s *Store) AddXP(ctx context.Context, amount int, reason string) (UserProfile, error) {
	if amount < 0 {
		return UserProfile{}, fmt.Errorf("%w: xp must not be negative", ErrInvalidInput)
	}
	st, err := s.mutate(ctx, func(st *AppState, _ time.Time) error {
		st.grantXP(amount)
		return nil
	})
	if err != nil {
		return UserProfile{}, err
	}
	s.log.Debug("xp granted", "amount", amount, "reason", reason)
	return st.User, nil
}

// AddBadge unlocks a badge once per id. An empty category means milestones.
func (s *Store) AddBadge(ctx context.Context, in BadgeInput) (Badge, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Badge{}, fmt.Errorf("%w: badge name is required", ErrInvalidInput)
	}
	var out Badge
	_, err := s.mutate(ctx, func(st *AppState, now time.Time) error {
		id := strings.TrimSpace(in.ID)
		for _, b := range st.User.Badges {
			if id != "" && b.ID == id {
				out = b
				return nil
			}
		}
		if id == "" {
			id = s.opts.NewID("badge")
		}
		category := strings.TrimSpace(in.Category)
		if category == "" {
			category = defaultBadgeGroup
		}
		out = Badge{
			ID:          id,
			Name:        strings.TrimSpace(in.Name),
			Icon:        in.Icon,
			Description: strings.TrimSpace(in.Description),
			Category:    category,
			UnlockedAt:  now,
		}
		st.User.Badges = append(st.User.Badges, out)
		return nil
	})
	return out, err
}

// SendCoachMessage appends a chat message. A user message is answered by the
// responder and both land in one update; an assistant message is stored
// verbatim. The responder runs without the store lock, so a slow remote coach
// never blocks other writes for this user.
func (s *Store) SendCoachMessage(ctx context.Context, content string, role ChatRole) ([]ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	var added []ChatMessage
	if role == RoleAssistant {
		added = []ChatMessage{{ID: s.opts.NewID("msg"), Role: RoleAssistant, Content: content, Timestamp: s.opts.Now(), Type: "actionable"}}
	} else {
		userMsg := ChatMessage{ID: s.opts.NewID("msg"), Role: RoleUser, Content: content, Timestamp: s.opts.Now(), Type: "nudge"}
		view := s.Snapshot()
		view.ChatHistory = append(view.ChatHistory, userMsg)
		reply := strings.TrimSpace(s.opts.Responder.Reply(ctx, content, view))
		if reply == "" {
			reply = fallbackReply
		}
		assistantMsg := ChatMessage{ID: s.opts.NewID("msg"), Role: RoleAssistant, Content: reply, Timestamp: s.opts.Now(), Type: "actionable"}
		added = []ChatMessage{userMsg, assistantMsg}
	}

	_, err := s.mutate(ctx, func(st *AppState, _ time.Time) error {
		st.ChatHistory = append(st.ChatHistory, added...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RecordSimulation stores a finished simulator run and grants its XP.
func (s *Store) RecordSimulation(ctx context.Context, in SimulationResult) (SimulationRecord, error) {
	kind := strings.TrimSpace(in.Kind)
	if kind == "" {
		return SimulationRecord{}, fmt.Errorf("%w: simulation kind is required", ErrInvalidInput)
	}
	if in.XPEarned < 0 {
		return SimulationRecord{}, fmt.Errorf("%w: xp must not be negative", ErrInvalidInput)
	}
	reportID := strings.TrimSpace(in.ReportID)
	var rec SimulationRecord
	_, err := s.mutate(ctx, func(st *AppState, now time.Time) error {
		if reportID != "" {
			for _, prev := range st.Simulations.History {
				if prev.ReportID == reportID {
					rec = prev
					return errAlreadyApplied
				}
			}
		}
		rec = SimulationRecord{
			ID:           s.opts.NewID("sim"),
			ReportID:     reportID,
			Kind:         kind,
			SimulationID: strings.TrimSpace(in.SimulationID),
			Score:        in.Score,
			FinalValue:   in.FinalValue,
			Feedback:     in.Feedback,
			XPEarned:     in.XPEarned,
			CompletedAt:  now,
		}
		st.Simulations.History = append(st.Simulations.History, rec)
		st.grantXP(in.XPEarned)
		return nil
	})
	if errors.Is(err, errAlreadyApplied) {
		return rec, nil
	}
	return rec, err
}

// CompleteOnboarding stores the survey answers and flips the onboarding flag.
// It adds no accounts or goals.
func (s *Store) CompleteOnboarding(ctx context.Context, in OnboardingInput) (AppState, error) {
	if in.Age != 0 && (in.Age < 18 || in.Age > 100) {
		return AppState{}, fmt.Errorf("%w: age must be between 18 and 100", ErrInvalidInput)
	}
	return s.mutate(ctx, func(st *AppState, now time.Time) error {
		if name := strings.TrimSpace(in.Name); name != "" {
			st.User.Name = name
		}
		if in.Age != 0 {
			st.User.Age = in.Age
		}
		if it := strings.TrimSpace(in.IncomeType); it != "" {
			st.User.IncomeType = it
		}
		if lvl := strings.TrimSpace(in.ExperienceLevel); lvl != "" {
			st.User.ExperienceLevel = lvl
		}
		if goal := strings.TrimSpace(in.MainGoal); goal != "" {
			st.User.MainGoal = goal
		}
		if len(st.Envelopes) == 0 {
			st.Envelopes = defaultEnvelopes()
		}
		if !st.User.OnboardingComplete && len(st.ChatHistory) == 0 {
			st.ChatHistory = append(st.ChatHistory, ChatMessage{
				ID:        s.opts.NewID("msg"),
				Role:      RoleAssistant,
				Content:   fmt.Sprintf("Welcome to FinWise, %s! 🎉 We'll start with learning and goals. You can add accounts, PF or loans later at any time.", st.User.Name),
				Timestamp: now,
				Type:      "motivational",
			})
		}
		st.User.OnboardingComplete = true
		return nil
	})
}

func defaultEnvelopes() []Envelope {
	return []Envelope{
		{ID: "env_bills", Name: "Bills & Utilities", Priority: "bills", Target: decimal.NewFromInt(30000), Current: decimal.Zero},
		{ID: "env_goals", Name: "Financial Goals", Priority: "goals", Target: decimal.NewFromInt(20000), Current: decimal.Zero},
		{ID: "env_spend", Name: "Safe to Spend", Priority: "safe-to-spend", Target: decimal.NewFromInt(15000), Current: decimal.Zero},
	}
}

// Touch records activity and advances the daily login streak once per local day.
func (s *Store) Touch(ctx context.Context) (AppState, error) {
	return s.mutate(ctx, func(st *AppState, now time.Time) error {
		last := st.User.LastActive
		switch {
		case st.Progress.Streaks.DailyLogin == 0 || last.IsZero():
			st.Progress.Streaks.DailyLogin = 1
		case sameDay(last, now):
		case sameDay(last.AddDate(0, 0, 1), now):
			st.Progress.Streaks.DailyLogin++
		default:
			st.Progress.Streaks.DailyLogin = 1
		}
		st.User.LastActive = now
		return nil
	})
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
