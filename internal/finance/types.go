package finance

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnknownLesson = errors.New("lesson not found")
	ErrUnknownReason = errors.New("unknown cibil adjustment reason")
)

type AccountType string

const (
	AccountBank       AccountType = "bank"
	AccountCreditCard AccountType = "credit-card"
	AccountLoan       AccountType = "loan"
	AccountInvestment AccountType = "investment"
	AccountRetirement AccountType = "retirement"
	AccountInsurance  AccountType = "insurance"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCreditCard, AccountLoan, AccountInvestment, AccountRetirement, AccountInsurance:
		return true
	}
	return false
}

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

type GoalStatus string

const (
	GoalOnTrack   GoalStatus = "on-track"
	GoalBehind    GoalStatus = "behind"
	GoalAtRisk    GoalStatus = "at-risk"
	GoalCompleted GoalStatus = "completed"
)

type GoalPriority string

const (
	PriorityHigh   GoalPriority = "high"
	PriorityMedium GoalPriority = "medium"
	PriorityLow    GoalPriority = "low"
)

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type CIBILReason string

const (
	ReasonPaymentOnTime     CIBILReason = "payment-on-time"
	ReasonMissedPayment     CIBILReason = "missed-payment"
	ReasonReduceUtilization CIBILReason = "reduce-utilization"
)

const (
	MinCIBILScore = 300
	MaxCIBILScore = 900
	XPPerLevel    = 1000
)

type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

type UserProfile struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Age                int       `json:"age"`
	IncomeType         string    `json:"income_type"`
	Level              int       `json:"level"`
	XP                 int       `json:"xp"`
	Badges             []Badge   `json:"badges"`
	Theme              string    `json:"theme"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	ExperienceLevel    string    `json:"experience_level,omitempty"`
	MainGoal           string    `json:"main_goal,omitempty"`
	JoinedAt           time.Time `json:"joined_at"`
	LastActive         time.Time `json:"last_active"`
}

type Account struct {
	ID          string          `json:"id"`
	Type        AccountType     `json:"type"`
	Name        string          `json:"name"`
	Balance     decimal.Decimal `json:"balance"`
	Institution string          `json:"institution"`
	System      bool            `json:"system,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

type Transaction struct {
	ID            string          `json:"id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Date          time.Time       `json:"date"`
	Note          string          `json:"note,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	GoalID        string          `json:"goal_id,omitempty"`
	AccountID     string          `json:"account_id,omitempty"`
}

type Goal struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	Name              string          `json:"name"`
	Target            decimal.Decimal `json:"target"`
	Current           decimal.Decimal `json:"current"`
	Deadline          time.Time       `json:"deadline"`
	Priority          GoalPriority    `json:"priority"`
	Status            GoalStatus      `json:"status"`
	MonthlyCommitment decimal.Decimal `json:"monthly_commitment"`
	CreatedAt         time.Time       `json:"created_at"`
}

type CIBILFactor struct {
	Name        string `json:"name"`
	Weight      int    `json:"weight"`
	YourScore   int    `json:"your_score"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

type CIBILData struct {
	Score       int           `json:"score"`
	Factors     []CIBILFactor `json:"factors"`
	Trend       string        `json:"trend"`
	LastUpdated time.Time     `json:"last_updated"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type,omitempty"`
}

type SimulationRecord struct {
	ID           string    `json:"id"`
	ReportID     string    `json:"report_id,omitempty"`
	Kind         string    `json:"kind"`
	SimulationID string    `json:"simulation_id"`
	Score        int       `json:"score"`
	FinalValue   string    `json:"final_value,omitempty"`
	Feedback     string    `json:"feedback"`
	XPEarned     int       `json:"xp_earned"`
	CompletedAt  time.Time `json:"completed_at"`
}

type Simulations struct {
	History  []SimulationRecord `json:"history"`
	Unlocked []string           `json:"unlocked"`
}

type Challenge struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Goal        int       `json:"goal"`
	Progress    int       `json:"progress"`
	Reward      int       `json:"reward"`
	Deadline    time.Time `json:"deadline"`
}

type Streaks struct {
	DailyLogin      int `json:"daily_login"`
	Savings         int `json:"savings"`
	BudgetAdherence int `json:"budget_adherence"`
}

type Progress struct {
	LessonsCompleted []string    `json:"lessons_completed"`
	ChallengesActive []Challenge `json:"challenges_active"`
	Streaks          Streaks     `json:"streaks"`
}

type Envelope struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Priority string          `json:"priority"`
	Target   decimal.Decimal `json:"target"`
	Current  decimal.Decimal `json:"current"`
}

type FinancialHub struct {
	Accounts         []Account       `json:"accounts"`
	PrimaryAccountID string          `json:"primary_account_id,omitempty"`
	NetWorth         decimal.Decimal `json:"net_worth"`
	LastCalculated   time.Time       `json:"last_calculated"`
}

// AppState is the aggregate root persisted as one blob per user.
type AppState struct {
	User         UserProfile   `json:"user"`
	FinancialHub FinancialHub  `json:"financial_hub"`
	Transactions []Transaction `json:"transactions"`
	Goals        []Goal        `json:"goals"`
	CIBIL        CIBILData     `json:"cibil"`
	Simulations  Simulations   `json:"simulations"`
	Progress     Progress      `json:"progress"`
	Envelopes    []Envelope    `json:"envelopes"`
	ChatHistory  []ChatMessage `json:"chat_history"`
}

// Responder produces an assistant reply for a user message. Implementations
// must always return non-empty text.
type Responder interface {
	Reply(ctx context.Context, message string, state AppState) string
}

type ResponderFunc func(ctx context.Context, message string, state AppState) string

func (f ResponderFunc) Reply(ctx context.Context, message string, state AppState) string {
	return f(ctx, message, state)
}

type AccountInput struct {
	Type        AccountType     `json:"type"`
	Name        string          `json:"name"`
	Balance     decimal.Decimal `json:"balance"`
	Institution string          `json:"institution"`
}

// AccountPatch merges into an account. A Balance set here replaces the
// balance verbatim with no floor.
type AccountPatch struct {
	Type        *AccountType     `json:"type,omitempty"`
	Name        *string          `json:"name,omitempty"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	Institution *string          `json:"institution,omitempty"`
}

type TransactionInput struct {
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	PaymentMethod string          `json:"payment_method"`
	Note          string          `json:"note,omitempty"`
	GoalID        string          `json:"goal_id,omitempty"`
}

type IncomeInput struct {
	Amount         decimal.Decimal `json:"amount"`
	Source         string          `json:"source"`
	AllocateToGoal string          `json:"allocate_to_goal,omitempty"`
}

type GoalInput struct {
	Type              string          `json:"type"`
	Name              string          `json:"name"`
	Target            decimal.Decimal `json:"target"`
	Current           decimal.Decimal `json:"current"`
	Deadline          time.Time       `json:"deadline"`
	Priority          GoalPriority    `json:"priority"`
	MonthlyCommitment decimal.Decimal `json:"monthly_commitment"`
}

// GoalPatch merges into a goal without recomputing its status.
type GoalPatch struct {
	Type              *string          `json:"type,omitempty"`
	Name              *string          `json:"name,omitempty"`
	Target            *decimal.Decimal `json:"target,omitempty"`
	Current           *decimal.Decimal `json:"current,omitempty"`
	Deadline          *time.Time       `json:"deadline,omitempty"`
	Priority          *GoalPriority    `json:"priority,omitempty"`
	MonthlyCommitment *decimal.Decimal `json:"monthly_commitment,omitempty"`
}

type BadgeInput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// SimulationResult is a finished run reported by a simulator. ReportID, when
// set, makes the report idempotent.
type SimulationResult struct {
	ReportID     string `json:"report_id,omitempty"`
	Kind         string `json:"kind"`
	SimulationID string `json:"simulation_id"`
	Score        int    `json:"score"`
	FinalValue   string `json:"final_value,omitempty"`
	Feedback     string `json:"feedback"`
	XPEarned     int    `json:"xp_earned"`
}

type OnboardingInput struct {
	Name            string `json:"name"`
	Age             int    `json:"age"`
	IncomeType      string `json:"income_type"`
	ExperienceLevel string `json:"experience_level"`
	MainGoal        string `json:"main_goal"`
}
