package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

var defaultUnlockedSimulations = []string{"stock-market", "life-scenario"}

// NewAppState builds the initial aggregate for one user. It starts with no
// accounts and no goals; starter data is applied separately on first load.
func NewAppState(profile UserProfile, now time.Time) AppState {
	if profile.Theme == "" {
		profile.Theme = "light"
	}
	if profile.IncomeType == "" {
		profile.IncomeType = "salaried"
	}
	if profile.JoinedAt.IsZero() {
		profile.JoinedAt = now
	}
	profile.LastActive = now
	if profile.XP < 0 {
		profile.XP = 0
	}
	profile.Level = LevelForXP(profile.XP)
	if profile.Badges == nil {
		profile.Badges = []Badge{}
	}
	return AppState{
		User: profile,
		FinancialHub: FinancialHub{
			Accounts:       []Account{},
			NetWorth:       decimal.Zero,
			LastCalculated: now,
		},
		Transactions: []Transaction{},
		Goals:        []Goal{},
		CIBIL:        defaultCIBIL(now),
		Simulations: Simulations{
			History:  []SimulationRecord{},
			Unlocked: append([]string(nil), defaultUnlockedSimulations...),
		},
		Progress: Progress{
			LessonsCompleted: []string{},
			ChallengesActive: []Challenge{},
		},
		Envelopes:   []Envelope{},
		ChatHistory: []ChatMessage{},
	}
}

func defaultCIBIL(now time.Time) CIBILData {
	factors := []CIBILFactor{
		{Name: "Payment History", Weight: 35, Description: "Good payment habits"},
		{Name: "Credit Utilization", Weight: 30, Description: "Using 25% of available credit"},
		{Name: "Credit History", Weight: 15, Description: "3+ years of credit history"},
		{Name: "Credit Mix", Weight: 10, Description: "Good mix of credit types"},
		{Name: "Recent Inquiries", Weight: 10, Description: "No recent credit inquiries"},
	}
	for i := range factors {
		factors[i].YourScore = 750
		factors[i].Status = "good"
	}
	return CIBILData{
		Score:       750,
		Factors:     factors,
		Trend:       "stable",
		LastUpdated: now,
	}
}

// LevelForXP is the only source of a user's level.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// NetWorth sums every account balance, liabilities included.
func NetWorth(accounts []Account) decimal.Decimal {
	total := decimal.Zero
	for _, acc := range accounts {
		total = total.Add(acc.Balance)
	}
	return total
}

// PrimaryAccount returns the account used for ad-hoc income and expenses.
func (st AppState) PrimaryAccount() (Account, bool) {
	idx := st.primaryIndex()
	if idx < 0 {
		return Account{}, false
	}
	return st.FinancialHub.Accounts[idx], true
}

func (st AppState) primaryIndex() int {
	return st.accountIndex(st.FinancialHub.PrimaryAccountID)
}

func (st AppState) accountIndex(id string) int {
	if id == "" {
		return -1
	}
	for i, acc := range st.FinancialHub.Accounts {
		if acc.ID == id {
			return i
		}
	}
	return -1
}

func (st AppState) goalIndex(id string) int {
	if id == "" {
		return -1
	}
	for i, g := range st.Goals {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// ensurePrimary keeps PrimaryAccountID pointing at a live, non-system account.
// When it does not, the first non-system account in sequence takes over.
func (st *AppState) ensurePrimary() {
	if idx := st.primaryIndex(); idx >= 0 && !st.FinancialHub.Accounts[idx].System {
		return
	}
	st.FinancialHub.PrimaryAccountID = ""
	for _, acc := range st.FinancialHub.Accounts {
		if !acc.System {
			st.FinancialHub.PrimaryAccountID = acc.ID
			return
		}
	}
}

// recompute restores the derived fields after a mutation.
func (st *AppState) recompute(now time.Time) {
	st.ensurePrimary()
	st.FinancialHub.NetWorth = NetWorth(st.FinancialHub.Accounts)
	st.FinancialHub.LastCalculated = now
	st.User.Level = LevelForXP(st.User.XP)
}

func (st *AppState) grantXP(amount int) {
	if amount <= 0 {
		return
	}
	st.User.XP += amount
	st.User.Level = LevelForXP(st.User.XP)
}

// Clone returns a deep copy so callers never share slices with the store.
func (st AppState) Clone() AppState {
	out := st
	out.User.Badges = cloneSlice(st.User.Badges)
	out.FinancialHub.Accounts = cloneSlice(st.FinancialHub.Accounts)
	out.Transactions = cloneSlice(st.Transactions)
	out.Goals = cloneSlice(st.Goals)
	out.CIBIL.Factors = cloneSlice(st.CIBIL.Factors)
	out.Simulations.History = cloneSlice(st.Simulations.History)
	out.Simulations.Unlocked = cloneSlice(st.Simulations.Unlocked)
	out.Progress.LessonsCompleted = cloneSlice(st.Progress.LessonsCompleted)
	out.Progress.ChallengesActive = cloneSlice(st.Progress.ChallengesActive)
	out.Envelopes = cloneSlice(st.Envelopes)
	out.ChatHistory = cloneSlice(st.ChatHistory)
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
