package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// needsStarterData reports whether a never-seeded state qualifies for the
// starter accounts and goals.
func needsStarterData(st AppState) bool {
	return len(st.FinancialHub.Accounts) == 0 && len(st.Goals) == 0
}

func applyStarterData(st *AppState, now time.Time, newID func(string) string) {
	accounts := []struct {
		name        string
		kind        AccountType
		balance     int64
		institution string
	}{
		{"Primary Savings", AccountBank, 25000, "State Bank of India"},
		{"Salary Account", AccountBank, 15000, "HDFC Bank"},
		{"Provident Fund", AccountRetirement, 80000, "EPFO"},
		{"Mutual Funds", AccountInvestment, 30000, "Kotak AMC"},
		{"Personal Loan", AccountLoan, -20000, "ICICI Bank"},
	}
	for _, a := range accounts {
		st.FinancialHub.Accounts = append(st.FinancialHub.Accounts, Account{
			ID:          newID("acc"),
			Type:        a.kind,
			Name:        a.name,
			Balance:     decimal.NewFromInt(a.balance),
			Institution: a.institution,
			LastUpdated: now,
		})
	}
	st.FinancialHub.PrimaryAccountID = st.FinancialHub.Accounts[0].ID

	st.Goals = append(st.Goals,
		Goal{
			ID:                newID("goal"),
			Type:              "emergency",
			Name:              "Emergency Fund",
			Target:            decimal.NewFromInt(300000),
			Current:           decimal.NewFromInt(35000),
			Deadline:          now.Add(365 * day),
			Priority:          PriorityHigh,
			Status:            GoalOnTrack,
			MonthlyCommitment: decimal.NewFromInt(10000),
			CreatedAt:         now,
		},
		Goal{
			ID:                newID("goal"),
			Type:              "debt",
			Name:              "Pay off Personal Loan",
			Target:            decimal.NewFromInt(20000),
			Current:           decimal.NewFromInt(2000),
			Deadline:          now.Add(180 * day),
			Priority:          PriorityMedium,
			Status:            GoalBehind,
			MonthlyCommitment: decimal.NewFromInt(5000),
			CreatedAt:         now,
		},
	)
	st.recompute(now)
}
