package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

type MonthlySummary struct {
	Year       int                        `json:"year"`
	Month      time.Month                 `json:"month"`
	Income     decimal.Decimal            `json:"income"`
	Expenses   decimal.Decimal            `json:"expenses"`
	Net        decimal.Decimal            `json:"net"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
}

// AccountBalance returns the balance of id, or of the primary account when id
// is empty. Unknown accounts read as zero.
func (st AppState) AccountBalance(id string) decimal.Decimal {
	if id == "" {
		if acc, ok := st.PrimaryAccount(); ok {
			return acc.Balance
		}
		return decimal.Zero
	}
	if idx := st.accountIndex(id); idx >= 0 {
		return st.FinancialHub.Accounts[idx].Balance
	}
	return decimal.Zero
}

func (st AppState) MonthlyIncome(now time.Time) decimal.Decimal {
	return st.monthlyTotal(TransactionIncome, now)
}

func (st AppState) MonthlyExpenses(now time.Time) decimal.Decimal {
	return st.monthlyTotal(TransactionExpense, now)
}

// MonthlySpendingByCategory aggregates this month's expenses per category.
func (st AppState) MonthlySpendingByCategory(now time.Time) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, txn := range st.Transactions {
		if txn.Type != TransactionExpense || !inMonth(txn.Date, now) {
			continue
		}
		out[txn.Category] = out[txn.Category].Add(txn.Amount)
	}
	return out
}

func (st AppState) MonthlySummary(now time.Time) MonthlySummary {
	income := st.MonthlyIncome(now)
	expenses := st.MonthlyExpenses(now)
	return MonthlySummary{
		Year:       now.Year(),
		Month:      now.Month(),
		Income:     income,
		Expenses:   expenses,
		Net:        income.Sub(expenses),
		ByCategory: st.MonthlySpendingByCategory(now),
	}
}

func (st AppState) monthlyTotal(kind TransactionType, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, txn := range st.Transactions {
		if txn.Type == kind && inMonth(txn.Date, now) {
			total = total.Add(txn.Amount)
		}
	}
	return total
}

// inMonth compares calendar months in the caller's local zone.
func inMonth(t, now time.Time) bool {
	t = t.In(now.Location())
	return t.Year() == now.Year() && t.Month() == now.Month()
}

func (s *Store) MonthlySummary() MonthlySummary {
	return s.Snapshot().MonthlySummary(s.opts.Now())
}

func (s *Store) AccountBalance(id string) decimal.Decimal {
	return s.Snapshot().AccountBalance(id)
}
