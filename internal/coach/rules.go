package coach

import (
	"context"
	"fmt"
	"strings"

	"finwise/internal/finance"
	"finwise/internal/money"
)

const (
	greetingReply   = "Hello! How can I assist with your finances today?"
	capabilityReply = "I can help with accounts, goals, budgets, and simulations."
	noGoalsReply    = "You don't have goals yet. Create one in the Financial Hub."
	noAccountsReply = "No accounts yet. Use Manage Accounts to add bank, PF, loans, or investments."
)

type rule struct {
	keywords []string
	answer   func(finance.AppState) string
}

// Rules is the offline responder. The first rule whose keyword appears in the
// lowercased message answers.
type Rules struct{}

var rules = []rule{
	{keywords: []string{"net worth", "worth"}, answer: netWorthReply},
	{keywords: []string{"goal", "emergency"}, answer: goalReply},
	{keywords: []string{"account", "bank"}, answer: accountReply},
	{keywords: []string{"hello", "hi", "hey"}, answer: func(finance.AppState) string { return greetingReply }},
}

func (Rules) Reply(_ context.Context, message string, st finance.AppState) string {
	text := strings.ToLower(message)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.answer(st)
			}
		}
	}
	return capabilityReply
}

func netWorthReply(st finance.AppState) string {
	return fmt.Sprintf("Your current net worth is %s.", money.FormatINR(st.FinancialHub.NetWorth))
}

func goalReply(st finance.AppState) string {
	if len(st.Goals) == 0 {
		return noGoalsReply
	}
	g := st.Goals[0]
	return fmt.Sprintf("Your goal “%s” is %s / %s.", g.Name, money.FormatINR(g.Current), money.FormatINR(g.Target))
}

func accountReply(st finance.AppState) string {
	accounts := st.FinancialHub.Accounts
	if len(accounts) == 0 {
		return noAccountsReply
	}
	a := accounts[0]
	return fmt.Sprintf("You have %d account(s). The first is “%s” at %s with balance %s.",
		len(accounts), a.Name, a.Institution, money.FormatINR(a.Balance))
}
