package finance

import (
	"encoding/json"
	"testing"
	"time"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestNewAppStateIsEmptyPerUser(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewAppState(UserProfile{Email: "a@example.com", XP: 2300}, now)
	b := NewAppState(UserProfile{Email: "b@example.com"}, now)

	if len(a.FinancialHub.Accounts) != 0 || len(a.Goals) != 0 {
		t.Fatalf("new state should have no accounts or goals")
	}
	if a.User.Level != 3 || b.User.Level != 1 {
		t.Fatalf("levels got %d and %d", a.User.Level, b.User.Level)
	}
	if a.CIBIL.Score != 750 || len(a.CIBIL.Factors) != 5 {
		t.Fatalf("unexpected cibil defaults %+v", a.CIBIL)
	}
	a.Simulations.Unlocked[0] = "changed"
	if b.Simulations.Unlocked[0] != "stock-market" {
		t.Fatalf("states share the unlocked slice")
	}
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	st := NewAppState(UserProfile{Email: "a@example.com"}, time.Now())
	st.FinancialHub.Accounts = append(st.FinancialHub.Accounts, Account{ID: "acc_1", Name: "Main"})
	cp := st.Clone()
	cp.FinancialHub.Accounts[0].Name = "Changed"
	if st.FinancialHub.Accounts[0].Name != "Main" {
		t.Fatalf("clone aliases accounts")
	}
}

func TestStateSurvivesJSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st := NewAppState(UserProfile{Email: "a@example.com"}, now)
	applyStarterData(&st, now, sequentialIDs())
	var back AppState
	if err := json.Unmarshal(mustJSON(t, st), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.FinancialHub.NetWorth.Equal(st.FinancialHub.NetWorth) || back.FinancialHub.PrimaryAccountID != st.FinancialHub.PrimaryAccountID {
		t.Fatalf("round trip lost hub data")
	}
}
