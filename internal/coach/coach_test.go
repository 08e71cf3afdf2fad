package coach

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"finwise/internal/finance"

	"github.com/shopspring/decimal"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func sampleState() finance.AppState {
	st := finance.NewAppState(finance.UserProfile{Email: "asha@example.com"}, time.Now())
	st.FinancialHub.Accounts = []finance.Account{
		{ID: "acc_1", Name: "Primary Savings", Institution: "State Bank of India", Balance: decimal.NewFromInt(25000)},
		{ID: "acc_2", Name: "Provident Fund", Institution: "EPFO", Balance: decimal.NewFromInt(105000)},
	}
	st.FinancialHub.NetWorth = decimal.NewFromInt(130000)
	st.Goals = []finance.Goal{{ID: "goal_1", Name: "Emergency Fund", Current: decimal.NewFromInt(35000), Target: decimal.NewFromInt(300000)}}
	return st
}

func TestRulesFirstMatchWins(t *testing.T) {
	st := sampleState()
	empty := finance.NewAppState(finance.UserProfile{Email: "new@example.com"}, time.Now())
	tests := []struct {
		name    string
		message string
		state   finance.AppState
		want    string
	}{
		{"net worth", "What is my NET WORTH?", st, "Your current net worth is ₹1,30,000."},
		{"worth beats goal", "is my goal worth it", st, "Your current net worth is ₹1,30,000."},
		{"goal", "how is my emergency fund", st, "Your goal “Emergency Fund” is ₹35,000 / ₹3,00,000."},
		{"no goals", "goals?", empty, noGoalsReply},
		{"accounts", "list my bank accounts", st, "You have 2 account(s). The first is “Primary Savings” at State Bank of India with balance ₹25,000."},
		{"no accounts", "account", empty, noAccountsReply},
		{"greeting", "Hey there", st, greetingReply},
		{"fallback", "tell me a joke", st, capabilityReply},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := (Rules{}).Reply(context.Background(), tc.message, tc.state); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestRemoteCompleteSendsChatRequest(t *testing.T) {
	r := NewRemote(RemoteConfig{APIKey: "sk-test", URL: "https://llm.test/v1/chat/completions"})
	r.HTTP = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Authorization") != "Bearer sk-test" {
			t.Fatalf("missing bearer key")
		}
		var body chatRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != DefaultModel || body.Temperature != 0.2 || len(body.Messages) != 2 {
			t.Fatalf("unexpected request %+v", body)
		}
		if body.Messages[0].Role != "system" || body.Messages[1].Content != "budget tips" {
			t.Fatalf("unexpected messages %+v", body.Messages)
		}
		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"Track every rupee."}}]}`), nil
	})}

	got, err := r.Complete(context.Background(), "budget tips")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "Track every rupee." {
		t.Fatalf("got %q", got)
	}
}

func TestRemoteCompleteErrors(t *testing.T) {
	if _, err := NewRemote(RemoteConfig{}).Complete(context.Background(), "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	r := NewRemote(RemoteConfig{APIKey: "sk-test"})
	r.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":"rate limited"}`), nil
	})}
	_, err := r.Complete(context.Background(), "hi")
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Status != http.StatusTooManyRequests || !strings.Contains(perr.Body, "rate limited") {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("provider error should match ErrProvider")
	}

	r.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"choices":[]}`), nil
	})}
	got, err := r.Complete(context.Background(), "hi")
	if err != nil || got != emptyChoiceReply {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestFallbackUsesRulesOnceOnFailure(t *testing.T) {
	calls := 0
	r := NewRemote(RemoteConfig{APIKey: "sk-test"})
	r.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("connection refused")
	})}
	f := NewFallback(r, nil)
	got := f.Reply(context.Background(), "net worth", sampleState())
	if got != "Your current net worth is ₹1,30,000." {
		t.Fatalf("got %q", got)
	}
	if calls != 1 {
		t.Fatalf("remote should be tried exactly once, got %d", calls)
	}

	offline := NewFallback(NewRemote(RemoteConfig{}), nil)
	if got := offline.Reply(context.Background(), "hello", sampleState()); got != greetingReply {
		t.Fatalf("got %q", got)
	}
}

func TestFallbackPrefersRemoteReply(t *testing.T) {
	r := NewRemote(RemoteConfig{APIKey: "sk-test"})
	r.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"From the model."}}]}`), nil
	})}
	if got := NewFallback(r, nil).Reply(context.Background(), "net worth", sampleState()); got != "From the model." {
		t.Fatalf("got %q", got)
	}
}
