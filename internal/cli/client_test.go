package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finwise/internal/auth"
	"finwise/internal/finance"
)

func TestRecordSimulationSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/simulations" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		var in finance.SimulationResult
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(finance.SimulationRecord{ID: "sim_1", ReportID: in.ReportID, Kind: in.Kind})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	rec, err := c.RecordSimulation(context.Background(), "tok", finance.SimulationResult{ReportID: "rep-9", Kind: "life-scenario"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.ID != "sim_1" || rec.ReportID != "rep-9" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if gotKey != "rep-9" || gotAuth != "Bearer tok" {
		t.Fatalf("headers key=%q auth=%q", gotKey, gotAuth)
	}
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid email or password"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Login(context.Background(), "a@b.co", "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "invalid email or password" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if !IsRejected(err) {
		t.Fatalf("4xx should count as rejected")
	}
}

func TestNetworkFailureIsNotRejected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Ping(context.Background())
	if err == nil {
		t.Fatalf("expected an error from a closed server")
	}
	if IsRejected(err) {
		t.Fatalf("network failures must stay retryable: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := LoadSession(); err == nil {
		t.Fatalf("expected an error without a saved session")
	}

	now := time.Now()
	s := SessionFrom(auth.Session{
		AccessToken: "tok",
		ExpiresIn:   3600,
		User:        auth.PublicUser{ID: "user_1", Email: "asha@example.com", Name: "Asha"},
	}, now)
	if err := SaveSession(s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadSession()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AccessToken != "tok" || got.Email != "asha@example.com" {
		t.Fatalf("unexpected session %+v", got)
	}

	s.ExpiresAt = now.Add(-time.Minute)
	if err := SaveSession(s); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := LoadSession(); err == nil {
		t.Fatalf("expected expired session error")
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("clear: %v", err)
	}
}
