// Package cli is the HTTP client and local session store used by the
// finwise command.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finwise/internal/auth"
	"finwise/internal/finance"

	"github.com/shopspring/decimal"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// IsRejected reports whether err came back from the server rather than from
// the network. Rejected requests should not be retried.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type LessonListing struct {
	finance.Lesson
	Completed bool `json:"completed"`
}

func (c *Client) Ping(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/api/ping", "", nil, &out, "")
	return out.Message, err
}

func (c *Client) Signup(ctx context.Context, in auth.SignupInput) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/auth/signup", "", in, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Demo(ctx context.Context) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/auth/demo", "", nil, &out, "")
	return out, err
}

func (c *Client) State(ctx context.Context, accessToken string) (finance.AppState, error) {
	var out finance.AppState
	err := c.jsonRequest(ctx, http.MethodGet, "/api/v1/state", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Onboarding(ctx context.Context, accessToken string, in finance.OnboardingInput) (finance.AppState, error) {
	var out finance.AppState
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/onboarding", accessToken, in, &out, "")
	return out, err
}

func (c *Client) AddAccount(ctx context.Context, accessToken string, in finance.AccountInput) (finance.Account, error) {
	var out finance.Account
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/accounts", accessToken, in, &out, "")
	return out, err
}

func (c *Client) UpdateAccount(ctx context.Context, accessToken, id string, patch finance.AccountPatch) (finance.FinancialHub, error) {
	var out finance.FinancialHub
	err := c.jsonRequest(ctx, http.MethodPatch, "/api/v1/accounts/"+url.PathEscape(id), accessToken, patch, &out, "")
	return out, err
}

func (c *Client) RemoveAccount(ctx context.Context, accessToken, id string) (finance.FinancialHub, error) {
	var out finance.FinancialHub
	err := c.jsonRequest(ctx, http.MethodDelete, "/api/v1/accounts/"+url.PathEscape(id), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) SetPrimaryAccount(ctx context.Context, accessToken, id string) (finance.FinancialHub, error) {
	var out finance.FinancialHub
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/accounts/"+url.PathEscape(id)+"/primary", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Balance(ctx context.Context, accessToken, accountID string) (decimal.Decimal, error) {
	path := "/api/v1/balance"
	if accountID != "" {
		path += "?account_id=" + url.QueryEscape(accountID)
	}
	var out struct {
		Balance decimal.Decimal `json:"balance"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, accessToken, nil, &out, "")
	return out.Balance, err
}

func (c *Client) AddTransaction(ctx context.Context, accessToken string, in finance.TransactionInput) (finance.Transaction, error) {
	var out finance.Transaction
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/transactions", accessToken, in, &out, "")
	return out, err
}

func (c *Client) AddIncome(ctx context.Context, accessToken string, in finance.IncomeInput) (finance.Transaction, error) {
	var out finance.Transaction
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/income", accessToken, in, &out, "")
	return out, err
}

func (c *Client) AddGoal(ctx context.Context, accessToken string, in finance.GoalInput) (finance.Goal, error) {
	var out finance.Goal
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/goals", accessToken, in, &out, "")
	return out, err
}

func (c *Client) UpdateGoal(ctx context.Context, accessToken, id string, patch finance.GoalPatch) ([]finance.Goal, error) {
	var out struct {
		Goals []finance.Goal `json:"goals"`
	}
	err := c.jsonRequest(ctx, http.MethodPatch, "/api/v1/goals/"+url.PathEscape(id), accessToken, patch, &out, "")
	return out.Goals, err
}

func (c *Client) RemoveGoal(ctx context.Context, accessToken, id string) ([]finance.Goal, error) {
	var out struct {
		Goals []finance.Goal `json:"goals"`
	}
	err := c.jsonRequest(ctx, http.MethodDelete, "/api/v1/goals/"+url.PathEscape(id), accessToken, nil, &out, "")
	return out.Goals, err
}

func (c *Client) UpdateCIBIL(ctx context.Context, accessToken string, reason finance.CIBILReason) (finance.CIBILData, error) {
	var out finance.CIBILData
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/cibil", accessToken, map[string]any{"reason": reason}, &out, "")
	return out, err
}

func (c *Client) AddXP(ctx context.Context, accessToken string, amount int, reason string) (finance.UserProfile, error) {
	var out finance.UserProfile
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/xp", accessToken, map[string]any{
		"amount": amount,
		"reason": reason,
	}, &out, "")
	return out, err
}

func (c *Client) AddBadge(ctx context.Context, accessToken string, in finance.BadgeInput) (finance.Badge, error) {
	var out finance.Badge
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/badges", accessToken, in, &out, "")
	return out, err
}

func (c *Client) Chat(ctx context.Context, accessToken, message string) ([]finance.ChatMessage, error) {
	var out struct {
		Messages []finance.ChatMessage `json:"messages"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/chat", accessToken, map[string]any{"message": message}, &out, "")
	return out.Messages, err
}

// Coach asks the hosted assistant directly, without touching the chat log.
func (c *Client) Coach(ctx context.Context, message string) (string, error) {
	var out struct {
		Reply string `json:"reply"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/api/coach", "", map[string]any{"message": message}, &out, "")
	return out.Reply, err
}

func (c *Client) MonthlySummary(ctx context.Context, accessToken string) (finance.MonthlySummary, error) {
	var out finance.MonthlySummary
	err := c.jsonRequest(ctx, http.MethodGet, "/api/v1/summary/monthly", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Lessons(ctx context.Context, accessToken string) ([]LessonListing, error) {
	var out struct {
		Lessons []LessonListing `json:"lessons"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/api/v1/lessons", accessToken, nil, &out, "")
	return out.Lessons, err
}

func (c *Client) Lesson(ctx context.Context, accessToken, id string) (finance.Lesson, error) {
	var out finance.Lesson
	err := c.jsonRequest(ctx, http.MethodGet, "/api/v1/lessons/"+url.PathEscape(id), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) AttemptLesson(ctx context.Context, accessToken, id string, answers map[string]int) (finance.LessonResult, error) {
	var out finance.LessonResult
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/lessons/"+url.PathEscape(id)+"/attempts", accessToken, map[string]any{
		"answers": answers,
	}, &out, "")
	return out, err
}

// RecordSimulation reports a finished local run. The report id doubles as the
// idempotency key so a replay is harmless.
func (c *Client) RecordSimulation(ctx context.Context, accessToken string, in finance.SimulationResult) (finance.SimulationRecord, error) {
	var out finance.SimulationRecord
	err := c.jsonRequest(ctx, http.MethodPost, "/api/v1/simulations", accessToken, in, &out, in.ReportID)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, accessToken string) ([]finance.LeaderboardRow, error) {
	var out struct {
		Rows []finance.LeaderboardRow `json:"rows"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/api/v1/leaderboard", accessToken, nil, &out, "")
	return out.Rows, err
}

// Export streams the xlsx workbook into w.
func (c *Client) Export(ctx context.Context, accessToken string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/export.xlsx", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) Do(ctx context.Context, method, path, accessToken string, body map[string]any, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, accessToken, body, &out, idem)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
