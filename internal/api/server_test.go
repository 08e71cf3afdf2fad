package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finwise/internal/auth"
	"finwise/internal/coach"
	"finwise/internal/config"
	"finwise/internal/finance"
	"finwise/internal/market"
	"finwise/internal/storage"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

type testEnv struct {
	t   *testing.T
	srv *Server
	h   http.Handler
}

func newTestEnv(t *testing.T, remote *coach.Remote, tweak func(*config.APIConfig)) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, storage.NewMemory(), remote, tweak)
}

func newTestEnvWithStore(t *testing.T, kv storage.Store, remote *coach.Remote, tweak func(*config.APIConfig)) *testEnv {
	t.Helper()
	cfg := config.APIConfig{
		PingMessage: "pong",
		CORSOrigin:  "*",
		Tuning:      config.DefaultTuning(),
	}
	if tweak != nil {
		tweak(&cfg)
	}
	if remote == nil {
		remote = coach.NewRemote(coach.RemoteConfig{})
	}
	authSvc, err := auth.NewService(kv, "test-secret", auth.Options{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	hub := finance.NewHub(kv, nil, finance.Options{Responder: coach.NewFallback(remote, nil)})
	srv := New(cfg, nil, authSvc, hub, remote)
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv, h: srv.Handler()}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signup(email string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
		"name": "Asha", "email": email, "password": "secret1", "age": 28, "income_type": "salaried",
	})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("signup status %d body %s", rec.Code, rec.Body.String())
	}
	sess := decode[auth.Session](e.t, rec)
	if sess.AccessToken == "" {
		e.t.Fatalf("signup returned no token")
	}
	return sess.AccessToken
}

func (e *testEnv) state(token string) finance.AppState {
	e.t.Helper()
	rec := e.do(http.MethodGet, "/api/v1/state", token, nil)
	if rec.Code != http.StatusOK {
		e.t.Fatalf("state status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[finance.AppState](e.t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["error"].(string)
}

func TestPingAndCORS(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	rec := e.do(http.MethodGet, "/api/ping", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["message"]; got != "pong" {
		t.Fatalf("message got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing cors header")
	}

	pre := e.do(http.MethodOptions, "/api/v1/state", "", nil)
	if pre.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pre.Code)
	}
}

func TestCoachEndpoint(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	rec := e.do(http.MethodPost, "/api/coach", "", map[string]string{"message": "  "})
	if rec.Code != http.StatusBadRequest || errorBody(t, rec) != "Missing message" {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(http.MethodPost, "/api/coach", "", map[string]string{"message": "hi"})
	if rec.Code != http.StatusOK || decode[map[string]string](t, rec)["reply"] != coach.NotConfiguredReply {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}

	remote := coach.NewRemote(coach.RemoteConfig{APIKey: "sk-test", URL: "http://coach.test/v1/chat/completions"})
	remote.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"error":"rate limited"}`)),
		}, nil
	})}
	failing := newTestEnv(t, remote, nil)
	rec = failing.do(http.MethodPost, "/api/coach", "", map[string]string{"message": "hi"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["error"] != "AI provider error" || body["details"] != `{"error":"rate limited"}` {
		t.Fatalf("unexpected body %v", body)
	}

	// The in-app chat falls back to the rules when the provider fails.
	token := failing.signup("asha@example.com")
	rec = failing.do(http.MethodPost, "/api/v1/chat", token, map[string]string{"message": "what is my net worth"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status %d body %s", rec.Code, rec.Body.String())
	}
	msgs := decode[struct {
		Messages []finance.ChatMessage `json:"messages"`
	}](t, rec).Messages
	if len(msgs) != 2 || msgs[1].Role != finance.RoleAssistant || !strings.Contains(msgs[1].Content, "1,30,000") {
		t.Fatalf("unexpected chat %+v", msgs)
	}
}

func TestAuthAndStarterState(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	if rec := e.do(http.MethodGet, "/api/v1/state", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := e.do(http.MethodGet, "/api/v1/state", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}

	token := e.signup("asha@example.com")
	st := e.state(token)
	if len(st.FinancialHub.Accounts) != 5 || len(st.Goals) != 2 {
		t.Fatalf("expected starter data, got %d accounts %d goals", len(st.FinancialHub.Accounts), len(st.Goals))
	}
	if !st.FinancialHub.NetWorth.Equal(decimal.NewFromInt(130000)) {
		t.Fatalf("net worth got %s", st.FinancialHub.NetWorth)
	}
	if st.Progress.Streaks.DailyLogin != 1 {
		t.Fatalf("streak got %d", st.Progress.Streaks.DailyLogin)
	}

	dup := e.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
		"name": "Asha", "email": "ASHA@example.com", "password": "secret1", "age": 28,
	})
	if dup.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status %d", dup.Code)
	}
	bad := e.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "asha@example.com", "password": "nope"})
	if bad.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status %d", bad.Code)
	}
	ok := e.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "asha@example.com", "password": "secret1"})
	if ok.Code != http.StatusOK {
		t.Fatalf("login status %d", ok.Code)
	}
}

func TestFinanceEndpoints(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	token := e.signup("asha@example.com")

	rec := e.do(http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"type": "expense", "amount": "0", "category": "food", "payment_method": "upi",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero amount, got %d", rec.Code)
	}
	rec = e.do(http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"type": "expense", "amount": "1200", "category": "bill", "payment_method": "upi",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expense status %d body %s", rec.Code, rec.Body.String())
	}

	balance := decode[struct {
		Balance decimal.Decimal `json:"balance"`
	}](t, e.do(http.MethodGet, "/api/v1/balance", token, nil))
	if !balance.Balance.Equal(decimal.NewFromInt(23800)) {
		t.Fatalf("primary balance got %s", balance.Balance)
	}

	rec = e.do(http.MethodPost, "/api/v1/cibil", token, map[string]string{"reason": "nonsense"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown reason, got %d", rec.Code)
	}
	rec = e.do(http.MethodPost, "/api/v1/xp", token, map[string]any{"amount": -5, "reason": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative xp, got %d", rec.Code)
	}

	rec = e.do(http.MethodDelete, "/api/v1/goals/does-not-exist", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("removing a missing goal should be a no-op, got %d", rec.Code)
	}

	rows := decode[struct {
		Rows []finance.LeaderboardRow `json:"rows"`
	}](t, e.do(http.MethodGet, "/api/v1/leaderboard", token, nil)).Rows
	if len(rows) != 5 || rows[len(rows)-1].Name != "Asha" {
		t.Fatalf("unexpected leaderboard %+v", rows)
	}

	rec = e.do(http.MethodPost, "/api/v1/simulations", token, map[string]any{
		"report_id": "offline-1", "kind": "stock-market", "simulation_id": "stock-market", "score": 70, "xp_earned": 150,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("simulations status %d body %s", rec.Code, rec.Body.String())
	}
	e.do(http.MethodPost, "/api/v1/simulations", token, map[string]any{
		"report_id": "offline-1", "kind": "stock-market", "simulation_id": "stock-market", "score": 70, "xp_earned": 150,
	})
	st := e.state(token)
	if len(st.Simulations.History) != 1 || st.User.XP != 150+10 {
		t.Fatalf("replayed report changed state: history=%d xp=%d", len(st.Simulations.History), st.User.XP)
	}
}

func TestLifeScenarioGameRecordsOnce(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	token := e.signup("asha@example.com")
	other := e.signup("ravi@example.com")

	rec := e.do(http.MethodPost, "/api/v1/scenarios/nope/games", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown scenario status %d", rec.Code)
	}
	rec = e.do(http.MethodPost, "/api/v1/scenarios/job-loss/games", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create game status %d", rec.Code)
	}
	game := decode[gamePayload](t, rec)

	if rec := e.do(http.MethodGet, "/api/v1/games/"+game.ID, other, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("another user should not see the game, got %d", rec.Code)
	}
	if rec := e.do(http.MethodPost, "/api/v1/games/"+game.ID+"/choices", token, map[string]string{"decision_id": "d1"}); rec.Code != http.StatusConflict {
		t.Fatalf("choosing before start should conflict, got %d", rec.Code)
	}
	if rec := e.do(http.MethodPost, "/api/v1/games/"+game.ID+"/start", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("start status %d", rec.Code)
	}
	for _, d := range []string{"d1", "d1", "d1", "end"} {
		rec := e.do(http.MethodPost, "/api/v1/games/"+game.ID+"/choices", token, map[string]string{"decision_id": d})
		if rec.Code != http.StatusOK {
			t.Fatalf("choose %s status %d body %s", d, rec.Code, rec.Body.String())
		}
	}

	final := decode[gamePayload](t, e.do(http.MethodGet, "/api/v1/games/"+game.ID, token, nil))
	if final.Results == nil || final.Results.Score != 195 || final.Record == nil {
		t.Fatalf("unexpected final game %+v", final)
	}
	if rec := e.do(http.MethodPost, "/api/v1/games/"+game.ID+"/choices", token, map[string]string{"decision_id": "end"}); rec.Code != http.StatusConflict {
		t.Fatalf("choosing after results should conflict, got %d", rec.Code)
	}

	st := e.state(token)
	if st.User.XP != 265 || len(st.Simulations.History) != 1 || st.Simulations.History[0].SimulationID != "job-loss" {
		t.Fatalf("unexpected state xp=%d history=%+v", st.User.XP, st.Simulations.History)
	}

	if rec := e.do(http.MethodDelete, "/api/v1/games/"+game.ID, token, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}
	if rec := e.do(http.MethodGet, "/api/v1/games/"+game.ID, token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted game still visible: %d", rec.Code)
	}
}

type failingStore struct {
	storage.Store
	fail bool
}

func (f *failingStore) Put(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.Put(ctx, key, value)
}

func TestLifeScenarioRecordRetriesAfterFailedSave(t *testing.T) {
	kv := &failingStore{Store: storage.NewMemory()}
	e := newTestEnvWithStore(t, kv, nil, nil)
	token := e.signup("asha@example.com")

	game := decode[gamePayload](t, e.do(http.MethodPost, "/api/v1/scenarios/job-loss/games", token, nil))
	path := "/api/v1/games/" + game.ID
	if rec := e.do(http.MethodPost, path+"/start", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("start status %d", rec.Code)
	}
	for _, d := range []string{"d1", "d1", "d1"} {
		if rec := e.do(http.MethodPost, path+"/choices", token, map[string]string{"decision_id": d}); rec.Code != http.StatusOK {
			t.Fatalf("choose %s status %d", d, rec.Code)
		}
	}

	kv.fail = true
	if rec := e.do(http.MethodPost, path+"/choices", token, map[string]string{"decision_id": "end"}); rec.Code != http.StatusInternalServerError {
		t.Fatalf("final choice with failing storage got %d", rec.Code)
	}
	if rec := e.do(http.MethodGet, path, token, nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("read with failing storage got %d", rec.Code)
	}

	kv.fail = false
	got := decode[gamePayload](t, e.do(http.MethodGet, path, token, nil))
	if got.Record == nil || got.Results == nil || got.Results.Score != 195 {
		t.Fatalf("expected the run to be recorded on retry, got %+v", got)
	}
	again := decode[gamePayload](t, e.do(http.MethodGet, path, token, nil))
	if again.Record == nil || again.Record.ID != got.Record.ID {
		t.Fatalf("record changed between reads: %+v vs %+v", got.Record, again.Record)
	}

	st := e.state(token)
	if st.User.XP != 265 || len(st.Simulations.History) != 1 {
		t.Fatalf("unexpected state xp=%d history=%d", st.User.XP, len(st.Simulations.History))
	}
}

func TestMarketSessionFlow(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	token := e.signup("asha@example.com")

	rec := e.do(http.MethodPost, "/api/v1/market/sessions", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d", rec.Code)
	}
	sess := decode[marketPayload](t, rec)
	base := "/api/v1/market/sessions/" + sess.ID
	if sess.View.Stage != market.StageRules || sess.View.TimeLeft != 300 {
		t.Fatalf("unexpected new session %+v", sess.View)
	}

	if rec := e.do(http.MethodPost, base+"/buy", token, map[string]any{"symbol": "TCS", "quantity": 1}); rec.Code != http.StatusConflict {
		t.Fatalf("buying before start should conflict, got %d", rec.Code)
	}
	if rec := e.do(http.MethodPost, base+"/start", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("start status %d", rec.Code)
	}

	rec = e.do(http.MethodPost, base+"/buy", token, map[string]any{"symbol": "TCS", "quantity": 1000})
	if rec.Code != http.StatusBadRequest || errorBody(t, rec) != "Insufficient capital!" {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
	rec = e.do(http.MethodPost, base+"/buy", token, map[string]any{"symbol": "reliance", "quantity": 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy status %d body %s", rec.Code, rec.Body.String())
	}
	bought := decode[struct {
		Lot market.Lot `json:"lot"`
	}](t, rec)
	rec = e.do(http.MethodPost, base+"/sell", token, map[string]string{"lot_id": bought.Lot.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("sell status %d body %s", rec.Code, rec.Body.String())
	}
	if rec := e.do(http.MethodPost, base+"/sell", token, map[string]string{"lot_id": bought.Lot.ID}); rec.Code != http.StatusNotFound {
		t.Fatalf("selling a closed lot should 404, got %d", rec.Code)
	}

	rec = e.do(http.MethodPost, base+"/end", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("end status %d body %s", rec.Code, rec.Body.String())
	}
	ended := decode[marketPayload](t, rec)
	if ended.View.Stage != market.StageResults || ended.Results == nil || ended.Record == nil {
		t.Fatalf("unexpected ended session %+v", ended)
	}
	if rec := e.do(http.MethodPost, base+"/end", token, nil); rec.Code != http.StatusConflict {
		t.Fatalf("ending twice should conflict, got %d", rec.Code)
	}

	st := e.state(token)
	if len(st.Simulations.History) != 1 || st.Simulations.History[0].Kind != kindStockMarket {
		t.Fatalf("unexpected history %+v", st.Simulations.History)
	}
	if st.User.XP != ended.Results.XPEarned {
		t.Fatalf("xp got %d want %d", st.User.XP, ended.Results.XPEarned)
	}

	if rec := e.do(http.MethodDelete, base, token, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}
	if rec := e.do(http.MethodGet, base, token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted session still visible: %d", rec.Code)
	}
}

func TestMarketStreamClosesWhenSessionDeleted(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	token := e.signup("asha@example.com")
	sess := decode[marketPayload](t, e.do(http.MethodPost, "/api/v1/market/sessions", token, nil))

	ts := httptest.NewServer(e.h)
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/market/sessions/" + sess.ID + "/stream?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first marketPayload
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if first.ID != sess.ID || first.View.Stage != market.StageRules {
		t.Fatalf("unexpected first frame %+v", first)
	}

	if rec := e.do(http.MethodDelete, "/api/v1/market/sessions/"+sess.ID, token, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}
	for {
		var frame marketPayload
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("expected normal close, got %v", err)
			}
			break
		}
	}
}

func TestExportWorkbook(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	token := e.signup("asha@example.com")

	rec := e.do(http.MethodGet, "/api/v1/export.xlsx", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("content type got %q", rec.Header().Get("Content-Type"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); len(got) != 3 || got[0] != "Accounts" {
		t.Fatalf("sheets got %v", got)
	}
	rows, err := f.GetRows("Accounts")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	// header, five starter accounts and the net worth line
	if len(rows) != 7 || rows[1][0] != "Primary Savings" || rows[6][0] != "Net Worth" {
		t.Fatalf("unexpected account rows %v", rows)
	}
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>finwise</html>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	e := newTestEnv(t, nil, func(cfg *config.APIConfig) { cfg.StaticDir = dir })

	rec := e.do(http.MethodGet, "/dashboard/goals", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "finwise") {
		t.Fatalf("spa fallback got %d %q", rec.Code, rec.Body.String())
	}
	rec = e.do(http.MethodGet, "/app.js", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "console.log") {
		t.Fatalf("asset got %d %q", rec.Code, rec.Body.String())
	}
	rec = e.do(http.MethodGet, "/api/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown api path got %d", rec.Code)
	}
}
