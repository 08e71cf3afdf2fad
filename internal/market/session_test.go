package market

import (
	"context"
	"errors"
	mathrand "math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testStocks() []Stock {
	return []Stock{
		listing("ALPHA", "Alpha Ltd", "IT", 100),
		listing("BETA", "Beta Ltd", "Banking", 2000),
	}
}

func activeSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s := NewSession(cfg, testStocks(), WithSource(mathrand.NewSource(7)))
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func TestBuyRejectedAfterTenTrades(t *testing.T) {
	s := activeSession(t, DefaultConfig())
	var lots []Lot
	for i := 0; i < 5; i++ {
		lot, err := s.Buy("ALPHA", 10)
		if err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
		lots = append(lots, lot)
	}
	for _, lot := range lots {
		if _, err := s.Sell(lot.ID); err != nil {
			t.Fatalf("sell %s: %v", lot.ID, err)
		}
	}
	before := s.View()
	if before.Trades != 10 {
		t.Fatalf("trades got %d want 10", before.Trades)
	}
	if _, err := s.Buy("ALPHA", 1); !errors.Is(err, ErrTradeLimit) {
		t.Fatalf("expected ErrTradeLimit, got %v", err)
	}
	after := s.View()
	if !after.Cash.Equal(before.Cash) || after.Trades != before.Trades || len(after.Lots) != len(before.Lots) {
		t.Fatalf("rejected buy changed state")
	}
	if Message(ErrTradeLimit) != "Trade limit reached!" {
		t.Fatalf("unexpected notice %q", Message(ErrTradeLimit))
	}
}

func TestSellAllowedPastTradeCap(t *testing.T) {
	s := activeSession(t, DefaultConfig())
	var first Lot
	for i := 0; i < 10; i++ {
		lot, err := s.Buy("ALPHA", 1)
		if err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
		if i == 0 {
			first = lot
		}
	}
	if _, err := s.Sell(first.ID); err != nil {
		t.Fatalf("sell past the cap: %v", err)
	}
	if got := s.View().Trades; got != 11 {
		t.Fatalf("trades got %d want 11", got)
	}
}

func TestBuyRejectsInsufficientCashAndBadInput(t *testing.T) {
	s := activeSession(t, DefaultConfig())
	if _, err := s.Buy("BETA", 51); !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
	if _, err := s.Buy("BETA", 50); err != nil {
		t.Fatalf("buying exactly the available cash should pass: %v", err)
	}
	if v := s.View(); !v.Cash.IsZero() || v.Trades != 1 {
		t.Fatalf("got cash=%s trades=%d", v.Cash, v.Trades)
	}
	if _, err := s.Buy("GAMMA", 1); !errors.Is(err, ErrStockNotFound) {
		t.Fatalf("expected ErrStockNotFound, got %v", err)
	}
	if _, err := s.Buy("ALPHA", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestSellRealizesProfitAtCurrentPrice(t *testing.T) {
	s := activeSession(t, DefaultConfig())
	lot, err := s.Buy("alpha", 10)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if lot.Symbol != "ALPHA" || !lot.BuyPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected lot %+v", lot)
	}
	s.stocks[0].Price = decimal.NewFromInt(110)

	sale, err := s.Sell(lot.ID)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !sale.Profit.Equal(decimal.NewFromInt(100)) || sale.Message != "Sold 10 shares. Profit: ₹100" {
		t.Fatalf("unexpected sale %+v", sale)
	}
	v := s.View()
	if !v.Cash.Equal(decimal.NewFromInt(100100)) || len(v.Lots) != 0 || !v.Invested.IsZero() {
		t.Fatalf("got cash=%s lots=%d invested=%s", v.Cash, len(v.Lots), v.Invested)
	}
	if _, err := s.Sell(lot.ID); !errors.Is(err, ErrLotNotFound) {
		t.Fatalf("expected ErrLotNotFound, got %v", err)
	}
}

func TestSellRejectsDelistedStock(t *testing.T) {
	s := activeSession(t, DefaultConfig())
	lot, _ := s.Buy("BETA", 1)
	if err := s.Delist("BETA"); err != nil {
		t.Fatalf("delist: %v", err)
	}
	before := s.View()
	if _, err := s.Sell(lot.ID); !errors.Is(err, ErrStockDelisted) {
		t.Fatalf("expected ErrStockDelisted, got %v", err)
	}
	if after := s.View(); after.Trades != before.Trades || len(after.Lots) != 1 {
		t.Fatalf("rejected sell changed state")
	}
	if _, err := s.Buy("BETA", 1); !errors.Is(err, ErrStockDelisted) {
		t.Fatalf("expected ErrStockDelisted on buy, got %v", err)
	}
}

func TestWalkStaysWithinBound(t *testing.T) {
	s := activeSession(t, DefaultConfig())
	bound := decimal.NewFromFloat(0.01)
	slack := decimal.RequireFromString("0.005")
	for i := 0; i < 500; i++ {
		prev := s.View().Stocks
		s.Walk()
		next := s.View().Stocks
		for j := range next {
			limit := prev[j].Price.Mul(bound).Add(slack)
			if next[j].Price.Sub(prev[j].Price).Abs().GreaterThan(limit) {
				t.Fatalf("step %d %s moved %s -> %s", i, next[j].Symbol, prev[j].Price, next[j].Price)
			}
			if !next[j].Change.Equal(next[j].Price.Sub(next[j].BasePrice)) {
				t.Fatalf("change not tracked for %s", next[j].Symbol)
			}
		}
	}
}

func TestCountdownEndsSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duration = 3 * time.Second
	s := activeSession(t, cfg)
	for i := 0; i < 2; i++ {
		if s.Tick() {
			t.Fatalf("session ended early at tick %d", i)
		}
	}
	if !s.Tick() {
		t.Fatalf("session should end when the clock runs out")
	}
	v := s.View()
	if v.Stage != StageResults || v.TimeLeft != 0 {
		t.Fatalf("got stage=%s time=%d", v.Stage, v.TimeLeft)
	}
	if _, err := s.Buy("ALPHA", 1); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("expected ErrWrongStage after results, got %v", err)
	}
	res, err := s.Results()
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if !res.PnL.IsZero() || res.Quality != 70 || res.XPEarned != 150 || res.Feedback != cfg.Feedback[2].Text {
		t.Fatalf("unexpected results %+v", res)
	}
}

func TestResultsMarkOpenLots(t *testing.T) {
	s := activeSession(t, DefaultConfig())
	if _, err := s.Buy("ALPHA", 10); err != nil {
		t.Fatalf("buy: %v", err)
	}
	s.stocks[0].Price = decimal.NewFromInt(1200)
	s.End()
	res, err := s.Results()
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if !res.FinalValue.Equal(decimal.NewFromInt(111000)) || !res.PnL.Equal(decimal.NewFromInt(11000)) {
		t.Fatalf("got final=%s pnl=%s", res.FinalValue, res.PnL)
	}
	if res.Quality != 85 || res.Feedback != DefaultConfig().Feedback[0].Text {
		t.Fatalf("unexpected grading %+v", res)
	}

	loss := activeSession(t, DefaultConfig())
	_, _ = loss.Buy("BETA", 40)
	loss.stocks[1].Price = decimal.NewFromInt(1800)
	loss.End()
	res, _ = loss.Results()
	if res.Quality != 50 || res.Feedback != DefaultConfig().FallbackText {
		t.Fatalf("unexpected loss grading %+v", res)
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClockEvery = time.Millisecond
	cfg.WalkEvery = time.Millisecond
	cfg.Duration = time.Hour
	s := activeSession(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan View, 1)
	done := make(chan struct{})
	go func() {
		Run(ctx, s, nil, func(v View) {
			select {
			case updates <- v:
			default:
			}
		})
		close(done)
	}()
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatalf("no updates from runner")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop after cancel")
	}
	if s.Stage() != StageActive {
		t.Fatalf("cancel should not finish the session")
	}
}

func TestRunReturnsWhenClockRunsOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClockEvery = time.Millisecond
	cfg.WalkEvery = time.Hour
	cfg.Duration = 3 * time.Second
	s := activeSession(t, cfg)

	done := make(chan struct{})
	go func() {
		Run(context.Background(), s, nil, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not finish")
	}
	if s.Stage() != StageResults {
		t.Fatalf("stage got %s", s.Stage())
	}
}
