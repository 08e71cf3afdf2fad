// Package market runs the timed stock-trading practice sessions.
package market

import (
	"errors"
	"fmt"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"finwise/internal/money"

	"github.com/shopspring/decimal"
)

type Stage string

const (
	StageRules   Stage = "rules"
	StageActive  Stage = "active"
	StageResults Stage = "results"
)

var (
	ErrWrongStage       = errors.New("action not allowed in current stage")
	ErrTradeLimit       = errors.New("trade limit reached")
	ErrInsufficientCash = errors.New("insufficient capital")
	ErrStockNotFound    = errors.New("stock not found")
	ErrStockDelisted    = errors.New("stock is delisted")
	ErrLotNotFound      = errors.New("lot not found")
	ErrInvalidQuantity  = errors.New("quantity must be > 0")
)

var minPrice = decimal.RequireFromString("0.01")

// Message turns a rejected trade into the short notice shown to the player.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrTradeLimit):
		return "Trade limit reached!"
	case errors.Is(err, ErrInsufficientCash):
		return "Insufficient capital!"
	case errors.Is(err, ErrStockNotFound), errors.Is(err, ErrStockDelisted):
		return "That stock is not available."
	case errors.Is(err, ErrLotNotFound):
		return "That position is already closed."
	case errors.Is(err, ErrInvalidQuantity):
		return "Enter a quantity above zero."
	case err != nil:
		return err.Error()
	}
	return ""
}

// Feedback picks a closing remark by profit: the first band whose Above is
// strictly below the profit wins, otherwise Fallback.
type Feedback struct {
	Above decimal.Decimal
	Text  string
}

type Config struct {
	Duration     time.Duration
	ClockEvery   time.Duration
	WalkEvery    time.Duration
	WalkBound    float64
	Capital      decimal.Decimal
	MaxTrades    int
	DefaultQty   int
	XP           int
	HighWater    decimal.Decimal
	QualityHigh  int
	QualityMid   int
	QualityLow   int
	Feedback     []Feedback
	FallbackText string
}

func DefaultConfig() Config {
	return Config{
		Duration:    300 * time.Second,
		ClockEvery:  time.Second,
		WalkEvery:   5 * time.Second,
		WalkBound:   0.01,
		Capital:     decimal.NewFromInt(100000),
		MaxTrades:   10,
		DefaultQty:  10,
		XP:          150,
		HighWater:   decimal.RequireFromString("1.05"),
		QualityHigh: 85,
		QualityMid:  70,
		QualityLow:  50,
		Feedback: []Feedback{
			{Above: decimal.NewFromInt(10000), Text: "Excellent trading! You showed good market timing and discipline. Your strategy of buying low-volatility stocks and holding through small dips paid off. Continue building this confidence!"},
			{Above: decimal.Zero, Text: "Good job keeping your capital safe! You made profitable trades, but could have been more aggressive. Practice reading market trends to identify better entry points."},
			{Above: decimal.NewFromInt(-5000), Text: "Don't worry about the loss - even experienced traders have bad days. You learned about FOMO and panic selling. Next time, stick to a plan and avoid reactive trades."},
		},
		FallbackText: "This loss is a crucial lesson! You likely panic-sold or bought at peaks. Remember: emotions are a trader's worst enemy. Practice staying calm and following your strategy.",
	}
}

type Lot struct {
	ID       string          `json:"id"`
	Symbol   string          `json:"symbol"`
	Quantity int             `json:"quantity"`
	BuyPrice decimal.Decimal `json:"buy_price"`
	BuyTime  time.Time       `json:"buy_time"`
}

type Sale struct {
	Lot      Lot             `json:"lot"`
	Price    decimal.Decimal `json:"price"`
	Proceeds decimal.Decimal `json:"proceeds"`
	Profit   decimal.Decimal `json:"profit"`
	Message  string          `json:"message"`
}

type Results struct {
	FinalValue decimal.Decimal `json:"final_value"`
	Cash       decimal.Decimal `json:"cash"`
	Holdings   decimal.Decimal `json:"holdings"`
	PnL        decimal.Decimal `json:"pnl"`
	Quality    int             `json:"quality"`
	Feedback   string          `json:"feedback"`
	XPEarned   int             `json:"xp_earned"`
	Trades     int             `json:"trades"`
}

type View struct {
	Stage      Stage           `json:"stage"`
	TimeLeft   int             `json:"time_left"`
	Cash       decimal.Decimal `json:"cash"`
	Invested   decimal.Decimal `json:"invested"`
	Holdings   decimal.Decimal `json:"holdings"`
	TotalValue decimal.Decimal `json:"total_value"`
	PnL        decimal.Decimal `json:"pnl"`
	Trades     int             `json:"trades"`
	MaxTrades  int             `json:"max_trades"`
	Stocks     []Stock         `json:"stocks"`
	Lots       []Lot           `json:"lots"`
}

// Session is one timed trading round. All methods are safe for concurrent use.
type Session struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	rand     *mathrand.Rand
	stage    Stage
	timeLeft int
	cash     decimal.Decimal
	invested decimal.Decimal
	stocks   []Stock
	lots     []Lot
	trades   int
	lotSeq   int
}

type Option func(*Session)

// WithSource makes the price walk deterministic.
func WithSource(src mathrand.Source) Option {
	return func(s *Session) { s.rand = mathrand.New(src) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func NewSession(cfg Config, stocks []Stock, opts ...Option) *Session {
	if stocks == nil {
		stocks = DefaultStocks()
	}
	s := &Session{
		cfg:      cfg,
		now:      time.Now,
		rand:     mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		stage:    StageRules,
		timeLeft: int(cfg.Duration / time.Second),
		cash:     cfg.Capital,
		invested: decimal.Zero,
		stocks:   append([]Stock(nil), stocks...),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Config() Config {
	return s.cfg
}

func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageRules {
		return fmt.Errorf("%w: start from %s", ErrWrongStage, s.stage)
	}
	s.stage = StageActive
	return nil
}

// Tick advances the countdown by one second and reports whether the session
// is over.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageActive {
		return s.stage == StageResults
	}
	if s.timeLeft <= 1 {
		s.timeLeft = 0
		s.stage = StageResults
		return true
	}
	s.timeLeft--
	return false
}

// End closes an active session early.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == StageActive {
		s.stage = StageResults
	}
}

// Walk moves every listed price by a uniform step within ±WalkBound of its
// current value.
func (s *Session) Walk() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageActive {
		return
	}
	for i := range s.stocks {
		st := &s.stocks[i]
		if st.Delisted {
			continue
		}
		step := (s.rand.Float64()*2 - 1) * s.cfg.WalkBound
		next := st.Price.Mul(decimal.NewFromFloat(1 + step)).Round(2)
		if next.LessThan(minPrice) {
			next = minPrice
		}
		st.Price = next
		st.Change = next.Sub(st.BasePrice)
		st.ChangePercent = money.Percent(st.Change, st.BasePrice)
	}
}

// Delist removes a stock from trading. Lots already held can no longer be sold.
func (s *Session) Delist(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.stockIndex(symbol)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrStockNotFound, symbol)
	}
	s.stocks[idx].Delisted = true
	return nil
}

// Buy opens a lot at the current price. Rejected buys change nothing.
func (s *Session) Buy(symbol string, qty int) (Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageActive {
		return Lot{}, fmt.Errorf("%w: buy in %s", ErrWrongStage, s.stage)
	}
	if qty <= 0 {
		return Lot{}, ErrInvalidQuantity
	}
	if s.trades >= s.cfg.MaxTrades {
		return Lot{}, ErrTradeLimit
	}
	idx := s.stockIndex(symbol)
	if idx < 0 {
		return Lot{}, fmt.Errorf("%w: %s", ErrStockNotFound, symbol)
	}
	stock := s.stocks[idx]
	if stock.Delisted {
		return Lot{}, fmt.Errorf("%w: %s", ErrStockDelisted, stock.Symbol)
	}
	cost := stock.Price.Mul(decimal.NewFromInt(int64(qty)))
	if cost.GreaterThan(s.cash) {
		return Lot{}, ErrInsufficientCash
	}

	s.lotSeq++
	lot := Lot{
		ID:       fmt.Sprintf("trade_%d", s.lotSeq),
		Symbol:   stock.Symbol,
		Quantity: qty,
		BuyPrice: stock.Price,
		BuyTime:  s.now(),
	}
	s.cash = s.cash.Sub(cost)
	s.invested = s.invested.Add(cost)
	s.lots = append(s.lots, lot)
	s.trades++
	return lot, nil
}

// Sell closes a whole lot at the current price. Sells are not capped.
func (s *Session) Sell(lotID string) (Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageActive {
		return Sale{}, fmt.Errorf("%w: sell in %s", ErrWrongStage, s.stage)
	}
	li := -1
	for i, lot := range s.lots {
		if lot.ID == lotID {
			li = i
			break
		}
	}
	if li < 0 {
		return Sale{}, fmt.Errorf("%w: %s", ErrLotNotFound, lotID)
	}
	lot := s.lots[li]
	idx := s.stockIndex(lot.Symbol)
	if idx < 0 || s.stocks[idx].Delisted {
		return Sale{}, fmt.Errorf("%w: %s", ErrStockDelisted, lot.Symbol)
	}

	qty := decimal.NewFromInt(int64(lot.Quantity))
	price := s.stocks[idx].Price
	proceeds := price.Mul(qty)
	profit := price.Sub(lot.BuyPrice).Mul(qty)

	s.cash = s.cash.Add(proceeds)
	s.invested = s.invested.Sub(lot.BuyPrice.Mul(qty))
	s.lots = append(s.lots[:li], s.lots[li+1:]...)
	s.trades++

	label := "Loss"
	if profit.IsPositive() {
		label = "Profit"
	}
	return Sale{
		Lot:      lot,
		Price:    price,
		Proceeds: proceeds,
		Profit:   profit,
		Message:  fmt.Sprintf("Sold %d shares. %s: %s", lot.Quantity, label, money.FormatINR(profit.Abs())),
	}, nil
}

func (s *Session) Results() (Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageResults {
		return Results{}, fmt.Errorf("%w: results in %s", ErrWrongStage, s.stage)
	}
	holdings := s.holdings()
	total := s.cash.Add(holdings)
	pnl := total.Sub(s.cfg.Capital)
	return Results{
		FinalValue: total,
		Cash:       s.cash,
		Holdings:   holdings,
		PnL:        pnl,
		Quality:    s.quality(total),
		Feedback:   s.feedback(pnl),
		XPEarned:   s.cfg.XP,
		Trades:     s.trades,
	}, nil
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	holdings := s.holdings()
	total := s.cash.Add(holdings)
	return View{
		Stage:      s.stage,
		TimeLeft:   s.timeLeft,
		Cash:       s.cash,
		Invested:   s.invested,
		Holdings:   holdings,
		TotalValue: total,
		PnL:        total.Sub(s.cfg.Capital),
		Trades:     s.trades,
		MaxTrades:  s.cfg.MaxTrades,
		Stocks:     append([]Stock(nil), s.stocks...),
		Lots:       append([]Lot{}, s.lots...),
	}
}

func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// holdings marks open lots at current prices; lots of missing stocks count zero.
func (s *Session) holdings() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range s.lots {
		if idx := s.stockIndex(lot.Symbol); idx >= 0 {
			total = total.Add(s.stocks[idx].Price.Mul(decimal.NewFromInt(int64(lot.Quantity))))
		}
	}
	return total
}

func (s *Session) quality(total decimal.Decimal) int {
	switch {
	case total.GreaterThanOrEqual(s.cfg.Capital.Mul(s.cfg.HighWater)):
		return s.cfg.QualityHigh
	case total.GreaterThanOrEqual(s.cfg.Capital):
		return s.cfg.QualityMid
	default:
		return s.cfg.QualityLow
	}
}

func (s *Session) feedback(pnl decimal.Decimal) string {
	for _, f := range s.cfg.Feedback {
		if pnl.GreaterThan(f.Above) {
			return f.Text
		}
	}
	return s.cfg.FallbackText
}

func (s *Session) stockIndex(symbol string) int {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for i, st := range s.stocks {
		if st.Symbol == symbol {
			return i
		}
	}
	return -1
}
