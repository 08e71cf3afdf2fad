package config

import (
	"fmt"
	"strings"
	"time"

	"finwise/internal/market"
	"finwise/internal/scenario"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type MarketTuning struct {
	Duration        time.Duration `mapstructure:"duration"`
	ClockEvery      time.Duration `mapstructure:"clock_every"`
	WalkEvery       time.Duration `mapstructure:"walk_every"`
	WalkBound       float64       `mapstructure:"walk_bound"`
	Capital         int64         `mapstructure:"capital"`
	MaxTrades       int           `mapstructure:"max_trades"`
	DefaultQuantity int           `mapstructure:"default_quantity"`
	XP              int           `mapstructure:"xp"`
	HighWater       float64       `mapstructure:"high_water"`
	QualityHigh     int           `mapstructure:"quality_high"`
	QualityMid      int           `mapstructure:"quality_mid"`
	QualityLow      int           `mapstructure:"quality_low"`
	// ProfitBands are the profit levels that pick the closing remark, highest first.
	ProfitBands []int64 `mapstructure:"profit_bands"`
}

type ScenarioTuning struct {
	StartScore         int              `mapstructure:"start_score"`
	XPBase             int              `mapstructure:"xp_base"`
	XPPivot            int              `mapstructure:"xp_pivot"`
	FeedbackThresholds []int            `mapstructure:"feedback_thresholds"`
	Buckets            map[string][]int `mapstructure:"buckets"`
	FeedbackDelay      time.Duration    `mapstructure:"feedback_delay"`
}

type LessonTuning struct {
	PassMark int `mapstructure:"pass_mark"`
}

// Tuning holds the product numbers that can be changed without a rebuild.
type Tuning struct {
	Market   MarketTuning   `mapstructure:"market"`
	Scenario ScenarioTuning `mapstructure:"scenario"`
	Lessons  LessonTuning   `mapstructure:"lessons"`
}

func DefaultTuning() Tuning {
	return Tuning{
		Market: MarketTuning{
			Duration:        300 * time.Second,
			ClockEvery:      time.Second,
			WalkEvery:       5 * time.Second,
			WalkBound:       0.01,
			Capital:         100000,
			MaxTrades:       10,
			DefaultQuantity: 10,
			XP:              150,
			HighWater:       1.05,
			QualityHigh:     85,
			QualityMid:      70,
			QualityLow:      50,
			ProfitBands:     []int64{10000, 0, -5000},
		},
		Scenario: ScenarioTuning{
			StartScore:         100,
			XPBase:             150,
			XPPivot:            80,
			FeedbackThresholds: []int{120, 100, 80},
			Buckets:            map[string][]int{},
			FeedbackDelay:      2 * time.Second,
		},
		Lessons: LessonTuning{PassMark: 70},
	}
}

// LoadTuning starts from DefaultTuning, applies the optional file at path and
// then FINWISE_TUNING_* variables (FINWISE_TUNING_MARKET_MAX_TRADES=5).
func LoadTuning(path string) (Tuning, error) {
	def := DefaultTuning()
	v := viper.New()
	v.SetDefault("market.duration", def.Market.Duration)
	v.SetDefault("market.clock_every", def.Market.ClockEvery)
	v.SetDefault("market.walk_every", def.Market.WalkEvery)
	v.SetDefault("market.walk_bound", def.Market.WalkBound)
	v.SetDefault("market.capital", def.Market.Capital)
	v.SetDefault("market.max_trades", def.Market.MaxTrades)
	v.SetDefault("market.default_quantity", def.Market.DefaultQuantity)
	v.SetDefault("market.xp", def.Market.XP)
	v.SetDefault("market.high_water", def.Market.HighWater)
	v.SetDefault("market.quality_high", def.Market.QualityHigh)
	v.SetDefault("market.quality_mid", def.Market.QualityMid)
	v.SetDefault("market.quality_low", def.Market.QualityLow)
	v.SetDefault("market.profit_bands", def.Market.ProfitBands)
	v.SetDefault("scenario.start_score", def.Scenario.StartScore)
	v.SetDefault("scenario.xp_base", def.Scenario.XPBase)
	v.SetDefault("scenario.xp_pivot", def.Scenario.XPPivot)
	v.SetDefault("scenario.feedback_thresholds", def.Scenario.FeedbackThresholds)
	v.SetDefault("scenario.buckets", def.Scenario.Buckets)
	v.SetDefault("scenario.feedback_delay", def.Scenario.FeedbackDelay)
	v.SetDefault("lessons.pass_mark", def.Lessons.PassMark)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Tuning{}, fmt.Errorf("read tuning file: %w", err)
		}
	}
	v.SetEnvPrefix("FINWISE_TUNING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var t Tuning
	if err := v.Unmarshal(&t); err != nil {
		return Tuning{}, fmt.Errorf("unmarshal tuning: %w", err)
	}
	if err := t.validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

func (t Tuning) validate() error {
	if t.Market.MaxTrades <= 0 || t.Market.Capital <= 0 {
		return fmt.Errorf("tuning: market capital and max_trades must be > 0")
	}
	if t.Market.WalkBound < 0 || t.Market.WalkBound >= 1 {
		return fmt.Errorf("tuning: market walk_bound must be in [0, 1)")
	}
	if t.Market.ClockEvery <= 0 || t.Market.WalkEvery <= 0 || t.Market.Duration < time.Second {
		return fmt.Errorf("tuning: market intervals must be positive")
	}
	if len(t.Market.ProfitBands) != 3 {
		return fmt.Errorf("tuning: market profit_bands needs 3 values")
	}
	if len(t.Scenario.FeedbackThresholds) != 3 {
		return fmt.Errorf("tuning: scenario feedback_thresholds needs 3 values")
	}
	for id, b := range t.Scenario.Buckets {
		if len(b) != 2 {
			return fmt.Errorf("tuning: scenario bucket %q needs [high, mid]", id)
		}
	}
	return nil
}

// MarketConfig maps the market section onto a session config. Remark texts
// keep their defaults; only the thresholds move.
func (t Tuning) MarketConfig() market.Config {
	cfg := market.DefaultConfig()
	m := t.Market
	cfg.Duration = m.Duration
	cfg.ClockEvery = m.ClockEvery
	cfg.WalkEvery = m.WalkEvery
	cfg.WalkBound = m.WalkBound
	cfg.Capital = decimal.NewFromInt(m.Capital)
	cfg.MaxTrades = m.MaxTrades
	cfg.DefaultQty = m.DefaultQuantity
	cfg.XP = m.XP
	cfg.HighWater = decimal.NewFromFloat(m.HighWater)
	cfg.QualityHigh = m.QualityHigh
	cfg.QualityMid = m.QualityMid
	cfg.QualityLow = m.QualityLow
	for i := range cfg.Feedback {
		if i < len(m.ProfitBands) {
			cfg.Feedback[i].Above = decimal.NewFromInt(m.ProfitBands[i])
		}
	}
	return cfg
}

func (t Tuning) ScenarioScoring() scenario.Scoring {
	s := scenario.DefaultScoring()
	sc := t.Scenario
	s.StartScore = sc.StartScore
	s.XPBase = sc.XPBase
	s.XPPivot = sc.XPPivot
	for i := range s.Bands {
		if i < len(sc.FeedbackThresholds) {
			s.Bands[i].Min = sc.FeedbackThresholds[i]
		}
	}
	if len(sc.Buckets) > 0 {
		s.Buckets = make(map[string][2]int, len(sc.Buckets))
		for id, b := range sc.Buckets {
			if len(b) == 2 {
				s.Buckets[id] = [2]int{b[0], b[1]}
			}
		}
	}
	return s
}
