package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadAPIFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FINWISE_API_ADDR", "")
	t.Setenv("FINWISE_STORAGE", "")
	t.Setenv("FINWISE_TUNING_FILE", "")
	t.Setenv("FINWISE_OTEL_ENDPOINT", "")
	t.Setenv("FINWISE_OTEL_ENABLED", "")
	t.Setenv("FINWISE_SESSION_IDLE_TTL", "")
	t.Setenv("FINWISE_FINISHED_SESSION_TTL", "")
	t.Setenv("FINWISE_STORE_IDLE_TTL", "")
	t.Setenv("FINWISE_JWT_SECRET", "s3cret")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Storage != "sqlite" || cfg.PingMessage != "ping" || cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.OTelEnabled {
		t.Fatalf("tracing should be off without an endpoint")
	}
	if cfg.SessionTTL != 2*time.Hour || cfg.FinishedTTL != 15*time.Minute || cfg.StoreIdleTTL != 30*time.Minute {
		t.Fatalf("unexpected eviction defaults %v %v %v", cfg.SessionTTL, cfg.FinishedTTL, cfg.StoreIdleTTL)
	}
	if cfg.Tuning.Market.MaxTrades != 10 {
		t.Fatalf("tuning defaults not loaded")
	}
}

func TestLoadAPIFromEnvValidates(t *testing.T) {
	t.Setenv("FINWISE_TUNING_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("FINWISE_JWT_SECRET", "s3cret")
	t.Setenv("FINWISE_STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected postgres without DATABASE_URL to fail")
	}
	t.Setenv("FINWISE_STORAGE", "mongo")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected unknown storage to fail")
	}
	t.Setenv("FINWISE_STORAGE", "memory")
	t.Setenv("FINWISE_JWT_SECRET", "")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected missing secret to fail")
	}
	t.Setenv("FINWISE_JWT_SECRET", "s3cret")
	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("addr got %q", cfg.Addr)
	}
}

func TestLoadTuningFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := `
market:
  max_trades: 5
  duration: 2m
scenario:
  buckets:
    wedding: [100, 50]
lessons:
  pass_mark: 80
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("FINWISE_TUNING_MARKET_WALK_BOUND", "0.02")

	tuning, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	if tuning.Market.MaxTrades != 5 || tuning.Market.Duration != 2*time.Minute || tuning.Lessons.PassMark != 80 {
		t.Fatalf("file values not applied: %+v", tuning)
	}
	if tuning.Market.WalkBound != 0.02 {
		t.Fatalf("env override not applied: %v", tuning.Market.WalkBound)
	}
	if tuning.Market.Capital != 100000 || tuning.Scenario.XPBase != 150 {
		t.Fatalf("defaults lost: %+v", tuning)
	}

	mc := tuning.MarketConfig()
	if mc.MaxTrades != 5 || !mc.Capital.Equal(decimal.NewFromInt(100000)) || mc.WalkBound != 0.02 {
		t.Fatalf("unexpected market config %+v", mc)
	}
	sc := tuning.ScenarioScoring()
	if sc.Buckets["wedding"] != [2]int{100, 50} || sc.Bands[0].Min != 120 {
		t.Fatalf("unexpected scoring %+v", sc)
	}
}

func TestLoadTuningRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("market:\n  max_trades: 0\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTuning(path); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := LoadTuning(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("FINWISE_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("FINWISE_TEST_DOTENV", "")
	os.Unsetenv("FINWISE_TEST_DOTENV")
	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("FINWISE_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("got %q", got)
	}
}
