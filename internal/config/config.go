package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type APIConfig struct {
	Addr         string
	Storage      string
	SQLitePath   string
	DatabaseURL  string
	JWTSecret    string
	TokenTTL     time.Duration
	OpenAIKey    string
	CoachModel   string
	CoachURL     string
	CoachTimeout time.Duration
	SessionTTL   time.Duration
	FinishedTTL  time.Duration
	StoreIdleTTL time.Duration
	PingMessage  string
	StaticDir    string
	CORSOrigin   string
	TuningFile   string
	OTelEndpoint string
	OTelEnabled  bool
	Tuning       Tuning
}

type CLIConfig struct {
	APIBaseURL string
}

// LoadDotEnv reads .env style files into the process environment. Missing
// files are skipped and variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("FINWISE_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:         addr,
		Storage:      strings.ToLower(envDefault("FINWISE_STORAGE", "sqlite")),
		SQLitePath:   envDefault("FINWISE_SQLITE_PATH", "finwise.db"),
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:    strings.TrimSpace(os.Getenv("FINWISE_JWT_SECRET")),
		TokenTTL:     envDurationDefault("FINWISE_TOKEN_TTL", 24*time.Hour),
		OpenAIKey:    strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		CoachModel:   envDefault("FINWISE_COACH_MODEL", "gpt-4"),
		CoachURL:     envDefault("FINWISE_COACH_URL", "https://api.openai.com/v1/chat/completions"),
		CoachTimeout: envDurationDefault("FINWISE_COACH_TIMEOUT", 20*time.Second),
		SessionTTL:   envDurationDefault("FINWISE_SESSION_IDLE_TTL", 2*time.Hour),
		FinishedTTL:  envDurationDefault("FINWISE_FINISHED_SESSION_TTL", 15*time.Minute),
		StoreIdleTTL: envDurationDefault("FINWISE_STORE_IDLE_TTL", 30*time.Minute),
		PingMessage:  envDefault("PING_MESSAGE", "ping"),
		StaticDir:    strings.TrimSpace(os.Getenv("FINWISE_STATIC_DIR")),
		CORSOrigin:   envDefault("FINWISE_CORS_ORIGIN", "*"),
		TuningFile:   strings.TrimSpace(os.Getenv("FINWISE_TUNING_FILE")),
		OTelEndpoint: strings.TrimSpace(os.Getenv("FINWISE_OTEL_ENDPOINT")),
	}
	cfg.OTelEnabled = envBoolDefault("FINWISE_OTEL_ENABLED", cfg.OTelEndpoint != "")

	switch cfg.Storage {
	case "sqlite", "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for postgres storage")
		}
	default:
		return cfg, fmt.Errorf("FINWISE_STORAGE must be sqlite, postgres or memory, got %q", cfg.Storage)
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("FINWISE_JWT_SECRET is required")
	}

	tuning, err := LoadTuning(cfg.TuningFile)
	if err != nil {
		return cfg, err
	}
	cfg.Tuning = tuning
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("FINWISE_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
