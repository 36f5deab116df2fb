package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hetulpatel/Gladiator/internal/models"
)

// Config is the full runtime configuration, loaded from the environment.
// Every binary shares it so thresholds cannot drift between the engine and
// the standalone tools.
type Config struct {
	Environment models.Environment

	// Kalshi
	KalshiAPIKey  string
	KalshiBaseURL string // optional override, mostly for tests

	// LLM
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string
	LLMTimeout time.Duration

	// Simulation service
	SimURL     string
	SimTimeout time.Duration

	// Scout
	ScanPageSize  int
	MinVolume     int64
	MinPriceCents int
	MaxPriceCents int

	// Gates
	MaxOpportunityAge time.Duration
	MaxSpreadCents    int
	MaxVariance       float64

	// Risk
	KellyMultiplier float64
	MaxBankrollFrac float64

	// Sentinel
	SentinelPollInterval time.Duration
	MaxDrawdownFrac      float64
	MaxDrawdownUSD       float64

	// Cycle
	CallTimeout   time.Duration
	CycleCooldown time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	VerdictTTL    time.Duration
	CooldownTTL   time.Duration

	// Kafka event sink
	KafkaBrokers []string
	EventTopic   string

	// Journal
	JournalPath string
}

// Load reads .env (if present) and materializes the config with defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := models.Environment(strings.ToLower(envString("GLADIATOR_ENV", string(models.EnvSandbox))))
	if env != models.EnvSandbox && env != models.EnvLive {
		return nil, fmt.Errorf("config: GLADIATOR_ENV must be sandbox or live, got %q", env)
	}

	cfg := &Config{
		Environment:   env,
		KalshiAPIKey:  os.Getenv("KALSHI_API_KEY"),
		KalshiBaseURL: os.Getenv("KALSHI_BASE_URL"),

		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMBaseURL: os.Getenv("LLM_BASE_URL"),
		LLMModel:   os.Getenv("LLM_MODEL"),
		LLMTimeout: envDuration("LLM_TIMEOUT", 45*time.Second),

		SimURL:     envString("SIM_URL", "http://localhost:8196"),
		SimTimeout: envDuration("SIM_TIMEOUT", 15*time.Second),

		ScanPageSize:  envInt("SCOUT_PAGE_SIZE", 100),
		MinVolume:     int64(envInt("SCOUT_MIN_VOLUME", 1000)),
		MinPriceCents: envInt("SCOUT_MIN_PRICE", 5),
		MaxPriceCents: envInt("SCOUT_MAX_PRICE", 95),

		MaxOpportunityAge: envDuration("GATE_MAX_AGE", 5*time.Minute),
		MaxSpreadCents:    envInt("GATE_MAX_SPREAD", 10),
		MaxVariance:       envFloat("GATE_MAX_VARIANCE", 0.25),

		KellyMultiplier: envFloat("RISK_KELLY_MULTIPLIER", 0.25),
		MaxBankrollFrac: envFloat("RISK_MAX_BANKROLL_FRAC", 0.05),

		SentinelPollInterval: envDuration("SENTINEL_POLL_INTERVAL", 5*time.Second),
		MaxDrawdownFrac:      envFloat("SENTINEL_MAX_DRAWDOWN_FRAC", 0.15),
		MaxDrawdownUSD:       envFloat("SENTINEL_MAX_DRAWDOWN_USD", 45),

		CallTimeout:   envDuration("CYCLE_CALL_TIMEOUT", 30*time.Second),
		CycleCooldown: envDuration("CYCLE_COOLDOWN", 10*time.Second),

		RedisAddr:     envString("REDIS_ADDR", ""),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		VerdictTTL:    envDuration("VERDICT_TTL", 6*time.Hour),
		CooldownTTL:   envDuration("COOLDOWN_TTL", 24*time.Hour),

		KafkaBrokers: splitList(envString("KAFKA_BROKERS", "")),
		EventTopic:   envString("EVENTS_KAFKA_TOPIC", "gladiator.events"),

		JournalPath: envString("JOURNAL_PATH", "data/gladiator.db"),
	}
	return cfg, nil
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
