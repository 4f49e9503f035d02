package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	LogLevel string

	OpenAIKey    string
	OpenAIModel  string
	ModelTimeout time.Duration

	MaxPersonas  int
	MaxMessages  int
	MaxFileBytes int64
	SampleCap    int

	LedgerBackend string // "memory" or "postgres"
	DatabaseURL   string

	NatsURL   string
	NatsToken string

	TicketTTL time.Duration
}

func Load() Config {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	return Config{
		Port:     envInt("CONVOCATE_PORT", 8080),
		LogLevel: envStr("LOG_LEVEL", "info"),

		OpenAIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIModel:  envStr("CONVOCATE_MODEL", "gpt-4o-mini"),
		ModelTimeout: envSeconds("MODEL_TIMEOUT_SECONDS", 60*time.Second),

		MaxPersonas:  envInt("MAX_PERSONAS", 2),
		MaxMessages:  envInt("MAX_MESSAGES", 50),
		MaxFileBytes: int64(envInt("MAX_FILE_BYTES", 5*1024*1024)),
		SampleCap:    envInt("SAMPLE_CAP", 200),

		LedgerBackend: envStr("LEDGER_BACKEND", "memory"),
		DatabaseURL:   envStr("DATABASE_URL", ""),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),

		TicketTTL: envSeconds("TICKET_TTL_SECONDS", 10*time.Minute),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
