package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	StoragePath string
	GeoIPDBPath string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIOrg     string

	SDBaseURL     string
	PosterBaseURL string

	TelegramBotToken string
	TelegramChatID   string

	Workers      int
	LeaseTTL     time.Duration
	RunDeadline  time.Duration
	RetryMax     int
	RetryBase    time.Duration
	RetryMaxWait time.Duration

	BreakerWindow    int
	BreakerThreshold int
	BreakerCooldown  time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StoragePath: getEnv("STORAGE_PATH", "./storage"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:     os.Getenv("OPENAI_ORG"),

		SDBaseURL:     getEnv("SD_BASE_URL", "http://127.0.0.1:7860"),
		PosterBaseURL: getEnv("POSTER_BASE_URL", "http://127.0.0.1:9000"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		Workers:      getEnvInt("PIPELINE_WORKERS", 4),
		LeaseTTL:     time.Second * time.Duration(getEnvInt("LEASE_TTL_SECONDS", 120)),
		RunDeadline:  time.Second * time.Duration(getEnvInt("RUN_DEADLINE_SECONDS", 0)),
		RetryMax:     getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBase:    time.Millisecond * time.Duration(getEnvInt("RETRY_BASE_DELAY_MS", 500)),
		RetryMaxWait: time.Second * time.Duration(getEnvInt("RETRY_MAX_DELAY_SECONDS", 15)),

		BreakerWindow:    getEnvInt("BREAKER_WINDOW", 10),
		BreakerThreshold: getEnvInt("BREAKER_THRESHOLD", 5),
		BreakerCooldown:  time.Second * time.Duration(getEnvInt("BREAKER_COOLDOWN_SECONDS", 30)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
