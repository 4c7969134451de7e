package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	HTTPPort     string
	RegistryPath string
	DatabaseURL  string
	RedisURL     string

	RefreshInterval    time.Duration
	FetchTimeout       time.Duration
	DefaultHistoryDays int
	MaxHistoryDays     int
	HistoryCacheTTL    time.Duration
	DBConnectAttempts  int

	AdminAPIKey string
	CORSOrigins []string

	SheetsSpreadsheetID   string
	GoogleCredentialsJSON string

	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		HTTPPort:     envOrDefault("HTTP_PORT", "8080"),
		RegistryPath: envOrDefault("REGISTRY_PATH", ""),
		DatabaseURL:  envOrDefault("DATABASE_URL", ""),
		RedisURL:     envOrDefault("REDIS_URL", ""),

		RefreshInterval:    envOrDefaultDuration("REFRESH_INTERVAL", 5*time.Minute),
		FetchTimeout:       envOrDefaultDuration("FETCH_TIMEOUT", 15*time.Second),
		DefaultHistoryDays: envOrDefaultInt("DEFAULT_HISTORY_DAYS", 30),
		MaxHistoryDays:     envOrDefaultInt("MAX_HISTORY_DAYS", 366),
		HistoryCacheTTL:    envOrDefaultDuration("HISTORY_CACHE_TTL", 10*time.Minute),
		DBConnectAttempts:  envOrDefaultInt("DB_CONNECT_ATTEMPTS", 5),

		AdminAPIKey: envOrDefault("ADMIN_API_KEY", ""),
		CORSOrigins: envOrDefaultList("CORS_ORIGINS", []string{"*"}),

		SheetsSpreadsheetID:   envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),

		KafkaBrokers: envOrDefaultList("KAFKA_BROKERS", nil),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "kursy.rates"),
	}

	if cfg.RefreshInterval <= 0 {
		slog.Warn("non-positive REFRESH_INTERVAL, using default", "value", cfg.RefreshInterval)
		cfg.RefreshInterval = 5 * time.Minute
	}
	if cfg.MaxHistoryDays < 1 {
		slog.Warn("MAX_HISTORY_DAYS below 1, using default", "value", cfg.MaxHistoryDays)
		cfg.MaxHistoryDays = 366
	}
	if cfg.DefaultHistoryDays < 1 || cfg.DefaultHistoryDays > cfg.MaxHistoryDays {
		slog.Warn("DEFAULT_HISTORY_DAYS out of range, clamping", "value", cfg.DefaultHistoryDays, "max", cfg.MaxHistoryDays)
		cfg.DefaultHistoryDays = min(max(cfg.DefaultHistoryDays, 1), cfg.MaxHistoryDays)
	}
	if cfg.DBConnectAttempts < 1 {
		cfg.DBConnectAttempts = 1
	}

	return cfg
}

// SheetsEnabled reports whether the Google Sheets export is configured.
func (c Config) SheetsEnabled() bool {
	return c.SheetsSpreadsheetID != "" && c.GoogleCredentialsJSON != ""
}

// KafkaEnabled reports whether rates events are published.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

// envOrDefaultList splits a comma-separated variable, dropping blank items.
func envOrDefaultList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
