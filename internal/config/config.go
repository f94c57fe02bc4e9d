package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Server ServerConfig
	DB     PostgresConfig
	Auth   AuthConfig
	Sheet  SheetConfig
	Outbox OutboxConfig
	Kafka  KafkaConfig
	AI     AIConfig
}

type AppConfig struct {
	Env string
	// TombstoneRetention of zero keeps deleted ids forever.
	TombstoneRetention time.Duration
}

type ServerConfig struct {
	Port           int
	AllowedOrigins string
}

type PostgresConfig struct {
	// URL empty selects the in-memory store.
	URL string
}

type AuthConfig struct {
	JWTSecret           string
	MasterAdminUser     string
	MasterAdminEmail    string
	MasterAdminPassword string
}

type SheetConfig struct {
	SheetURL     string
	ScriptURL    string
	AutoSync     bool
	SyncInterval time.Duration
}

type OutboxConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AIConfig struct {
	OpenAIKey string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:                getEnv("APP_ENV", "development"),
			TombstoneRetention: time.Duration(getEnvAsInt("TOMBSTONE_RETENTION_DAYS", 0)) * 24 * time.Hour,
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		},
		DB: PostgresConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:           getEnv("JWT_SECRET", ""),
			MasterAdminUser:     getEnv("MASTER_ADMIN_USER", "Admin"),
			MasterAdminEmail:    getEnv("MASTER_ADMIN_EMAIL", ""),
			MasterAdminPassword: getEnv("MASTER_ADMIN_PASSWORD", ""),
		},
		Sheet: SheetConfig{
			SheetURL:     getEnv("SHEET_URL", ""),
			ScriptURL:    getEnv("SCRIPT_URL", ""),
			AutoSync:     getEnvAsBool("AUTO_SYNC_ENABLED", true),
			SyncInterval: time.Duration(getEnvAsInt("SYNC_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Outbox: OutboxConfig{
			PollInterval: time.Duration(getEnvAsInt("OUTBOX_POLL_SECONDS", 5)) * time.Second,
			MaxAttempts:  getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 8),
			BaseBackoff:  time.Duration(getEnvAsInt("OUTBOX_BACKOFF_SECONDS", 2)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "erp-changes"),
		},
		AI: AIConfig{
			OpenAIKey: getEnv("OPENAI_API_KEY", ""),
		},
	}

	return cfg, cfg.validate()
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf(":%d", s.Port)
}

// IsProduction reports whether APP_ENV selects production behaviour.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

// ExportURL is the xlsx download address of the configured spreadsheet.
func (s SheetConfig) ExportURL() string {
	if s.SheetURL == "" {
		return ""
	}
	base, _, _ := strings.Cut(s.SheetURL, "/edit")
	return base + "/export?format=xlsx"
}

/* ================= helpers ================= */

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT is invalid")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if (c.Auth.MasterAdminEmail == "") != (c.Auth.MasterAdminPassword == "") {
		return fmt.Errorf("MASTER_ADMIN_EMAIL and MASTER_ADMIN_PASSWORD must be set together")
	}
	if c.Sheet.SheetURL != "" && !strings.Contains(c.Sheet.SheetURL, "docs.google.com/spreadsheets") {
		return fmt.Errorf("SHEET_URL must be a Google Sheets address")
	}
	if c.Sheet.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL_SECONDS must be positive")
	}
	if c.Outbox.PollInterval <= 0 || c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox polling config is invalid")
	}
	if c.App.TombstoneRetention < 0 {
		return fmt.Errorf("TOMBSTONE_RETENTION_DAYS must not be negative")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if val := strings.TrimSpace(p); val != "" {
			out = append(out, val)
		}
	}
	return out
}
