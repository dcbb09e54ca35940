package config

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
)

// Config holds application configuration
type Config struct {
	Port            string
	DBConn          string
	LogLevel        string
	Storage         string
	RevocationStore string
	RedisAddr       string
	RedisPassword   string

	JWTSecret     string
	EncryptionKey string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CardRenewYears  int
	ExpirySchedule  string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	AdminEmail    string
	AdminPassword string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DBConn:         getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=bank sslmode=disable"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		Storage:        getEnv("STORAGE", StoragePostgres),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		ExpirySchedule: getEnv("EXPIRY_SWEEP_SCHEDULE", "0 0 3 * * *"),
		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       getEnv("SMTP_PORT", "587"),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SenderEmail:    getEnv("SENDER_EMAIL", "no-reply@bank.local"),
		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
	}

	// The revocation set lives in the main storage unless REVOCATION_STORE says otherwise.
	cfg.RevocationStore = getEnv("REVOCATION_STORE", cfg.Storage)

	var err error
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CardRenewYears, err = getInt("CARD_RENEW_YEARS", 3); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DBConn == "" {
			return fmt.Errorf("DB_CONN is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}
	switch c.RevocationStore {
	case StorageRedis:
	case StoragePostgres, StorageMemory:
		if c.RevocationStore != c.Storage {
			return fmt.Errorf("REVOCATION_STORE=%s requires STORAGE=%s, got %q", c.RevocationStore, c.RevocationStore, c.Storage)
		}
	default:
		return fmt.Errorf("REVOCATION_STORE must be %q, %q or %q, got %q",
			StoragePostgres, StorageMemory, StorageRedis, c.RevocationStore)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if _, err := base64.StdEncoding.DecodeString(c.JWTSecret); err != nil {
		return fmt.Errorf("JWT_SECRET must be base64: %w", err)
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	encKey, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return fmt.Errorf("ENCRYPTION_KEY must be base64: %w", err)
	}
	if bytes.Equal(encKey, c.SigningKey()) {
		return fmt.Errorf("ENCRYPTION_KEY and JWT_SECRET must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL")
	}
	if c.CardRenewYears <= 0 {
		return fmt.Errorf("CARD_RENEW_YEARS must be positive")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// SigningKey returns the decoded JWT signing key
func (c *Config) SigningKey() []byte {
	key, _ := base64.StdEncoding.DecodeString(c.JWTSecret)
	return key
}

// NotificationsEnabled reports whether SMTP is configured
func (c *Config) NotificationsEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultVal int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
