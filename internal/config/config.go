// Package config provides application configuration.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the application configuration.
type Config struct {
	// Brokerage credential strings, comma-separated per login,
	// colon-delimited per field. Empty means the brokerage is not
	// configured and is skipped.
	Robinhood string
	Schwab    string
	SoFi      string

	// CredsDir is where session artifacts are persisted.
	CredsDir string

	// EncryptionSecret encrypts session artifacts at rest.
	EncryptionSecret string

	// TwoFactorTimeout bounds the wait for an operator-relayed code.
	TwoFactorTimeout time.Duration

	// Telegram relay settings. Empty token disables the relay and
	// codes are read from the console instead.
	TelegramToken  string
	TelegramChatID string

	// Logging
	LogLevel  string
	LogPretty bool
}

// New creates a Config from the environment, loading a .env file first if
// one is present.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using system environment")
	}

	return &Config{
		Robinhood:        getEnv("ROBINHOOD", ""),
		Schwab:           getEnv("SCHWAB", ""),
		SoFi:             getEnv("SOFI", ""),
		CredsDir:         getEnv("CREDS_DIR", "creds"),
		EncryptionSecret: getEnv("ENCRYPTION_SECRET", "change-me-in-production-32chars!"),
		TwoFactorTimeout: getDuration("TWO_FACTOR_TIMEOUT", 300*time.Second),
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getBool("LOG_PRETTY", true),
	}
}

// AccountAllowList returns the configured explicit account allow-list for a
// brokerage, e.g. SCHWAB_ACCOUNT_NUMBERS=11111111:22222222.
func (c *Config) AccountAllowList(brokerage string) []string {
	raw := strings.TrimSpace(os.Getenv(strings.ToUpper(brokerage) + "_ACCOUNT_NUMBERS"))
	if raw == "" {
		return nil
	}
	var list []string
	for _, n := range strings.Split(raw, ":") {
		if n = strings.TrimSpace(n); n != "" {
			list = append(list, n)
		}
	}
	return list
}

// AccountSuffix returns the configured account-number suffix hint for a
// brokerage, e.g. SCHWAB_ACCOUNT_SUFFIX=8142.
func (c *Config) AccountSuffix(brokerage string) string {
	return strings.TrimSpace(os.Getenv(strings.ToUpper(brokerage) + "_ACCOUNT_SUFFIX"))
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
