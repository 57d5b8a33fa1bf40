// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr         string
	DBPath             string
	SecretKey          []byte // 32-byte AES-256 key; nil when REPOMOVER_SECRET_KEY is unset.
	GitHubToken        string
	TransferPacing     time.Duration
	ValidationDebounce time.Duration
	ValidationCacheTTL time.Duration
	PageSize           int
	LogLevel           slog.Level
	EnvFile            string
}

// HasSecretKey reports whether credential encryption is configured.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) == 32
}

// Load merges an optional dotenv file into the environment, then reads
// configuration from REPOMOVER_* variables and returns a validated Config.
// Variables already present in the environment win over the dotenv file.
//
// Optional variables with defaults: REPOMOVER_ENV_FILE (.env),
// REPOMOVER_LISTEN_ADDR (127.0.0.1:8080), REPOMOVER_DB_PATH (repomover.db;
// :memory: for a throwaway database whose readers wait out writes by spinning
// rather than through busy_timeout, so keep it to one-shot commands and tests),
// REPOMOVER_TRANSFER_PACING (1s), REPOMOVER_VALIDATION_DEBOUNCE (800ms),
// REPOMOVER_VALIDATION_CACHE_TTL (5m), REPOMOVER_PAGE_SIZE (100),
// REPOMOVER_LOG_LEVEL (info). REPOMOVER_SECRET_KEY is 64 hex characters.
// REPOMOVER_GITHUB_TOKEN seeds the first login when nothing is stored.
func Load() (*Config, error) {
	envFile := ".env"
	if v, ok := os.LookupEnv("REPOMOVER_ENV_FILE"); ok {
		envFile = v
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("REPOMOVER_ENV_FILE %q: %w", envFile, err)
		}
	}

	cfg := &Config{
		ListenAddr:         "127.0.0.1:8080",
		DBPath:             "repomover.db",
		GitHubToken:        strings.TrimSpace(os.Getenv("REPOMOVER_GITHUB_TOKEN")),
		TransferPacing:     time.Second,
		ValidationDebounce: 800 * time.Millisecond,
		ValidationCacheTTL: 5 * time.Minute,
		PageSize:           100,
		LogLevel:           slog.LevelInfo,
		EnvFile:            envFile,
	}

	if v, ok := os.LookupEnv("REPOMOVER_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("REPOMOVER_DB_PATH"); ok {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("REPOMOVER_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("REPOMOVER_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("REPOMOVER_SECRET_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.SecretKey = key
	}

	var err error
	if cfg.TransferPacing, err = durationEnv("REPOMOVER_TRANSFER_PACING", cfg.TransferPacing); err != nil {
		return nil, err
	}
	if cfg.ValidationDebounce, err = durationEnv("REPOMOVER_VALIDATION_DEBOUNCE", cfg.ValidationDebounce); err != nil {
		return nil, err
	}
	if cfg.ValidationCacheTTL, err = durationEnv("REPOMOVER_VALIDATION_CACHE_TTL", cfg.ValidationCacheTTL); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("REPOMOVER_PAGE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return nil, fmt.Errorf("REPOMOVER_PAGE_SIZE must be an integer between 1 and 100, got %q", v)
		}
		cfg.PageSize = n
	}

	if v, ok := os.LookupEnv("REPOMOVER_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("REPOMOVER_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, parsed)
	}
	return parsed, nil
}
