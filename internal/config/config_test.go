package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every REPOMOVER_ env var that Load() reads.
var allConfigKeys = []string{
	"REPOMOVER_ENV_FILE",
	"REPOMOVER_LISTEN_ADDR",
	"REPOMOVER_DB_PATH",
	"REPOMOVER_SECRET_KEY",
	"REPOMOVER_GITHUB_TOKEN",
	"REPOMOVER_TRANSFER_PACING",
	"REPOMOVER_VALIDATION_DEBOUNCE",
	"REPOMOVER_VALIDATION_CACHE_TTL",
	"REPOMOVER_PAGE_SIZE",
	"REPOMOVER_LOG_LEVEL",
}

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// isolateConfigEnv saves and unsets all REPOMOVER_ env vars so tests don't
// inherit values from the host environment, and points the dotenv lookup at
// a file that does not exist. t.Cleanup restores original values.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
	t.Setenv("REPOMOVER_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOMOVER_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("REPOMOVER_DB_PATH", "/tmp/test.db")
	t.Setenv("REPOMOVER_SECRET_KEY", testKeyHex)
	t.Setenv("REPOMOVER_GITHUB_TOKEN", " ghp_test123 ")
	t.Setenv("REPOMOVER_TRANSFER_PACING", "2s")
	t.Setenv("REPOMOVER_VALIDATION_DEBOUNCE", "300ms")
	t.Setenv("REPOMOVER_VALIDATION_CACHE_TTL", "1m")
	t.Setenv("REPOMOVER_PAGE_SIZE", "50")
	t.Setenv("REPOMOVER_LOG_LEVEL", "debug")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Len(t, cfg.SecretKey, 32)
	assert.True(t, cfg.HasSecretKey())
	assert.Equal(t, "ghp_test123", cfg.GitHubToken)
	assert.Equal(t, 2*time.Second, cfg.TransferPacing)
	assert.Equal(t, 300*time.Millisecond, cfg.ValidationDebounce)
	assert.Equal(t, time.Minute, cfg.ValidationCacheTTL)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "repomover.db", cfg.DBPath)
	assert.Nil(t, cfg.SecretKey)
	assert.False(t, cfg.HasSecretKey())
	assert.Equal(t, "", cfg.GitHubToken)
	assert.Equal(t, time.Second, cfg.TransferPacing)
	assert.Equal(t, 800*time.Millisecond, cfg.ValidationDebounce)
	assert.Equal(t, 5*time.Minute, cfg.ValidationCacheTTL)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "secret key not hex", key: "REPOMOVER_SECRET_KEY", value: "not-hex", wantErr: "not valid hex"},
		{name: "secret key too short", key: "REPOMOVER_SECRET_KEY", value: "abcd", wantErr: "32 bytes"},
		{name: "bad pacing", key: "REPOMOVER_TRANSFER_PACING", value: "soon", wantErr: "REPOMOVER_TRANSFER_PACING"},
		{name: "negative debounce", key: "REPOMOVER_VALIDATION_DEBOUNCE", value: "-1s", wantErr: "negative"},
		{name: "bad ttl", key: "REPOMOVER_VALIDATION_CACHE_TTL", value: "5", wantErr: "REPOMOVER_VALIDATION_CACHE_TTL"},
		{name: "page size too large", key: "REPOMOVER_PAGE_SIZE", value: "500", wantErr: "between 1 and 100"},
		{name: "page size not a number", key: "REPOMOVER_PAGE_SIZE", value: "many", wantErr: "between 1 and 100"},
		{name: "bad log level", key: "REPOMOVER_LOG_LEVEL", value: "loud", wantErr: "REPOMOVER_LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	isolateConfigEnv(t)

	path := filepath.Join(t.TempDir(), "repomover.env")
	content := strings.Join([]string{
		"REPOMOVER_DB_PATH=/data/from-file.db",
		"REPOMOVER_LISTEN_ADDR=0.0.0.0:7000",
		"REPOMOVER_PAGE_SIZE=25",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("REPOMOVER_ENV_FILE", path)
	t.Setenv("REPOMOVER_LISTEN_ADDR", "127.0.0.1:9999")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/data/from-file.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr, "real environment wins over the dotenv file")
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, path, cfg.EnvFile)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.NotNil(t, cfg)
}
