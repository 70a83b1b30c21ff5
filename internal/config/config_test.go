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

// allConfigKeys lists every CHARGEPANEL_ env var that Load() reads.
var allConfigKeys = []string{
	"CHARGEPANEL_CONFIG_FILE",
	"CHARGEPANEL_API_BASE_URL",
	"CHARGEPANEL_LISTEN_ADDR",
	"CHARGEPANEL_DB_PATH",
	"CHARGEPANEL_REQUEST_TIMEOUT",
	"CHARGEPANEL_REFRESH_PATH",
	"CHARGEPANEL_BANNED_PATH",
	"CHARGEPANEL_LOGIN_PATH",
	"CHARGEPANEL_LOG_LEVEL",
	"CHARGEPANEL_SECRET_KEY",
}

// isolateConfigEnv saves and unsets all CHARGEPANEL_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
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
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chargepanel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("CHARGEPANEL_API_BASE_URL", "https://api.example.com")
	t.Setenv("CHARGEPANEL_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("CHARGEPANEL_DB_PATH", "/tmp/test.db")
	t.Setenv("CHARGEPANEL_REQUEST_TIMEOUT", "5s")
	t.Setenv("CHARGEPANEL_REFRESH_PATH", "/v2/auth/refresh")
	t.Setenv("CHARGEPANEL_LOG_LEVEL", "debug")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/v2/auth/refresh", cfg.RefreshPath)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("CHARGEPANEL_API_BASE_URL", "https://api.example.com")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "chargepanel.db", cfg.DBPath)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/api/auth/refresh", cfg.RefreshPath)
	assert.Equal(t, "/penalty-payment", cfg.BannedPath)
	assert.Equal(t, "/", cfg.LoginPath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Nil(t, cfg.SecretKey)
}

func TestLoad_SecretKey(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("CHARGEPANEL_API_BASE_URL", "https://api.example.com")
	t.Setenv("CHARGEPANEL_SECRET_KEY", strings.Repeat("ab", 32))

	cfg, err := Load()

	require.NoError(t, err)
	require.Len(t, cfg.SecretKey, 32)
	assert.Equal(t, byte(0xab), cfg.SecretKey[0])
}

func TestLoad_MissingBaseURL(t *testing.T) {
	isolateConfigEnv(t)

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHARGEPANEL_API_BASE_URL")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "relative base url", key: "CHARGEPANEL_API_BASE_URL", val: "api.example.com"},
		{name: "bad timeout", key: "CHARGEPANEL_REQUEST_TIMEOUT", val: "soon"},
		{name: "negative timeout", key: "CHARGEPANEL_REQUEST_TIMEOUT", val: "-1s"},
		{name: "bad log level", key: "CHARGEPANEL_LOG_LEVEL", val: "loud"},
		{name: "relative banned path", key: "CHARGEPANEL_BANNED_PATH", val: "penalty-payment"},
		{name: "short secret key", key: "CHARGEPANEL_SECRET_KEY", val: "abcd"},
		{name: "non-hex secret key", key: "CHARGEPANEL_SECRET_KEY", val: strings.Repeat("zz", 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv("CHARGEPANEL_API_BASE_URL", "https://api.example.com")
			t.Setenv(tt.key, tt.val)

			_, err := Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfigFile(t, `
api_base_url: https://file.example.com
listen_addr: 0.0.0.0:7070
request_timeout: 12s
log_level: warn
`)
	t.Setenv("CHARGEPANEL_CONFIG_FILE", path)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.APIBaseURL)
	assert.Equal(t, "0.0.0.0:7070", cfg.ListenAddr)
	assert.Equal(t, 12*time.Second, cfg.RequestTimeout)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, "chargepanel.db", cfg.DBPath)
}

func TestLoad_EnvOverridesYAMLFile(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfigFile(t, "api_base_url: https://file.example.com\nlisten_addr: 0.0.0.0:7070\n")
	t.Setenv("CHARGEPANEL_CONFIG_FILE", path)
	t.Setenv("CHARGEPANEL_LISTEN_ADDR", "127.0.0.1:9999")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.APIBaseURL)
	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
}

func TestLoad_BadYAMLFile(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("CHARGEPANEL_API_BASE_URL", "https://api.example.com")

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CHARGEPANEL_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		t.Setenv("CHARGEPANEL_CONFIG_FILE", writeConfigFile(t, "listen_addr: [unterminated"))
		_, err := Load()
		assert.Error(t, err)
	})
}
