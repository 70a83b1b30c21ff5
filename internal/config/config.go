// Package config loads application configuration from environment variables,
// optionally layered over a YAML file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	APIBaseURL     string
	ListenAddr     string
	DBPath         string
	RequestTimeout time.Duration
	RefreshPath    string
	BannedPath     string
	LoginPath      string
	LogLevel       slog.Level

	// SecretKey is the 32-byte AES-256 key for session values at rest; nil
	// stores them in plaintext.
	SecretKey []byte
}

// fileConfig is the optional YAML overlay. Durations are Go duration strings.
type fileConfig struct {
	APIBaseURL     string `yaml:"api_base_url"`
	ListenAddr     string `yaml:"listen_addr"`
	DBPath         string `yaml:"db_path"`
	RequestTimeout string `yaml:"request_timeout"`
	RefreshPath    string `yaml:"refresh_path"`
	BannedPath     string `yaml:"banned_path"`
	LoginPath      string `yaml:"login_path"`
	LogLevel       string `yaml:"log_level"`
	SecretKey      string `yaml:"secret_key"`
}

// Load reads configuration and returns a validated Config.
// Precedence: CHARGEPANEL_* environment variables > the YAML file named by
// CHARGEPANEL_CONFIG_FILE > defaults.
// CHARGEPANEL_API_BASE_URL is required. Optional variables with defaults:
// CHARGEPANEL_LISTEN_ADDR (127.0.0.1:8080), CHARGEPANEL_DB_PATH (chargepanel.db),
// CHARGEPANEL_REQUEST_TIMEOUT (30s), CHARGEPANEL_REFRESH_PATH (/api/auth/refresh),
// CHARGEPANEL_BANNED_PATH (/penalty-payment), CHARGEPANEL_LOGIN_PATH (/),
// CHARGEPANEL_LOG_LEVEL (info). CHARGEPANEL_SECRET_KEY (64 hex characters) is
// optional and enables encryption of the stored session.
func Load() (*Config, error) {
	fc := fileConfig{
		ListenAddr:     "127.0.0.1:8080",
		DBPath:         "chargepanel.db",
		RequestTimeout: "30s",
		RefreshPath:    "/api/auth/refresh",
		BannedPath:     "/penalty-payment",
		LoginPath:      "/",
		LogLevel:       "info",
	}

	if path, ok := os.LookupEnv("CHARGEPANEL_CONFIG_FILE"); ok && path != "" {
		if err := readFile(path, &fc); err != nil {
			return nil, err
		}
	}

	overrideFromEnv("CHARGEPANEL_API_BASE_URL", &fc.APIBaseURL)
	overrideFromEnv("CHARGEPANEL_LISTEN_ADDR", &fc.ListenAddr)
	overrideFromEnv("CHARGEPANEL_DB_PATH", &fc.DBPath)
	overrideFromEnv("CHARGEPANEL_REQUEST_TIMEOUT", &fc.RequestTimeout)
	overrideFromEnv("CHARGEPANEL_REFRESH_PATH", &fc.RefreshPath)
	overrideFromEnv("CHARGEPANEL_BANNED_PATH", &fc.BannedPath)
	overrideFromEnv("CHARGEPANEL_LOGIN_PATH", &fc.LoginPath)
	overrideFromEnv("CHARGEPANEL_LOG_LEVEL", &fc.LogLevel)
	overrideFromEnv("CHARGEPANEL_SECRET_KEY", &fc.SecretKey)

	baseURL := strings.TrimSpace(fc.APIBaseURL)
	if baseURL == "" {
		return nil, errors.New("CHARGEPANEL_API_BASE_URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("CHARGEPANEL_API_BASE_URL must be an absolute URL, got %q", baseURL)
	}

	timeout, err := time.ParseDuration(fc.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("CHARGEPANEL_REQUEST_TIMEOUT has invalid duration %q: %w", fc.RequestTimeout, err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("CHARGEPANEL_REQUEST_TIMEOUT must be positive, got %s", timeout)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(fc.LogLevel)); err != nil {
		return nil, fmt.Errorf("CHARGEPANEL_LOG_LEVEL has invalid level %q: %w", fc.LogLevel, err)
	}

	for name, p := range map[string]string{
		"CHARGEPANEL_REFRESH_PATH": fc.RefreshPath,
		"CHARGEPANEL_BANNED_PATH":  fc.BannedPath,
		"CHARGEPANEL_LOGIN_PATH":   fc.LoginPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return nil, fmt.Errorf("%s must start with '/', got %q", name, p)
		}
	}

	var secretKey []byte
	if v := strings.TrimSpace(fc.SecretKey); v != "" {
		secretKey, err = hex.DecodeString(v)
		if err != nil || len(secretKey) != 32 {
			return nil, errors.New("CHARGEPANEL_SECRET_KEY must be 64 hex characters (32 bytes)")
		}
	}

	return &Config{
		APIBaseURL:     baseURL,
		ListenAddr:     fc.ListenAddr,
		DBPath:         fc.DBPath,
		RequestTimeout: timeout,
		RefreshPath:    fc.RefreshPath,
		BannedPath:     fc.BannedPath,
		LoginPath:      fc.LoginPath,
		LogLevel:       level,
		SecretKey:      secretKey,
	}, nil
}

func readFile(path string, fc *fileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func overrideFromEnv(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}
