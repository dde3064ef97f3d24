// Package config reads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvDB           = "SWITCHYARD_DB"
	EnvHTTPAddr     = "SWITCHYARD_HTTP_ADDR"
	EnvRedisURL     = "SWITCHYARD_REDIS_URL"
	EnvNotifyQueue  = "SWITCHYARD_NOTIFY_QUEUE"
	EnvNotifyBuffer = "SWITCHYARD_NOTIFY_BUFFER"
	EnvSendTimeout  = "SWITCHYARD_NOTIFY_TIMEOUT"
	EnvBrand        = "SWITCHYARD_BRAND"
	EnvDashboardURL = "SWITCHYARD_DASHBOARD_URL"
)

// Config holds every runtime setting.
type Config struct {
	DBPath       string
	HTTPAddr     string
	RedisURL     string // empty: notifications are logged, not queued
	NotifyQueue  string
	NotifyBuffer int
	SendTimeout  time.Duration
	Brand        string
	DashboardURL string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		DBPath:       "switchyard.db",
		HTTPAddr:     ":8080",
		NotifyQueue:  "switchyard:notifications",
		NotifyBuffer: 256,
		SendTimeout:  10 * time.Second,
		Brand:        "Studio Ordo",
		DashboardURL: "/dashboard",
	}
}

// Load reads the given .env files (default ".env"), then the environment.
// Missing files are ignored. Variables already set in the environment win
// over values in the files.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	cfg.DBPath = getEnv(EnvDB, cfg.DBPath)
	cfg.HTTPAddr = getEnv(EnvHTTPAddr, cfg.HTTPAddr)
	cfg.RedisURL = getEnv(EnvRedisURL, cfg.RedisURL)
	cfg.NotifyQueue = getEnv(EnvNotifyQueue, cfg.NotifyQueue)
	cfg.Brand = getEnv(EnvBrand, cfg.Brand)
	cfg.DashboardURL = getEnv(EnvDashboardURL, cfg.DashboardURL)

	var err error
	if cfg.NotifyBuffer, err = getEnvAsInt(EnvNotifyBuffer, cfg.NotifyBuffer); err != nil {
		return Config{}, err
	}
	if cfg.SendTimeout, err = getEnvAsDuration(EnvSendTimeout, cfg.SendTimeout); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%s must not be empty", EnvDB)
	}
	if c.NotifyBuffer <= 0 {
		return fmt.Errorf("%s must be positive, got %d", EnvNotifyBuffer, c.NotifyBuffer)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", EnvSendTimeout, c.SendTimeout)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return v, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, raw)
	}
	return v, nil
}
