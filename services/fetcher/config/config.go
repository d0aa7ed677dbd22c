package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	defaultDataDir        = "data"
	defaultRequestTimeout = 35 * time.Second
	defaultInterval       = 10 * time.Minute
	minInterval           = 10 * time.Second
)

// Config holds runtime configuration for the fetch utility.
type Config struct {
	HintURL        string
	APIKey         string
	DataDir        string
	RequestTimeout time.Duration
	Interval       time.Duration
	DryRun         bool
	LogLevel       logrus.Level
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		DataDir:        defaultDataDir,
		RequestTimeout: defaultRequestTimeout,
		Interval:       defaultInterval,
		LogLevel:       logrus.InfoLevel,
	}

	cfg.HintURL = strings.TrimSpace(os.Getenv("API_URL"))
	cfg.APIKey = strings.TrimSpace(os.Getenv("API_KEY"))

	if dir := strings.TrimSpace(os.Getenv("DATA_DIR")); dir != "" {
		cfg.DataDir = dir
	}

	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("FETCH_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
		}
		cfg.Interval = d
	}
	if cfg.Interval < minInterval {
		cfg.Interval = minInterval
	}

	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		lvl, err := logrus.ParseLevel(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = lvl
	}

	return cfg, nil
}
