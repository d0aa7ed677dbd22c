package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/airquality"
)

const (
	defaultPort           = 8080
	defaultDataDir        = "data"
	defaultCacheTTL       = 60 * time.Second
	defaultRequestTimeout = 35 * time.Second
	defaultTopN           = 50
	defaultRateLimit      = 20
)

// Config holds environment-driven settings for the REST API.
type Config struct {
	Port           int
	BearerToken    string
	HintURL        string
	APIKey         string
	DataDir        string
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	FetchDisabled  bool
	DefaultTopN    int
	RateLimit      int
	Scale          airquality.Scale
	LogLevel       logrus.Level
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:           defaultPort,
		DataDir:        defaultDataDir,
		CacheTTL:       defaultCacheTTL,
		RequestTimeout: defaultRequestTimeout,
		DefaultTopN:    defaultTopN,
		RateLimit:      defaultRateLimit,
		Scale:          airquality.SixBand,
		LogLevel:       logrus.InfoLevel,
	}

	cfg.HintURL = strings.TrimSpace(os.Getenv("API_URL"))
	cfg.APIKey = strings.TrimSpace(os.Getenv("API_KEY"))

	if dir := strings.TrimSpace(os.Getenv("DATA_DIR")); dir != "" {
		cfg.DataDir = dir
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if ttlStr := strings.TrimSpace(os.Getenv("CACHE_TTL_SECONDS")); ttlStr != "" {
		secs, err := strconv.Atoi(ttlStr)
		if err != nil || secs <= 0 {
			return cfg, fmt.Errorf("invalid CACHE_TTL_SECONDS: %s", ttlStr)
		}
		cfg.CacheTTL = time.Duration(secs) * time.Second
	}

	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	fetchDisabled := strings.TrimSpace(os.Getenv("FETCH_DISABLED"))
	cfg.FetchDisabled = fetchDisabled == "1" || strings.EqualFold(fetchDisabled, "true")

	if v := strings.TrimSpace(os.Getenv("API_DEFAULT_TOP_N")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultTopN = n
		} else {
			return cfg, fmt.Errorf("invalid API_DEFAULT_TOP_N: %s", v)
		}
	}

	if v := strings.TrimSpace(os.Getenv("API_RATE_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimit = n
		} else {
			return cfg, fmt.Errorf("invalid API_RATE_LIMIT: %s", v)
		}
	}

	scale, err := airquality.ParseScale(strings.TrimSpace(os.Getenv("VIEW_BANDS")))
	if err != nil {
		return cfg, fmt.Errorf("invalid VIEW_BANDS: %w", err)
	}
	cfg.Scale = scale

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		lvl, err := logrus.ParseLevel(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = lvl
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
