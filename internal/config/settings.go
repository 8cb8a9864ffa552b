package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Settings are process-level options read from the environment.
type Settings struct {
	RateURL     string        // FINWRAP_RATE_URL, exchange-rate URL template
	RedisURL    string        // FINWRAP_REDIS_URL, enables the shared rate cache
	BagelsBin   string        // FINWRAP_BAGELS_BIN
	DBPath      string        // FINWRAP_DB_PATH, skips locating the database
	LogLevel    string        // FINWRAP_LOG_LEVEL
	HTTPTimeout time.Duration // FINWRAP_HTTP_TIMEOUT
}

// LoadSettings reads Settings from the environment. Variables from a .env
// file in the working directory are loaded first when it exists; variables
// already set in the environment win.
func LoadSettings() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("loading .env: %w", err)
	}

	timeout, err := time.ParseDuration(getEnv("FINWRAP_HTTP_TIMEOUT", "30s"))
	if err != nil {
		return Settings{}, fmt.Errorf("FINWRAP_HTTP_TIMEOUT: %w", err)
	}
	return Settings{
		RateURL:     getEnv("FINWRAP_RATE_URL", ""),
		RedisURL:    getEnv("FINWRAP_REDIS_URL", ""),
		BagelsBin:   getEnv("FINWRAP_BAGELS_BIN", "bagels"),
		DBPath:      getEnv("FINWRAP_DB_PATH", ""),
		LogLevel:    getEnv("FINWRAP_LOG_LEVEL", "info"),
		HTTPTimeout: timeout,
	}, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
