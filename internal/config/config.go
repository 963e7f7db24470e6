package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"adonel/internal/logger"
)

type Config struct {
	// Backend API
	APIURL     string
	APIToken   string
	APITimeout time.Duration

	// Import workflow
	CommitClearDelay time.Duration
	ReadWorkers      int

	// Unit catalogue source, first match wins: YAML file, worksheet, backend, built-in list.
	UnitsFile    string
	UnitsSheet   string
	UnitsFromAPI bool

	// Google Sheets export (optional)
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// HTTP surface
	ServerPort  int
	CORSOrigins []string
	SessionTTL  time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		APIURL:               getEnv("API_URL", "http://localhost:3000/api"),
		APIToken:             getEnv("API_TOKEN", ""),
		UnitsFile:            getEnv("UNITS_FILE", ""),
		UnitsSheet:           getEnv("UNITS_SHEET", ""),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", ""),
		CORSOrigins:          splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
	}

	var err error
	if config.APITimeout, err = getDuration("API_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if config.CommitClearDelay, err = getDuration("COMMIT_CLEAR_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if config.ReadWorkers, err = getInt("READ_WORKERS", 8); err != nil {
		return nil, err
	}
	if config.ServerPort, err = getInt("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if config.SessionTTL, err = getDuration("SESSION_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if config.UnitsFromAPI, err = getBool("UNITS_FROM_API", false); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_URL must be an absolute URL, got %q", c.APIURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	if c.CommitClearDelay < 0 {
		return fmt.Errorf("COMMIT_CLEAR_DELAY must not be negative")
	}
	if c.ReadWorkers <= 0 {
		return fmt.Errorf("READ_WORKERS must be positive")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.ServerPort)
	}
	if c.UnitsSheet != "" && c.GoogleSheetURL == "" {
		return fmt.Errorf("UNITS_SHEET requires GOOGLE_SHEET_URL")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations ("2s") or plain milliseconds ("2000").
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
