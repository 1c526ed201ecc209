package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrIncomplete marks a configuration that cannot reach the remote catalog.
// Search over an already-mirrored catalog still works; sync does not.
var ErrIncomplete = errors.New("remote endpoint not configured")

// Config represents the application configuration
type Config struct {
	RemoteURL          string `yaml:"remote_url"`
	RemoteKey          string `yaml:"remote_key"`
	DBPath             string `yaml:"db_path"`
	BatchSize          int    `yaml:"batch_size"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
	LogLevel           string `yaml:"log_level"`
	Environment        string `yaml:"environment"`
}

// Load assembles the configuration. A YAML file (when path is non-empty and
// exists) supplies the base; environment variables override it, with a .env
// file feeding the environment first. Missing remote credentials are not an
// error here: RequireRemote gates the operations that need them.
func Load(path string) (*Config, error) {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:             defaultDBPath(),
		BatchSize:          1000,
		HTTPTimeoutSeconds: 30,
		LogLevel:           "info",
		Environment:        "production",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg.RemoteURL = getEnv("LABELREADER_REMOTE_URL", cfg.RemoteURL)
	cfg.RemoteKey = getEnv("LABELREADER_REMOTE_KEY", cfg.RemoteKey)
	cfg.DBPath = getEnv("LABELREADER_DB_PATH", cfg.DBPath)
	cfg.BatchSize = getEnvAsInt("LABELREADER_BATCH_SIZE", cfg.BatchSize)
	cfg.HTTPTimeoutSeconds = getEnvAsInt("LABELREADER_HTTP_TIMEOUT", cfg.HTTPTimeoutSeconds)
	cfg.LogLevel = getEnv("LABELREADER_LOG_LEVEL", cfg.LogLevel)
	cfg.Environment = getEnv("LABELREADER_ENV", cfg.Environment)

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		cfg.HTTPTimeoutSeconds = 30
	}
	return cfg, nil
}

// RequireRemote reports whether the remote catalog is reachable by
// configuration alone.
func (c *Config) RequireRemote() error {
	if c.RemoteURL == "" || c.RemoteKey == "" {
		return fmt.Errorf("%w: set LABELREADER_REMOTE_URL and LABELREADER_REMOTE_KEY", ErrIncomplete)
	}
	return nil
}

// HTTPTimeout returns the request timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "labelreader.db"
	}
	return filepath.Join(home, ".labelreader", "labelreader.db")
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
