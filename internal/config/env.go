package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvHome     = "PIMSYNC_HOME"
	EnvTimezone = "PIMSYNC_TIMEZONE"
	EnvLogLevel = "PIMSYNC_LOG_LEVEL"
)

// LoadEnv loads a .env file into the process environment. A missing file is not an error.
// Variables already set take precedence.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ApplyEnv overrides file values with PIMSYNC_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}
