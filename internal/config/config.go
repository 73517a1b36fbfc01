package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Kind names a conduit record type.
type Kind string

const (
	KindToDo Kind = "todo"
	KindMemo Kind = "memo"
)

// Valid reports whether k is a known conduit kind.
func (k Kind) Valid() bool {
	return k == KindToDo || k == KindMemo
}

// Config represents the global ~/.evolution/pimsync.toml.
type Config struct {
	Timezone     string        `toml:"timezone"`
	LogLevel     string        `toml:"log_level"`
	SyncInterval time.Duration `toml:"sync_interval"`
	Handheld     string        `toml:"handheld"`
	Conduits     []ConduitRef  `toml:"conduit"`
}

// ConduitRef selects one conduit for one paired device.
type ConduitRef struct {
	Kind    Kind   `toml:"kind"`
	PilotID uint32 `toml:"pilot_id"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Timezone:     "UTC",
		LogLevel:     "info",
		SyncInterval: 5 * time.Minute,
	}
}

// Load reads config from the given path. Returns nil config and error if file missing.
// Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.SyncInterval < 0 {
		return fmt.Errorf("sync_interval must not be negative, got %s", c.SyncInterval)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	for i, ref := range c.Conduits {
		if !ref.Kind.Valid() {
			return fmt.Errorf("conduit[%d]: unknown kind %q", i, ref.Kind)
		}
		if ref.PilotID == 0 {
			return fmt.Errorf("conduit[%d]: pilot_id is required", i)
		}
	}
	return nil
}
