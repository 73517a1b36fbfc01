package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// SyncType selects which direction a conduit session moves records.
type SyncType string

const (
	SyncTypeSynchronize    SyncType = "synchronize"
	SyncTypeCopyFromPilot  SyncType = "copy_from_pilot"
	SyncTypeCopyToPilot    SyncType = "copy_to_pilot"
	SyncTypeMergeFromPilot SyncType = "merge_from_pilot"
	SyncTypeMergeToPilot   SyncType = "merge_to_pilot"
)

// IsCopy reports whether t replaces one side wholesale.
func (t SyncType) IsCopy() bool {
	return t == SyncTypeCopyFromPilot || t == SyncTypeCopyToPilot
}

const DefaultPriority = 3

// ConduitConfig holds the per-device preferences of one conduit.
type ConduitConfig struct {
	PilotID  uint32   `toml:"pilot_id"`
	SyncType SyncType `toml:"sync_type"`
	Source   string   `toml:"source"`
	Secret   bool     `toml:"secret"`
	Priority int      `toml:"priority"`
	LastURI  string   `toml:"last_uri,omitempty"`
}

// DefaultConduit returns the preferences of a freshly paired device.
func DefaultConduit(pilotID uint32) *ConduitConfig {
	return &ConduitConfig{
		PilotID:  pilotID,
		SyncType: SyncTypeSynchronize,
		Source:   "system",
		Priority: DefaultPriority,
	}
}

// LoadConduit reads the conduit config at path. A missing file yields defaults.
func LoadConduit(path string, pilotID uint32) (*ConduitConfig, error) {
	cfg := DefaultConduit(pilotID)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("load conduit config: %w", err)
	}
	cfg.PilotID = pilotID
	if cfg.Priority == 0 {
		cfg.Priority = DefaultPriority
	}
	if cfg.SyncType == "" {
		cfg.SyncType = SyncTypeSynchronize
	}
	return cfg, cfg.Validate()
}

// SaveConduit writes c to path with 0600 permissions.
func SaveConduit(path string, c *ConduitConfig) error {
	return Save(path, c)
}

// Clone returns an independent copy.
func (c *ConduitConfig) Clone() *ConduitConfig {
	dup := *c
	return &dup
}

// Validate checks field ranges.
func (c *ConduitConfig) Validate() error {
	if c.Priority < 1 || c.Priority > 5 {
		return fmt.Errorf("priority must be within 1..5, got %d", c.Priority)
	}
	switch c.SyncType {
	case SyncTypeSynchronize, SyncTypeCopyFromPilot, SyncTypeCopyToPilot,
		SyncTypeMergeFromPilot, SyncTypeMergeToPilot:
	default:
		return fmt.Errorf("unknown sync_type %q", c.SyncType)
	}
	return nil
}
