package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConduitMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadConduit(filepath.Join(t.TempDir(), "config.toml"), 42)
	if err != nil {
		t.Fatalf("LoadConduit() error = %v", err)
	}
	if cfg.Priority != DefaultPriority {
		t.Errorf("Priority = %d, want %d", cfg.Priority, DefaultPriority)
	}
	if cfg.Secret {
		t.Error("Secret = true, want false")
	}
	if cfg.SyncType != SyncTypeSynchronize {
		t.Errorf("SyncType = %q", cfg.SyncType)
	}
	if cfg.PilotID != 42 {
		t.Errorf("PilotID = %d, want 42", cfg.PilotID)
	}
}

func TestSaveConduitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "e-todo-conduit", "Pilot_7", "config.toml")

	cfg := DefaultConduit(7)
	cfg.Secret = true
	cfg.Priority = 5
	cfg.LastURI = "sqlite:///home/u/.evolution/tasks/local/system/store.db"
	if err := SaveConduit(path, cfg); err != nil {
		t.Fatalf("SaveConduit() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("file permission = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadConduit(path, 7)
	if err != nil {
		t.Fatalf("LoadConduit() error = %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
}

func TestLoadConduitRejectsPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("priority = 9\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConduit(path, 1); err == nil {
		t.Error("LoadConduit() expected error for priority 9")
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConduit(3)
	dup := cfg.Clone()
	dup.LastURI = "changed"
	if cfg.LastURI != "" {
		t.Error("Clone() shares state with the original")
	}
}
