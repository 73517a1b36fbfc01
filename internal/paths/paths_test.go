package paths

import (
	"path/filepath"
	"testing"

	"github.com/matheus3301/pimsync/internal/config"
)

func TestMapPath(t *testing.T) {
	t.Setenv(config.EnvHome, "/home/u/.evolution")

	tests := []struct {
		kind config.Kind
		want string
	}{
		{config.KindToDo, "/home/u/.evolution/tasks/local/system/pilot-map-todo-42.xml"},
		{config.KindMemo, "/home/u/.evolution/memos/local/system/pilot-map-memo-42.xml"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := MapPath(tt.kind, 42); got != tt.want {
				t.Errorf("MapPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConduitConfigPath(t *testing.T) {
	t.Setenv(config.EnvHome, "/base")

	got := ConduitConfigPath(config.KindMemo, 7)
	want := filepath.Join("/base", "gnome-pilot.d", "e-memo-conduit", "Pilot_7", "config.toml")
	if got != want {
		t.Errorf("ConduitConfigPath() = %q, want %q", got, want)
	}
}

func TestValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"system", false},
		{"work_2", false},
		{"", true},
		{"../etc", true},
		{"Work", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSource(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestResolveSource(t *testing.T) {
	if got := ResolveSource("flag", "cfg"); got != "flag" {
		t.Errorf("got %q, want flag", got)
	}
	if got := ResolveSource("", "cfg"); got != "cfg" {
		t.Errorf("got %q, want cfg", got)
	}
	if got := ResolveSource("", ""); got != DefaultSource {
		t.Errorf("got %q, want %q", got, DefaultSource)
	}
}
