package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matheus3301/pimsync/internal/config"
)

// BaseDir returns $PIMSYNC_HOME, or ~/.evolution.
func BaseDir() string {
	if dir := os.Getenv(config.EnvHome); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".evolution")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "pimsync.toml")
}

// storeDir maps a conduit kind onto its Evolution store directory.
func storeDir(kind config.Kind) string {
	if kind == config.KindMemo {
		return "memos"
	}
	return "tasks"
}

// MapPath returns the UID map file for a conduit and device.
func MapPath(kind config.Kind, pilotID uint32) string {
	name := fmt.Sprintf("pilot-map-%s-%d.xml", kind, pilotID)
	return filepath.Join(BaseDir(), storeDir(kind), "local", "system", name)
}

// StorePath returns the desktop store database for a source.
func StorePath(kind config.Kind, source string) string {
	return filepath.Join(BaseDir(), storeDir(kind), "local", source, "store.db")
}

// ConduitDir returns the per-device directory of a conduit.
func ConduitDir(kind config.Kind, pilotID uint32) string {
	return filepath.Join(BaseDir(), "gnome-pilot.d", "e-"+string(kind)+"-conduit", fmt.Sprintf("Pilot_%d", pilotID))
}

// ConduitConfigPath returns the per-device conduit config file.
func ConduitConfigPath(kind config.Kind, pilotID uint32) string {
	return filepath.Join(ConduitDir(kind, pilotID), "config.toml")
}

// DaemonDir returns the directory owned by pilotsyncd.
func DaemonDir() string {
	return filepath.Join(BaseDir(), "pimsync")
}

// HandheldPath returns the default handheld image database.
func HandheldPath() string {
	return filepath.Join(DaemonDir(), "handheld.db")
}

// SocketPath returns the UDS socket path of the daemon.
func SocketPath() string {
	return filepath.Join(DaemonDir(), "pilotsyncd.sock")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(DaemonDir(), "logs")
}

// LogPath returns the log file path of a component.
func LogPath(component string) string {
	return filepath.Join(LogDir(), component+".log")
}

// EnsureDir creates the daemon directory tree with proper permissions.
func EnsureDir() error {
	dirs := []string{
		DaemonDir(),
		LogDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
