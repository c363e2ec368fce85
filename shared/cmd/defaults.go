package cmd

import (
	"path/filepath"
	"runtime"

	"github.com/routeforge/dispatch-core/shared/fileutil"
)

// DefaultDataDir returns the platform-appropriate default directory
// for dispatchd's persisted manifests and state snapshots.
func DefaultDataDir() string {
	home := fileutil.HomeDir()
	if home == "" {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Dispatchd")
	case "windows":
		return filepath.Join(home, "AppData", "Local", "Dispatchd")
	default:
		return filepath.Join(home, ".dispatchd")
	}
}
