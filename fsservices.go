package main

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "walkmap"

// fileExists reports whether the given path exists and is a file (not a directory).
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// xdgConfigDir returns $XDG_CONFIG_HOME or falls back to $HOME/.config.
func xdgConfigDir() string {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return d
	}
	home := os.Getenv("HOME")
	if home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".config")
	}
	return filepath.Join(home, ".config")
}

// xdgDataDir returns $XDG_DATA_HOME or falls back to $HOME/.local/share.
func xdgDataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return d
	}
	home := os.Getenv("HOME")
	if home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".local", "share")
	}
	return filepath.Join(home, ".local", "share")
}

// resolveDataDir picks the directory holding the POI database.
// Precedence: explicit flag > $WALKMAP_DATA_DIR > $XDG_DATA_HOME/walkmap.
func resolveDataDir(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if d := strings.TrimSpace(os.Getenv("WALKMAP_DATA_DIR")); d != "" {
		return d
	}
	return filepath.Join(xdgDataDir(), appName)
}

// configDir is where a user-level .env may live.
func configDir() string {
	return filepath.Join(xdgConfigDir(), appName)
}

// ensureDir creates the directory and any necessary parents if it doesn't exist.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
