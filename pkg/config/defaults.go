package config

import (
	"os"
	"path/filepath"
)

// appDir returns ~/.config/shot-relay, or the working directory when the
// home directory is unknown.
func appDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(homeDir, ".config", "shot-relay")
}

// defaultStatePath returns the default delivery state file path.
//
// Returns: ~/.config/shot-relay/send_state.json.
func defaultStatePath() string {
	return filepath.Join(appDir(), "send_state.json")
}

// defaultCacheDBPath returns the default name cache path.
//
// Returns: ~/.config/shot-relay/app_names.db.
func defaultCacheDBPath() string {
	return filepath.Join(appDir(), "app_names.db")
}

// DefaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/shot-relay/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(appDir(), "config.yaml")
}
