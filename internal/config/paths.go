package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// DefaultConfigPath returns $XDG_CONFIG_HOME/vibe/config.toml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "vibe", "config.toml")
}
