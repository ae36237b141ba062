package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig writes the default configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()

	// Keep the device state next to the configuration it was created from.
	cfg.Metadata.Path = filepath.Join(filepath.Dir(path), "state", cfg.Device.Name)

	return SaveConfig(cfg, path)
}
