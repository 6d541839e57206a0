// Package config loads optional file-based defaults for the CLI.
// Priority is default < config file < flag.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is looked up in the working directory when no --config
// flag is given.
const DefaultFileName = "dankai.toml"

// FileConfig mirrors the TOML file. Pointer fields distinguish "absent"
// from zero values so flags keep their defaults.
type FileConfig struct {
	Dir     *string `toml:"dir"`
	Driver  *string `toml:"driver"`
	DSN     *string `toml:"dsn"`
	Table   *string `toml:"table"`
	Verbose *bool   `toml:"verbose"`
}

// Load reads the config file at path. An explicit path must exist; when
// explicit is false a missing file yields an empty config.
func Load(path string, explicit bool) (*FileConfig, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return &FileConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg FileConfig
	if err = toml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}
