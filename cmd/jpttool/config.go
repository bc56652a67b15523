package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const envConfigPath = "JPTTOOL_CONFIG"

// Config represents the jpttool configuration file (~/.config/jpttool/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	Quality       *int   `yaml:"quality"`
	Interpolation string `yaml:"interpolation"`
	Force         *bool  `yaml:"force"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

func defaultConfigPath() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "jpttool", "config.yaml")
}

// loadConfig reads the config file at path. An empty path selects the default
// location, where a missing file yields a zero Config. An explicit path must exist.
func loadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	if path == "" {
		return Config{}, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
