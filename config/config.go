package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the transport layer settings. The matching core itself
// is configuration-free.
type AppConfig struct {
	ServiceName string `yaml:"service_name"`
	Listen      string `yaml:"listen"`
	DepthLevels int    `yaml:"depth_levels"` // levels per side in market-data snapshots
	LogLevel    string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	return &AppConfig{
		ServiceName: "matching-engine",
		Listen:      ":8000",
		DepthLevels: 10,
		LogLevel:    "info",
	}
}

// Load reads a yaml config file, expanding ${VAR} references from the
// environment before parsing. An empty path falls back to the CONFIG_FILE
// environment variable, and to defaults when that is unset too.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	cfg := Default()
	if len(filePath) == 0 {
		return cfg, nil
	}

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filePath, err)
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	if err := yaml.Unmarshal(configBytes, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filePath, err)
	}

	if cfg.DepthLevels <= 0 {
		return nil, fmt.Errorf("config: depth_levels must be positive")
	}
	if len(cfg.Listen) == 0 {
		return nil, fmt.Errorf("config: listen address is required")
	}

	return cfg, nil
}
