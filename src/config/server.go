package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds process-level settings loaded from YAML.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	DataDir          string `yaml:"data_dir"`
	DefaultAgent     string `yaml:"default_agent"`
	SchedulerWorkers int    `yaml:"scheduler_workers"`
	LogLevel         string `yaml:"log_level"`
}

// DefaultServerConfig returns the settings used when no file is given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:             ":8000",
		DataDir:          "data",
		DefaultAgent:     "home",
		SchedulerWorkers: 4,
		LogLevel:         "info",
	}
}

// LoadServerConfig reads a YAML config file, falling back to defaults for
// any field left unset. A missing path returns the defaults.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "read server config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse server config")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.SchedulerWorkers <= 0 {
		cfg.SchedulerWorkers = 4
	}
	return cfg, nil
}
