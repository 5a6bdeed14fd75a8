// Package config loads server settings from a YAML file with .env /
// environment-variable overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Workspace struct {
		// Include globs are doublestar patterns relative to the
		// workspace root, e.g. "**/*.yaml".
		Include []string `yaml:"include"`
	} `yaml:"workspace"`
	Pool struct {
		Workers        int           `yaml:"workers"`
		PerKindLimit   int64         `yaml:"per_kind_limit"`
		TotalLimit     int64         `yaml:"total_limit"`
		StartTimeoutMs int           `yaml:"start_timeout_ms"`
		StartTimeout   time.Duration `yaml:"-"`
	} `yaml:"pool"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.Workspace.Include = []string{"**/*.yaml", "**/*.miniyaml"}
	cfg.Pool.Workers = 4
	cfg.Pool.PerKindLimit = 8
	cfg.Pool.TotalLimit = 32
	cfg.Pool.StartTimeoutMs = 2000
	cfg.finish()
	return &cfg
}

// Load reads a YAML config file. A path of "" yields Default. Values
// from the environment (optionally via a .env file) win over the file:
// ORAML_POOL_WORKERS, ORAML_POOL_TOTAL_LIMIT, ORAML_START_TIMEOUT_MS.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("ORAML_POOL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.Workers = n
		}
	}
	if v := os.Getenv("ORAML_POOL_TOTAL_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Pool.TotalLimit = n
		}
	}
	if v := os.Getenv("ORAML_START_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.StartTimeoutMs = n
		}
	}

	cfg.finish()
	return cfg, nil
}

func (c *Config) finish() {
	if len(c.Workspace.Include) == 0 {
		c.Workspace.Include = []string{"**/*.yaml", "**/*.miniyaml"}
	}
	c.Pool.StartTimeout = time.Duration(c.Pool.StartTimeoutMs) * time.Millisecond
}
