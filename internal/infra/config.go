package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the service. LoadConfig applies the
// YAML file first, then environment overrides, then validation.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Port        int `yaml:"port"`
		MaxUploadMB int `yaml:"max_upload_mb"`
	} `yaml:"server"`

	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`

	Replay struct {
		// skip drops an out-of-order record with a warning; abort
		// fails the whole file.
		OnSequenceAnomaly string `yaml:"on_sequence_anomaly"`
		// best_first orders lay ladders best lay first (ascending
		// price); descending mirrors the back-column display.
		LayLadderOrder    string `yaml:"lay_ladder_order"`
		SnapshotEvery     int    `yaml:"snapshot_every"`
		MaxParallelParses int    `yaml:"max_parallel_parses"`
		MaxLadderDepth    int    `yaml:"max_ladder_depth"`
	} `yaml:"replay"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns a config that works with no file present.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "betfair-replay"
	cfg.App.Version = "1.0.0"
	cfg.Server.Port = 8080
	cfg.Server.MaxUploadMB = 500
	cfg.Metrics.Port = 9090
	cfg.Replay.OnSequenceAnomaly = "skip"
	cfg.Replay.LayLadderOrder = "best_first"
	cfg.Replay.MaxParallelParses = 4
	cfg.Storage.Path = "data/betfair.db"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// LoadConfig reads the config file, overlays environment variables and
// validates the result. A missing file falls back to defaults so the
// service still starts in a bare container.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overrideWithEnv applies deployment-time overrides.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = p
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	switch c.Replay.OnSequenceAnomaly {
	case "skip", "abort":
	default:
		return fmt.Errorf("on_sequence_anomaly must be skip or abort, got %q", c.Replay.OnSequenceAnomaly)
	}
	switch c.Replay.LayLadderOrder {
	case "best_first", "descending":
	default:
		return fmt.Errorf("lay_ladder_order must be best_first or descending, got %q", c.Replay.LayLadderOrder)
	}
	if c.Replay.MaxParallelParses <= 0 {
		return fmt.Errorf("max_parallel_parses must be positive")
	}
	if c.Replay.SnapshotEvery < 0 || c.Replay.MaxLadderDepth < 0 {
		return fmt.Errorf("snapshot_every and max_ladder_depth must not be negative")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}
