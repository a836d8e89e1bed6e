package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Config file is optional if environment variables are set
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Warning: Could not read config file %s: %v. Using defaults and environment variables.\n", configPath, err)
	} else {
		if err := viper.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to config
func applyEnvironmentOverrides(cfg *Config) {
	if primaries := os.Getenv("CACHE_PRIMARIES"); primaries != "" {
		cfg.Cluster.Primaries = primaries
	}
	if replicas := os.Getenv("CACHE_REPLICAS"); replicas != "" {
		cfg.Cluster.Replicas = replicas
	}
	if vnodes := os.Getenv("CACHE_VIRTUAL_NODES"); vnodes != "" {
		if n, err := strconv.Atoi(vnodes); err == nil {
			cfg.Cluster.VirtualNodes = n
		}
	}
	if mode := os.Getenv("CACHE_REPLICATION_MODE"); mode != "" {
		cfg.Cluster.ReplicationMode = mode
	}

	if interval := os.Getenv("HEALTH_CHECK_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Health.CheckInterval = d
		}
	}
	if timeout := os.Getenv("HEALTH_PROBE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Health.ProbeTimeout = d
		}
	}
	if threshold := os.Getenv("HEALTH_FAILURE_THRESHOLD"); threshold != "" {
		if n, err := strconv.Atoi(threshold); err == nil {
			cfg.Health.FailureThreshold = n
		}
	}

	if port := os.Getenv("METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Metrics.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
