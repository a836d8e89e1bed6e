package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	coorderr "github.com/sayedulabrar/distributed-rediscache/internal/errors"
)

// Config represents the coordinator configuration
type Config struct {
	Cluster ClusterConfig `mapstructure:"cluster"`
	Health  HealthConfig  `mapstructure:"health"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ClusterConfig describes the shard fleet and ring geometry
type ClusterConfig struct {
	Primaries       string `mapstructure:"primaries"`
	Replicas        string `mapstructure:"replicas"`
	VirtualNodes    int    `mapstructure:"virtual_nodes"`
	ReplicationMode string `mapstructure:"replication_mode"`
}

// HealthConfig controls the health monitor
type HealthConfig struct {
	CheckInterval    time.Duration `mapstructure:"check_interval"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

// ServerConfig holds process-level settings
type ServerConfig struct {
	CommandTimeout  time.Duration `mapstructure:"command_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PrimaryAddrs returns the parsed primary endpoint list.
func (c *ClusterConfig) PrimaryAddrs() []string {
	return splitAddrs(c.Primaries)
}

// ReplicaAddrs returns the parsed replica endpoint list.
func (c *ClusterConfig) ReplicaAddrs() []string {
	return splitAddrs(c.Replicas)
}

func splitAddrs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	primaries := c.Cluster.PrimaryAddrs()
	replicas := c.Cluster.ReplicaAddrs()

	if len(primaries) == 0 {
		return coorderr.New(coorderr.KindConfigError, "cluster.primaries is required")
	}
	if len(replicas) == 0 {
		return coorderr.New(coorderr.KindConfigError, "cluster.replicas is required")
	}
	if len(primaries) != len(replicas) {
		return coorderr.Newf(coorderr.KindConfigError,
			"primary/replica count mismatch: %d primaries, %d replicas", len(primaries), len(replicas))
	}
	for _, addr := range append(append([]string{}, primaries...), replicas...) {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return coorderr.Wrap(coorderr.KindConfigError, fmt.Sprintf("invalid endpoint %q", addr), err)
		}
	}
	if c.Cluster.VirtualNodes <= 0 {
		return coorderr.New(coorderr.KindConfigError, "cluster.virtual_nodes must be positive")
	}
	switch c.Cluster.ReplicationMode {
	case "async", "sync":
	default:
		return coorderr.New(coorderr.KindConfigError, "cluster.replication_mode must be async or sync")
	}
	if c.Health.CheckInterval <= 0 {
		return coorderr.New(coorderr.KindConfigError, "health.check_interval must be positive")
	}
	if c.Health.ProbeTimeout <= 0 {
		return coorderr.New(coorderr.KindConfigError, "health.probe_timeout must be positive")
	}
	if c.Health.FailureThreshold <= 0 {
		return coorderr.New(coorderr.KindConfigError, "health.failure_threshold must be positive")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Cluster: ClusterConfig{
			VirtualNodes:    150,
			ReplicationMode: "async",
		},
		Health: HealthConfig{
			CheckInterval:    5 * time.Second,
			ProbeTimeout:     3 * time.Second,
			FailureThreshold: 3,
		},
		Server: ServerConfig{
			CommandTimeout:  5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
