package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coorderr "github.com/sayedulabrar/distributed-rediscache/internal/errors"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Cluster.Primaries = "127.0.0.1:7000,127.0.0.1:7001,127.0.0.1:7002"
	cfg.Cluster.Replicas = "127.0.0.1:7100, 127.0.0.1:7101,127.0.0.1:7102"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 150, cfg.Cluster.VirtualNodes)
	assert.Equal(t, "async", cfg.Cluster.ReplicationMode)
	assert.Equal(t, 5*time.Second, cfg.Health.CheckInterval)
	assert.Equal(t, 3*time.Second, cfg.Health.ProbeTimeout)
	assert.Equal(t, 3, cfg.Health.FailureThreshold)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestEndpointListParsing(t *testing.T) {
	cfg := validConfig()

	primaries := cfg.Cluster.PrimaryAddrs()
	require.Len(t, primaries, 3)
	assert.Equal(t, "127.0.0.1:7000", primaries[0])

	// Whitespace around entries is tolerated.
	replicas := cfg.Cluster.ReplicaAddrs()
	assert.Equal(t, "127.0.0.1:7101", replicas[1])
}

func TestValidateRejectsMissingEndpoints(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, coorderr.KindConfigError, coorderr.KindOf(err))
}

func TestValidateRejectsCountMismatch(t *testing.T) {
	cfg := validConfig()
	cfg.Cluster.Replicas = "127.0.0.1:7100"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, coorderr.KindConfigError, coorderr.KindOf(err))
	assert.Contains(t, err.Error(), "mismatch")
}

func TestValidateRejectsMalformedAddress(t *testing.T) {
	cfg := validConfig()
	cfg.Cluster.Primaries = "127.0.0.1:7000,not-an-address,127.0.0.1:7002"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, coorderr.KindConfigError, coorderr.KindOf(err))
}

func TestValidateRejectsBadReplicationMode(t *testing.T) {
	cfg := validConfig()
	cfg.Cluster.ReplicationMode = "quorum"

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveKnobs(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"virtual nodes":     func(c *Config) { c.Cluster.VirtualNodes = 0 },
		"check interval":    func(c *Config) { c.Health.CheckInterval = 0 },
		"probe timeout":     func(c *Config) { c.Health.ProbeTimeout = -time.Second },
		"failure threshold": func(c *Config) { c.Health.FailureThreshold = 0 },
	} {
		cfg := validConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CACHE_PRIMARIES", "10.0.0.1:6379")
	t.Setenv("CACHE_REPLICAS", "10.0.1.1:6379")
	t.Setenv("CACHE_VIRTUAL_NODES", "64")
	t.Setenv("CACHE_REPLICATION_MODE", "sync")
	t.Setenv("HEALTH_CHECK_INTERVAL", "2s")
	t.Setenv("HEALTH_FAILURE_THRESHOLD", "5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	applyEnvironmentOverrides(cfg)

	assert.Equal(t, []string{"10.0.0.1:6379"}, cfg.Cluster.PrimaryAddrs())
	assert.Equal(t, 64, cfg.Cluster.VirtualNodes)
	assert.Equal(t, "sync", cfg.Cluster.ReplicationMode)
	assert.Equal(t, 2*time.Second, cfg.Health.CheckInterval)
	assert.Equal(t, 5, cfg.Health.FailureThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}
