package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sayedulabrar/distributed-rediscache/internal/algorithm"
	"github.com/sayedulabrar/distributed-rediscache/internal/client"
	"github.com/sayedulabrar/distributed-rediscache/internal/config"
	coorderr "github.com/sayedulabrar/distributed-rediscache/internal/errors"
	"github.com/sayedulabrar/distributed-rediscache/internal/metrics"
	"github.com/sayedulabrar/distributed-rediscache/internal/model"
)

// Coordinator is the top-level routing layer: it owns the ring, the cache
// operations, the health monitor, the failover manager and the stats
// aggregator, and exposes the control surface consumed by front-ends.
type Coordinator struct {
	ring     *algorithm.HashRing
	cache    *CacheService
	monitor  *HealthMonitor
	failover *FailoverManager
	stats    *StatsService
	history  *model.History
	logger   *zap.Logger

	shutdownTimeout time.Duration
	inflight        sync.WaitGroup
}

// NewCoordinator wires a coordinator from pre-built shard bindings.
func NewCoordinator(
	bindings []*model.ShardBinding,
	cfg *config.Config,
	prom *metrics.Metrics,
	logger *zap.Logger,
) *Coordinator {
	ring := algorithm.NewHashRing(bindings, cfg.Cluster.VirtualNodes)
	history := model.NewHistory()
	failover := NewFailoverManager(cfg.Health.ProbeTimeout, history, prom, logger)
	monitor := NewHealthMonitor(
		ring,
		failover,
		cfg.Health.CheckInterval,
		cfg.Health.ProbeTimeout,
		cfg.Health.FailureThreshold,
		history,
		prom,
		logger,
	)
	cache := NewCacheService(ring, model.ReplicationMode(cfg.Cluster.ReplicationMode), prom, logger)

	return &Coordinator{
		ring:            ring,
		cache:           cache,
		monitor:         monitor,
		failover:        failover,
		stats:           NewStatsService(ring, logger),
		history:         history,
		logger:          logger,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// NewCoordinatorFromConfig builds endpoint clients and bindings from the
// configured primary/replica lists and wires a coordinator over them.
func NewCoordinatorFromConfig(cfg *config.Config, prom *metrics.Metrics, logger *zap.Logger) (*Coordinator, error) {
	primaries := cfg.Cluster.PrimaryAddrs()
	replicas := cfg.Cluster.ReplicaAddrs()
	if len(primaries) == 0 || len(primaries) != len(replicas) {
		return nil, coorderr.Newf(coorderr.KindConfigError,
			"need matching primary/replica lists, got %d/%d", len(primaries), len(replicas))
	}

	bindings := make([]*model.ShardBinding, 0, len(primaries))
	for i := range primaries {
		p, err := client.NewEndpoint(primaries[i], cfg.Server.CommandTimeout, logger)
		if err != nil {
			return nil, err
		}
		r, err := client.NewEndpoint(replicas[i], cfg.Server.CommandTimeout, logger)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, model.NewShardBinding(i, p, r))
	}

	return NewCoordinator(bindings, cfg, prom, logger), nil
}

// Start launches the background health monitor.
func (c *Coordinator) Start() {
	c.monitor.Start()
	c.logger.Info("coordinator started",
		zap.Int("shards", len(c.ring.Bindings())),
		zap.Int("positions", c.ring.PositionCount()))
}

// Set stores a key on its shard.
func (c *Coordinator) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, mode model.ReplicationMode) (*model.SetResult, error) {
	c.inflight.Add(1)
	defer c.inflight.Done()
	return c.cache.Set(ctx, key, value, ttl, mode)
}

// Get reads a key from its shard.
func (c *Coordinator) Get(ctx context.Context, key string) (*model.GetResult, error) {
	c.inflight.Add(1)
	defer c.inflight.Done()
	return c.cache.Get(ctx, key)
}

// Delete removes a key from its shard.
func (c *Coordinator) Delete(ctx context.Context, key string) (*model.DeleteResult, error) {
	c.inflight.Add(1)
	defer c.inflight.Done()
	return c.cache.Delete(ctx, key)
}

// DescribeRing returns the ring geometry for observability.
func (c *Coordinator) DescribeRing() *model.RingDescription {
	return c.ring.Describe()
}

// AllStats aggregates keyspace stats across all shards.
func (c *Coordinator) AllStats(ctx context.Context) *model.ClusterStats {
	return c.stats.AllStats(ctx)
}

// ReplicationLag reports each shard's replication backlog.
func (c *Coordinator) ReplicationLag(ctx context.Context) []model.ShardLag {
	return c.stats.ReplicationLag(ctx)
}

// HealthSummary returns the per-shard health view plus the transition
// history.
func (c *Coordinator) HealthSummary() *model.HealthSummary {
	return &model.HealthSummary{
		Shards:  c.monitor.Summary(),
		History: c.history.Events(),
	}
}

// FailoverMetrics returns the aggregate failover counters.
func (c *Coordinator) FailoverMetrics() model.FailoverMetricsSnapshot {
	return c.failover.Metrics()
}

// TriggerFailover forces a failover of the given shard. Intended for
// testing and operational drills.
func (c *Coordinator) TriggerFailover(ctx context.Context, shardID int) (model.FailoverRecord, error) {
	binding, ok := c.ring.Binding(shardID)
	if !ok {
		return model.FailoverRecord{}, fmt.Errorf("unknown shard id %d", shardID)
	}

	rec, err := c.failover.FailoverToReplica(ctx, binding)
	if err != nil {
		return rec, err
	}
	if rec.Status == model.FailoverCompleted {
		c.monitor.markFailedOver(shardID)
	}
	return rec, nil
}

// Shutdown stops the monitor, waits for in-flight operations up to the
// configured drain window, then closes all endpoint connections.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.logger.Info("coordinator shutting down")
	c.monitor.Stop()

	drainCtx, cancel := context.WithTimeout(ctx, c.shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-drainCtx.Done():
		c.logger.Warn("drain window elapsed with operations still in flight")
	}

	var err error
	for _, b := range c.ring.Bindings() {
		if cerr := b.Close(); err == nil {
			err = cerr
		}
	}
	c.logger.Info("coordinator stopped")
	return err
}
