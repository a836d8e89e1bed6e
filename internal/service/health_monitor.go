package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sayedulabrar/distributed-rediscache/internal/algorithm"
	"github.com/sayedulabrar/distributed-rediscache/internal/client"
	"github.com/sayedulabrar/distributed-rediscache/internal/metrics"
	"github.com/sayedulabrar/distributed-rediscache/internal/model"
)

// HealthMonitor probes every shard on a fixed interval and drives the
// per-shard state machine HEALTHY -> DEGRADED -> FAILED -> FAILED_OVER.
// Probes for different shards run in parallel; for a given shard at most one
// probe is in flight, overlapping ticks are skipped.
type HealthMonitor struct {
	ring      *algorithm.HashRing
	failover  *FailoverManager
	interval  time.Duration
	timeout   time.Duration
	threshold int
	history   *model.History
	prom      *metrics.Metrics
	logger    *zap.Logger

	mu       sync.Mutex
	records  map[int]*model.HealthRecord
	inflight map[int]bool

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHealthMonitor creates a monitor over the ring's bindings.
func NewHealthMonitor(
	ring *algorithm.HashRing,
	failover *FailoverManager,
	interval, timeout time.Duration,
	threshold int,
	history *model.History,
	prom *metrics.Metrics,
	logger *zap.Logger,
) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	m := &HealthMonitor{
		ring:      ring,
		failover:  failover,
		interval:  interval,
		timeout:   timeout,
		threshold: threshold,
		history:   history,
		prom:      prom,
		logger:    logger,
		records:   make(map[int]*model.HealthRecord),
		inflight:  make(map[int]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, b := range ring.Bindings() {
		m.records[b.ID] = &model.HealthRecord{Status: model.HealthHealthy}
	}
	return m
}

// Start launches the monitoring loop in a background goroutine.
func (m *HealthMonitor) Start() {
	m.wg.Add(1)
	go m.run()
	m.logger.Info("health monitor started",
		zap.Duration("interval", m.interval),
		zap.Duration("probe_timeout", m.timeout),
		zap.Int("failure_threshold", m.threshold))
}

// Stop cancels the loop and any outstanding probes, then waits for them.
// Idempotent.
func (m *HealthMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		m.wg.Wait()
		m.logger.Info("health monitor stopped")
	})
}

func (m *HealthMonitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sweep()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.ctx.Done():
			return
		}
	}
}

// sweep probes all shards concurrently, skipping shards whose previous
// probe has not returned yet.
func (m *HealthMonitor) sweep() {
	for _, b := range m.ring.Bindings() {
		m.mu.Lock()
		if m.inflight[b.ID] {
			m.mu.Unlock()
			continue
		}
		m.inflight[b.ID] = true
		m.mu.Unlock()

		m.wg.Add(1)
		go func(binding *model.ShardBinding) {
			defer m.wg.Done()
			defer func() {
				m.mu.Lock()
				delete(m.inflight, binding.ID)
				m.mu.Unlock()
			}()
			m.probeShard(binding)
		}(b)
	}
}

func (m *HealthMonitor) probeShard(binding *model.ShardBinding) {
	m.mu.Lock()
	status := m.records[binding.ID].Status
	m.mu.Unlock()

	switch status {
	case model.HealthHealthy, model.HealthDegraded:
		err := m.ping(binding.WriteEndpoint())
		m.observePrimary(binding, err)
	case model.HealthFailed:
		// The original primary is still the write endpoint here: no
		// promotion has completed. If it is back, recover; otherwise
		// retry the failover.
		m.touch(binding.ID)
		if err := m.ping(binding.OriginalPrimary()); err == nil {
			m.observeRecovery(binding)
		} else {
			m.prom.ProbesTotal.WithLabelValues(binding.Name, "failure").Inc()
			m.triggerFailover(binding)
		}
	case model.HealthFailedOver:
		// The write endpoint is the promoted replica and is expected
		// healthy; recovery detection must address the original
		// primary by identity.
		m.touch(binding.ID)
		if err := m.ping(binding.OriginalPrimary()); err == nil {
			m.observeRecovery(binding)
		}
	}
}

func (m *HealthMonitor) touch(shardID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[shardID].LastCheckAt = time.Now()
}

func (m *HealthMonitor) ping(ep client.Conn) error {
	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	defer cancel()
	return ep.Ping(ctx)
}

// observePrimary applies one probe result to a HEALTHY or DEGRADED shard.
func (m *HealthMonitor) observePrimary(binding *model.ShardBinding, probeErr error) {
	now := time.Now()

	m.mu.Lock()
	rec := m.records[binding.ID]
	rec.LastCheckAt = now

	if probeErr == nil {
		rec.ConsecutiveFailures = 0
		rec.LastSuccessAt = now
		rec.Status = model.HealthHealthy
		m.mu.Unlock()

		m.prom.ProbesTotal.WithLabelValues(binding.Name, "success").Inc()
		m.prom.ShardHealth.WithLabelValues(binding.Name).Set(1)
		return
	}

	rec.ConsecutiveFailures++
	failures := rec.ConsecutiveFailures
	if failures < m.threshold {
		rec.Status = model.HealthDegraded
		m.mu.Unlock()

		m.prom.ProbesTotal.WithLabelValues(binding.Name, "failure").Inc()
		m.prom.ShardHealth.WithLabelValues(binding.Name).Set(0)
		m.logger.Warn("shard probe failed",
			zap.Int("shard", binding.ID),
			zap.String("endpoint", binding.WriteEndpoint().Addr()),
			zap.Int("consecutive_failures", failures),
			zap.Error(probeErr))
		return
	}

	rec.Status = model.HealthFailed
	m.mu.Unlock()

	m.prom.ProbesTotal.WithLabelValues(binding.Name, "failure").Inc()
	m.prom.ShardHealth.WithLabelValues(binding.Name).Set(0)
	m.history.Record(binding.ID, model.EventPrimaryFailed,
		fmt.Sprintf("%s failed %d consecutive probes", binding.WriteEndpoint().Addr(), failures))
	m.logger.Error("shard primary failed",
		zap.Int("shard", binding.ID),
		zap.String("endpoint", binding.WriteEndpoint().Addr()),
		zap.Int("consecutive_failures", failures),
		zap.Error(probeErr))

	m.triggerFailover(binding)
}

func (m *HealthMonitor) triggerFailover(binding *model.ShardBinding) {
	rec, err := m.failover.FailoverToReplica(m.ctx, binding)
	if err != nil {
		// Shard stays FAILED; the next sweep retries.
		return
	}
	if rec.Status == model.FailoverCompleted {
		m.markFailedOver(binding.ID)
	}
}

// markFailedOver moves a shard's health record to FAILED_OVER after a
// successful promotion. Also used when a failover is triggered manually.
func (m *HealthMonitor) markFailedOver(shardID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[shardID]
	if !ok {
		return
	}
	rec.Status = model.HealthFailedOver
	rec.ConsecutiveFailures = 0
}

// observeRecovery handles a successful probe of the original primary while
// the shard is FAILED or FAILED_OVER.
func (m *HealthMonitor) observeRecovery(binding *model.ShardBinding) {
	m.prom.ProbesTotal.WithLabelValues(binding.Name, "success").Inc()

	if err := m.failover.HandlePrimaryRecovery(m.ctx, binding); err != nil {
		m.logger.Error("primary recovery handling failed",
			zap.Int("shard", binding.ID),
			zap.Error(err))
		return
	}

	now := time.Now()
	m.mu.Lock()
	rec := m.records[binding.ID]
	rec.Status = model.HealthHealthy
	rec.ConsecutiveFailures = 0
	rec.LastCheckAt = now
	rec.LastSuccessAt = now
	m.mu.Unlock()

	m.prom.ShardHealth.WithLabelValues(binding.Name).Set(1)
	m.logger.Info("shard primary recovered",
		zap.Int("shard", binding.ID),
		zap.String("endpoint", binding.OriginalPrimary().Addr()))
}

// Summary returns the per-shard health view.
func (m *HealthMonitor) Summary() []model.ShardHealth {
	bindings := m.ring.Bindings()
	out := make([]model.ShardHealth, 0, len(bindings))

	for _, b := range bindings {
		m.mu.Lock()
		rec := *m.records[b.ID]
		m.mu.Unlock()

		out = append(out, model.ShardHealth{
			ShardID:      b.ID,
			ShardName:    b.Name,
			Status:       rec.Status,
			Failures:     rec.ConsecutiveFailures,
			LastCheckAt:  rec.LastCheckAt,
			LastOKAt:     rec.LastSuccessAt,
			Failover:     m.failover.Record(b.ID),
			PrimaryAddr:  b.WriteEndpoint().Addr(),
			ReplicaAddr:  b.ReplicaEndpoint().Addr(),
			RolesSwapped: b.Promoted(),
		})
	}
	return out
}
