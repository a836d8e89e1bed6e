package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	coorderr "github.com/sayedulabrar/distributed-rediscache/internal/errors"
	"github.com/sayedulabrar/distributed-rediscache/internal/metrics"
	"github.com/sayedulabrar/distributed-rediscache/internal/model"
)

// FailoverManager executes role swaps on primary failure and re-integrates
// recovered primaries as replicas of the promoted endpoint. Transitions are
// mutually exclusive per shard; distinct shards fail over independently.
type FailoverManager struct {
	probeTimeout time.Duration
	history      *model.History
	aggregate    *model.FailoverMetrics
	prom         *metrics.Metrics
	logger       *zap.Logger

	mu      sync.Mutex
	entries map[int]*failoverEntry
}

// failoverEntry serializes transitions for one shard.
type failoverEntry struct {
	mu     sync.Mutex
	record model.FailoverRecord
}

// NewFailoverManager creates a failover manager.
func NewFailoverManager(probeTimeout time.Duration, history *model.History, prom *metrics.Metrics, logger *zap.Logger) *FailoverManager {
	return &FailoverManager{
		probeTimeout: probeTimeout,
		history:      history,
		aggregate:    &model.FailoverMetrics{},
		prom:         prom,
		logger:       logger,
		entries:      make(map[int]*failoverEntry),
	}
}

func (f *FailoverManager) entry(shardID int) *failoverEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[shardID]
	if !ok {
		e = &failoverEntry{record: model.FailoverRecord{Status: model.FailoverNeverFailed}}
		f.entries[shardID] = e
	}
	return e
}

// Record returns a snapshot of a shard's failover record.
func (f *FailoverManager) Record(shardID int) model.FailoverRecord {
	e := f.entry(shardID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record
}

// Metrics returns a snapshot of the aggregate failover counters.
func (f *FailoverManager) Metrics() model.FailoverMetricsSnapshot {
	return f.aggregate.Snapshot()
}

// FailoverToReplica promotes the replica of the given shard to primary.
// Idempotent against concurrent triggers: a shard already failing over or
// failed over returns its current record without repeating the promotion.
// On any promotion error the gate is lowered before returning, so writes
// fail fast against the dead primary instead of stalling.
func (f *FailoverManager) FailoverToReplica(ctx context.Context, binding *model.ShardBinding) (model.FailoverRecord, error) {
	e := f.entry(binding.ID)

	e.mu.Lock()
	if e.record.Status == model.FailoverInProgress || e.record.Status == model.FailoverCompleted {
		rec := e.record
		e.mu.Unlock()
		return rec, nil
	}
	e.record.Status = model.FailoverInProgress
	e.record.Since = time.Now()
	e.mu.Unlock()

	t0 := time.Now()
	binding.RaiseGate()
	f.history.Record(binding.ID, model.EventFailoverBegin,
		fmt.Sprintf("promoting replica %s", binding.ReplicaEndpoint().Addr()))
	f.logger.Warn("starting failover",
		zap.Int("shard", binding.ID),
		zap.String("replica", binding.ReplicaEndpoint().Addr()))

	replica := binding.ReplicaEndpoint()

	probeCtx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	err := replica.Ping(probeCtx)
	cancel()
	if err != nil {
		return f.abort(binding, e, fmt.Sprintf("replica %s unreachable", replica.Addr()), err)
	}

	if err := replica.ConfigSet(ctx, "replica-read-only", "no"); err != nil {
		return f.abort(binding, e, "could not disable replica-read-only", err)
	}
	if err := replica.ReplicaOf(ctx, "NO", "ONE"); err != nil {
		return f.abort(binding, e, "could not detach replica", err)
	}

	binding.SwapRoles()
	binding.LowerGate()

	duration := time.Since(t0)
	e.mu.Lock()
	e.record.Status = model.FailoverCompleted
	e.record.Promoted = true
	e.record.LastDuration = duration
	rec := e.record
	e.mu.Unlock()

	f.aggregate.RecordSuccess(duration, time.Now())
	f.prom.FailoversTotal.WithLabelValues("success").Inc()
	f.prom.FailoverDuration.Observe(duration.Seconds())
	f.history.Record(binding.ID, model.EventFailoverSuccess,
		fmt.Sprintf("replica %s promoted in %s", binding.WriteEndpoint().Addr(), duration))
	f.logger.Info("failover completed",
		zap.Int("shard", binding.ID),
		zap.String("promoted", binding.WriteEndpoint().Addr()),
		zap.Duration("duration", duration))

	return rec, nil
}

func (f *FailoverManager) abort(binding *model.ShardBinding, e *failoverEntry, msg string, cause error) (model.FailoverRecord, error) {
	binding.LowerGate()

	e.mu.Lock()
	e.record.Status = model.FailoverFailed
	rec := e.record
	e.mu.Unlock()

	f.aggregate.RecordFailure(time.Now())
	f.prom.FailoversTotal.WithLabelValues("failure").Inc()
	f.history.Record(binding.ID, model.EventFailoverFailed, fmt.Sprintf("%s: %v", msg, cause))
	f.logger.Error("failover aborted",
		zap.Int("shard", binding.ID),
		zap.String("reason", msg),
		zap.Error(cause))

	return rec, coorderr.Wrap(coorderr.KindFailoverFailed, msg, cause)
}

// HandlePrimaryRecovery re-integrates a recovered original primary. After a
// completed failover the recovered endpoint sits in the replica slot; it is
// reattached to the promoted primary and made read-only. Roles are never
// swapped back: the promoted endpoint stays primary to avoid a second
// transition against possibly stale state.
func (f *FailoverManager) HandlePrimaryRecovery(ctx context.Context, binding *model.ShardBinding) error {
	e := f.entry(binding.ID)
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.record.Status {
	case model.FailoverInProgress, model.FailoverRecovered:
		return nil
	case model.FailoverCompleted:
		promoted := binding.WriteEndpoint()
		recovered := binding.ReplicaEndpoint()

		if err := recovered.ReplicaOf(ctx, promoted.Host(), promoted.Port()); err != nil {
			f.logger.Error("could not reattach recovered primary",
				zap.Int("shard", binding.ID),
				zap.String("endpoint", recovered.Addr()),
				zap.Error(err))
			return fmt.Errorf("reattach %s: %w", recovered.Addr(), err)
		}
		if err := recovered.ConfigSet(ctx, "replica-read-only", "yes"); err != nil {
			f.logger.Error("could not re-enable replica-read-only",
				zap.Int("shard", binding.ID),
				zap.String("endpoint", recovered.Addr()),
				zap.Error(err))
			return fmt.Errorf("set read-only on %s: %w", recovered.Addr(), err)
		}

		e.record.Status = model.FailoverRecovered
		f.history.Record(binding.ID, model.EventPrimaryRecovered,
			fmt.Sprintf("%s reattached as replica of %s", recovered.Addr(), promoted.Addr()))
		f.logger.Info("recovered primary reattached as replica",
			zap.Int("shard", binding.ID),
			zap.String("recovered", recovered.Addr()),
			zap.String("primary", promoted.Addr()))
		return nil
	default:
		// The primary came back before any promotion completed; no
		// reconfiguration needed.
		e.record.Status = model.FailoverRecovered
		f.history.Record(binding.ID, model.EventPrimaryRecovered,
			fmt.Sprintf("%s reachable again", binding.OriginalPrimary().Addr()))
		return nil
	}
}
