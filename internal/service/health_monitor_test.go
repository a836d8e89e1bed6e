package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sayedulabrar/distributed-rediscache/internal/model"
)

func newMonitor(fx *fixture, interval time.Duration, threshold int) (*HealthMonitor, *FailoverManager) {
	mgr := NewFailoverManager(2*time.Second, fx.history, fx.prom, fx.logger)
	mon := NewHealthMonitor(fx.ring, mgr, interval, time.Second, threshold, fx.history, fx.prom, fx.logger)
	return mon, mgr
}

func shardStatus(mon *HealthMonitor, id int) model.HealthState {
	for _, sh := range mon.Summary() {
		if sh.ShardID == id {
			return sh.Status
		}
	}
	return ""
}

func TestMonitorStartsHealthy(t *testing.T) {
	fx := newFixture(t, 3, 8)
	mon, _ := newMonitor(fx, time.Hour, 3)

	for _, sh := range mon.Summary() {
		assert.Equal(t, model.HealthHealthy, sh.Status)
		assert.Equal(t, model.FailoverNeverFailed, sh.Failover.Status)
	}
}

func TestMonitorDegradedBelowThreshold(t *testing.T) {
	fx := newFixture(t, 1, 8)
	mon, _ := newMonitor(fx, time.Hour, 3)
	binding := fx.bindings[0]
	fx.primaries[0].setDown(true)

	mon.probeShard(binding)
	assert.Equal(t, model.HealthDegraded, shardStatus(mon, 0))

	mon.probeShard(binding)
	assert.Equal(t, model.HealthDegraded, shardStatus(mon, 0))

	// A successful probe resets the failure counter.
	fx.primaries[0].setDown(false)
	mon.probeShard(binding)
	assert.Equal(t, model.HealthHealthy, shardStatus(mon, 0))

	summary := mon.Summary()
	assert.Equal(t, 0, summary[0].Failures)
}

func TestMonitorFailsOverAtThreshold(t *testing.T) {
	fx := newFixture(t, 1, 8)
	mon, mgr := newMonitor(fx, time.Hour, 3)
	binding := fx.bindings[0]
	fx.primaries[0].setDown(true)

	for i := 0; i < 3; i++ {
		mon.probeShard(binding)
	}

	assert.Equal(t, model.HealthFailedOver, shardStatus(mon, 0))
	assert.Equal(t, model.FailoverCompleted, mgr.Record(0).Status)
	assert.Equal(t, fx.replicas[0].Addr(), binding.WriteEndpoint().Addr())
}

func TestMonitorStaysFailedWhenFailoverFails(t *testing.T) {
	fx := newFixture(t, 1, 8)
	mon, mgr := newMonitor(fx, time.Hour, 3)
	binding := fx.bindings[0]
	fx.primaries[0].setDown(true)
	fx.replicas[0].setDown(true)

	for i := 0; i < 3; i++ {
		mon.probeShard(binding)
	}

	assert.Equal(t, model.HealthFailed, shardStatus(mon, 0))
	assert.Equal(t, model.FailoverFailed, mgr.Record(0).Status)

	// Replica recovers; the next probe retries the failover.
	fx.replicas[0].setDown(false)
	mon.probeShard(binding)
	assert.Equal(t, model.HealthFailedOver, shardStatus(mon, 0))
	assert.Equal(t, model.FailoverCompleted, mgr.Record(0).Status)
}

func TestMonitorRecoveryProbesOriginalPrimary(t *testing.T) {
	fx := newFixture(t, 1, 8)
	mon, mgr := newMonitor(fx, time.Hour, 3)
	binding := fx.bindings[0]
	fx.primaries[0].setDown(true)

	for i := 0; i < 3; i++ {
		mon.probeShard(binding)
	}
	require.Equal(t, model.HealthFailedOver, shardStatus(mon, 0))

	// The promoted replica answers probes, but the shard must not be
	// considered recovered until the original primary is back.
	mon.probeShard(binding)
	assert.Equal(t, model.HealthFailedOver, shardStatus(mon, 0))
	assert.Equal(t, model.FailoverCompleted, mgr.Record(0).Status)

	fx.primaries[0].setDown(false)
	mon.probeShard(binding)

	assert.Equal(t, model.HealthHealthy, shardStatus(mon, 0))
	assert.Equal(t, model.FailoverRecovered, mgr.Record(0).Status)
	// Reattached, not failed back.
	assert.Equal(t, fx.replicas[0].Addr(), binding.WriteEndpoint().Addr())
	assert.Equal(t, fx.replicas[0].Host(), fx.primaries[0].masterHost)
}

func TestMonitorPrimaryRecoversBeforeFailover(t *testing.T) {
	fx := newFixture(t, 1, 8)
	mon, mgr := newMonitor(fx, time.Hour, 3)
	binding := fx.bindings[0]
	fx.primaries[0].setDown(true)
	fx.replicas[0].setDown(true)

	for i := 0; i < 3; i++ {
		mon.probeShard(binding)
	}
	require.Equal(t, model.HealthFailed, shardStatus(mon, 0))

	fx.primaries[0].setDown(false)
	mon.probeShard(binding)

	assert.Equal(t, model.HealthHealthy, shardStatus(mon, 0))
	assert.Equal(t, model.FailoverRecovered, mgr.Record(0).Status)
	// No promotion ever completed, so the original roles stand.
	assert.Equal(t, fx.primaries[0].Addr(), binding.WriteEndpoint().Addr())
}

func TestMonitorBackgroundFailover(t *testing.T) {
	fx := newFixture(t, 3, 8)
	mon, mgr := newMonitor(fx, 10*time.Millisecond, 3)
	fx.primaries[1].setDown(true)

	mon.Start()
	defer mon.Stop()

	require.Eventually(t, func() bool {
		return shardStatus(mon, 1) == model.HealthFailedOver
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, model.FailoverCompleted, mgr.Record(1).Status)
	assert.Equal(t, int64(1), mgr.Metrics().Successful)
	// Other shards are untouched.
	assert.Equal(t, model.HealthHealthy, shardStatus(mon, 0))
	assert.Equal(t, model.HealthHealthy, shardStatus(mon, 2))
}

func TestMonitorSkipsOverlappingProbes(t *testing.T) {
	fx := newFixture(t, 1, 8)
	mon, _ := newMonitor(fx, time.Hour, 3)

	gate := make(chan struct{})
	fx.primaries[0].pingGate = gate

	mon.sweep()
	require.Eventually(t, func() bool {
		return fx.primaries[0].pingCount() == 1
	}, time.Second, time.Millisecond)

	// Later sweeps must not stack probes behind the blocked one.
	mon.sweep()
	mon.sweep()
	assert.Equal(t, 1, fx.primaries[0].pingCount())

	close(gate)
	mon.Stop()
}

func TestMonitorStopIdempotent(t *testing.T) {
	fx := newFixture(t, 1, 8)
	mon, _ := newMonitor(fx, 10*time.Millisecond, 3)

	mon.Start()
	mon.Stop()
	mon.Stop()
}

func TestMonitorRecordsTransitionHistory(t *testing.T) {
	fx := newFixture(t, 1, 8)
	mon, _ := newMonitor(fx, time.Hour, 3)
	binding := fx.bindings[0]
	fx.primaries[0].setDown(true)

	for i := 0; i < 3; i++ {
		mon.probeShard(binding)
	}
	fx.primaries[0].setDown(false)
	mon.probeShard(binding)

	kinds := make([]model.EventKind, 0)
	for _, ev := range fx.history.Events() {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []model.EventKind{
		model.EventPrimaryFailed,
		model.EventFailoverBegin,
		model.EventFailoverSuccess,
		model.EventPrimaryRecovered,
	}, kinds)
}
