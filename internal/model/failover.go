package model

import (
	"sync"
	"time"
)

// FailoverStatus tracks where a shard is in its failover lifecycle.
type FailoverStatus string

const (
	FailoverNeverFailed FailoverStatus = "NEVER_FAILED"
	FailoverInProgress  FailoverStatus = "FAILING_OVER"
	FailoverCompleted   FailoverStatus = "FAILED_OVER"
	FailoverRecovered   FailoverStatus = "RECOVERED"
	FailoverFailed      FailoverStatus = "FAILOVER_FAILED"
)

// FailoverRecord is the per-shard failover state.
type FailoverRecord struct {
	Status       FailoverStatus `json:"status"`
	Since        time.Time      `json:"since"`
	Promoted     bool           `json:"promoted"`
	LastDuration time.Duration  `json:"last_duration"`
}

// FailoverMetrics aggregates failover counters across all shards.
type FailoverMetrics struct {
	mu                 sync.Mutex
	total              int64
	successful         int64
	failed             int64
	cumulativeDuration time.Duration
	lastFailoverAt     time.Time
}

// FailoverMetricsSnapshot is a point-in-time copy of the counters.
type FailoverMetricsSnapshot struct {
	Total              int64         `json:"total"`
	Successful         int64         `json:"successful"`
	Failed             int64         `json:"failed"`
	CumulativeDuration time.Duration `json:"cumulative_duration"`
	AverageDuration    time.Duration `json:"average_duration"`
	LastFailoverAt     time.Time     `json:"last_failover_at"`
}

// RecordSuccess counts a completed promotion and its duration.
func (m *FailoverMetrics) RecordSuccess(d time.Duration, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.successful++
	m.cumulativeDuration += d
	m.lastFailoverAt = at
}

// RecordFailure counts an aborted promotion.
func (m *FailoverMetrics) RecordFailure(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.failed++
	m.lastFailoverAt = at
}

// Snapshot returns a copy of the counters with the derived average.
func (m *FailoverMetrics) Snapshot() FailoverMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := FailoverMetricsSnapshot{
		Total:              m.total,
		Successful:         m.successful,
		Failed:             m.failed,
		CumulativeDuration: m.cumulativeDuration,
		LastFailoverAt:     m.lastFailoverAt,
	}
	if m.successful > 0 {
		snap.AverageDuration = m.cumulativeDuration / time.Duration(m.successful)
	}
	return snap
}
