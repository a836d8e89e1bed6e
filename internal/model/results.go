package model

import "time"

// ReplicationMode selects how writes are acknowledged.
type ReplicationMode string

const (
	ReplicationAsync ReplicationMode = "async"
	ReplicationSync  ReplicationMode = "sync"
)

// WriteTarget names which endpoint served a write.
type WriteTarget string

const (
	TargetPrimary         WriteTarget = "primary"
	TargetPromotedReplica WriteTarget = "promoted_replica"
)

// ReplicationInfo reports the outcome of a synchronous-mode WAIT.
type ReplicationInfo struct {
	Mode     ReplicationMode `json:"mode"`
	Replicas int64           `json:"replicas"`
	Status   string          `json:"status"` // "confirmed" or "timeout"
}

// SetResult is the outcome of a set operation.
type SetResult struct {
	OK           bool             `json:"ok"`
	ShardID      int              `json:"shard_id"`
	ShardName    string           `json:"shard_name"`
	Hash         uint32           `json:"hash"`
	Target       WriteTarget      `json:"target"`
	Replication  *ReplicationInfo `json:"replication,omitempty"`
	LatencyMs    int64            `json:"latency_ms"`
	RetryAfterMs int64            `json:"retry_after_ms,omitempty"`
}

// GetResult is the outcome of a get operation.
type GetResult struct {
	OK        bool        `json:"ok"`
	ShardID   int         `json:"shard_id"`
	ShardName string      `json:"shard_name"`
	Value     interface{} `json:"value,omitempty"`
	Source    string      `json:"source,omitempty"` // "primary" or "replica"
	Failover  bool        `json:"failover,omitempty"`
	Warning   string      `json:"warning,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// DeleteResult is the outcome of a delete operation.
type DeleteResult struct {
	OK        bool   `json:"ok"`
	ShardID   int    `json:"shard_id"`
	ShardName string `json:"shard_name"`
}

// RingArc is one shard's share of the hash space, for observability.
type RingArc struct {
	ShardID    int     `json:"shard_id"`
	ShardName  string  `json:"shard_name"`
	VnodeCount int     `json:"vnode_count"`
	Span       uint64  `json:"span"`
	Percent    float64 `json:"percent"`
	MinArc     uint64  `json:"min_arc"`
	MaxArc     uint64  `json:"max_arc"`
}

// RingDescription is the observable geometry of the ring.
type RingDescription struct {
	Shards       int       `json:"shards"`
	VirtualNodes int       `json:"virtual_nodes"`
	Positions    int       `json:"positions"`
	Arcs         []RingArc `json:"arcs"`
}

// ShardStats is one shard's keyspace and hit-rate numbers parsed from INFO.
type ShardStats struct {
	ShardID   int     `json:"shard_id"`
	ShardName string  `json:"shard_name"`
	Keys      int64   `json:"keys"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	Error     string  `json:"error,omitempty"`
}

// ClusterStats aggregates keyspace stats across all primaries.
type ClusterStats struct {
	Shards         []ShardStats `json:"shards"`
	TotalKeys      int64        `json:"total_keys"`
	OverallHitRate float64      `json:"overall_hit_rate"`
}

// ShardLag is one shard's replication backlog.
type ShardLag struct {
	ShardID         int    `json:"shard_id"`
	ShardName       string `json:"shard_name"`
	PrimaryOffset   int64  `json:"primary_offset"`
	ReplicaOffset   int64  `json:"replica_offset"`
	LagBytes        int64  `json:"lag_bytes"`
	ConnectedSlaves int64  `json:"connected_replicas"`
	Synced          bool   `json:"synced"`
	Error           string `json:"error,omitempty"`
}

// ShardHealth is one shard's entry in the health summary.
type ShardHealth struct {
	ShardID      int            `json:"shard_id"`
	ShardName    string         `json:"shard_name"`
	Status       HealthState    `json:"status"`
	Failures     int            `json:"consecutive_failures"`
	LastCheckAt  time.Time      `json:"last_check_at"`
	LastOKAt     time.Time      `json:"last_success_at"`
	Failover     FailoverRecord `json:"failover"`
	PrimaryAddr  string         `json:"primary_addr"`
	ReplicaAddr  string         `json:"replica_addr"`
	RolesSwapped bool           `json:"roles_swapped"`
}

// HealthSummary is the monitor's full observable state.
type HealthSummary struct {
	Shards  []ShardHealth     `json:"shards"`
	History []TransitionEvent `json:"history"`
}
