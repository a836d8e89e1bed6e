package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// HealthState is the monitor's view of one shard.
type HealthState string

const (
	HealthHealthy    HealthState = "HEALTHY"
	HealthDegraded   HealthState = "DEGRADED"
	HealthFailed     HealthState = "FAILED"
	HealthFailedOver HealthState = "FAILED_OVER"
)

// HealthRecord is the per-shard probe bookkeeping.
type HealthRecord struct {
	Status              HealthState `json:"status"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	LastCheckAt         time.Time   `json:"last_check_at"`
	LastSuccessAt       time.Time   `json:"last_success_at"`
}

// EventKind classifies health transition events.
type EventKind string

const (
	EventPrimaryFailed    EventKind = "PRIMARY_FAILED"
	EventPrimaryRecovered EventKind = "PRIMARY_RECOVERED"
	EventFailoverBegin    EventKind = "FAILOVER_BEGIN"
	EventFailoverSuccess  EventKind = "FAILOVER_SUCCESS"
	EventFailoverFailed   EventKind = "FAILOVER_FAILED"
)

// TransitionEvent is one entry in the health history.
type TransitionEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ShardID   int       `json:"shard_id"`
	Kind      EventKind `json:"kind"`
	Detail    string    `json:"detail"`
}

// historyCapacity bounds the health history buffer.
const historyCapacity = 100

// History is a bounded, thread-safe buffer of the most recent transition
// events. Oldest entries are dropped once capacity is reached.
type History struct {
	mu     sync.Mutex
	events []TransitionEvent
	start  int
	count  int
}

// NewHistory creates an empty history buffer.
func NewHistory() *History {
	return &History{events: make([]TransitionEvent, historyCapacity)}
}

// Record appends an event, evicting the oldest when full. The event id and
// timestamp are assigned here.
func (h *History) Record(shardID int, kind EventKind, detail string) TransitionEvent {
	ev := TransitionEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		ShardID:   shardID,
		Kind:      kind,
		Detail:    detail,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	idx := (h.start + h.count) % historyCapacity
	h.events[idx] = ev
	if h.count < historyCapacity {
		h.count++
	} else {
		h.start = (h.start + 1) % historyCapacity
	}
	return ev
}

// Events returns the buffered events oldest-first.
func (h *History) Events() []TransitionEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]TransitionEvent, 0, h.count)
	for i := 0; i < h.count; i++ {
		out = append(out, h.events[(h.start+i)%historyCapacity])
	}
	return out
}

// Len returns the number of buffered events.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
