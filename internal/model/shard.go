package model

import (
	"fmt"
	"sync"

	"github.com/sayedulabrar/distributed-rediscache/internal/client"
)

// Role identifies which side of a shard an endpoint is currently playing.
type Role string

const (
	RolePrimary Role = "primary"
	RoleReplica Role = "replica"
)

// ShardBinding is the per-shard handle holding the two endpoints and the
// current role assignment. The endpoint pair is fixed at creation; only the
// role pointers swap during failover. Callers must never cache the returned
// endpoint across blocking calls.
type ShardBinding struct {
	ID   int
	Name string

	mu      sync.RWMutex
	primary client.Conn
	replica client.Conn

	// originalPrimary is the endpoint configured as primary at startup.
	// It never changes, so recovery detection can address the failed
	// endpoint after the role pointers have swapped.
	originalPrimary client.Conn

	gateMu sync.RWMutex
	gate   bool
}

// ShardName formats the stable name for a shard ordinal.
func ShardName(id int) string {
	return fmt.Sprintf("cache_node_%d", id)
}

// NewShardBinding creates a binding for shard id over a primary/replica pair.
func NewShardBinding(id int, primary, replica client.Conn) *ShardBinding {
	return &ShardBinding{
		ID:              id,
		Name:            ShardName(id),
		primary:         primary,
		replica:         replica,
		originalPrimary: primary,
	}
}

// WriteEndpoint returns the endpoint currently acting as primary.
func (b *ShardBinding) WriteEndpoint() client.Conn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.primary
}

// ReadEndpoint returns the endpoint reads should try first. Same as the
// write endpoint: reading from the primary preserves read-your-writes under
// asynchronous replication.
func (b *ShardBinding) ReadEndpoint() client.Conn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.primary
}

// ReplicaEndpoint returns the endpoint currently occupying the replica slot.
func (b *ShardBinding) ReplicaEndpoint() client.Conn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.replica
}

// Endpoints returns the current primary and replica under one lock
// acquisition, so the pair is a consistent snapshot.
func (b *ShardBinding) Endpoints() (primary, replica client.Conn) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.primary, b.replica
}

// OriginalPrimary returns the endpoint that was primary at construction,
// regardless of any swaps since.
func (b *ShardBinding) OriginalPrimary() client.Conn {
	return b.originalPrimary
}

// Promoted reports whether the roles have been swapped away from the
// original assignment.
func (b *ShardBinding) Promoted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.primary != b.originalPrimary
}

// SwapRoles atomically exchanges the primary and replica pointers. Only the
// failover manager calls this, with the failover gate raised.
func (b *ShardBinding) SwapRoles() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.primary, b.replica = b.replica, b.primary
}

// RaiseGate marks the shard as mid-failover. Writes observing the gate fail
// fast with a retryable error.
func (b *ShardBinding) RaiseGate() {
	b.gateMu.Lock()
	defer b.gateMu.Unlock()
	b.gate = true
}

// LowerGate clears the failover gate.
func (b *ShardBinding) LowerGate() {
	b.gateMu.Lock()
	defer b.gateMu.Unlock()
	b.gate = false
}

// GateRaised reports whether a failover is in progress on this shard.
func (b *ShardBinding) GateRaised() bool {
	b.gateMu.RLock()
	defer b.gateMu.RUnlock()
	return b.gate
}

// Close closes both endpoint connections.
func (b *ShardBinding) Close() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	err := b.primary.Close()
	if rerr := b.replica.Close(); err == nil {
		err = rerr
	}
	return err
}
