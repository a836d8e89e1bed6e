package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sayedulabrar/distributed-rediscache/internal/algorithm"
	"github.com/sayedulabrar/distributed-rediscache/internal/client"
	coorderr "github.com/sayedulabrar/distributed-rediscache/internal/errors"
	"github.com/sayedulabrar/distributed-rediscache/internal/metrics"
	"github.com/sayedulabrar/distributed-rediscache/internal/model"
)

// retryAfterFailoverMs is the suggested client retry delay for writes
// rejected while a shard is mid-promotion.
const retryAfterFailoverMs = 5000

// syncWaitTimeout bounds the WAIT issued after a synchronous-mode write.
const syncWaitTimeout = time.Second

// CacheService implements the key/value operations, composed over the ring
// and the shard bindings.
type CacheService struct {
	ring        *algorithm.HashRing
	defaultMode model.ReplicationMode
	prom        *metrics.Metrics
	logger      *zap.Logger
}

// NewCacheService creates the cache operation layer.
func NewCacheService(ring *algorithm.HashRing, defaultMode model.ReplicationMode, prom *metrics.Metrics, logger *zap.Logger) *CacheService {
	return &CacheService{
		ring:        ring,
		defaultMode: defaultMode,
		prom:        prom,
		logger:      logger,
	}
}

// Set writes a key to its shard's primary. A ttl of zero means no expiry;
// mode "" uses the configured default. In sync mode the write is followed by
// a WAIT for one replica acknowledgement; a timeout is reported in the
// result, not as a failure.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, mode model.ReplicationMode) (*model.SetResult, error) {
	start := time.Now()
	defer func() {
		s.prom.RequestDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())
	}()

	binding, hash, err := s.ring.Lookup(key)
	if err != nil {
		return nil, err
	}
	s.prom.RequestsTotal.WithLabelValues("set", binding.Name).Inc()

	if binding.GateRaised() {
		s.prom.RequestErrors.WithLabelValues("set", string(coorderr.KindNodeInFailover)).Inc()
		return &model.SetResult{
			OK:           false,
			ShardID:      binding.ID,
			ShardName:    binding.Name,
			Hash:         hash,
			RetryAfterMs: retryAfterFailoverMs,
		}, coorderr.Newf(coorderr.KindNodeInFailover, "shard %d is failing over", binding.ID)
	}

	encoded, err := encodeValue(value)
	if err != nil {
		return nil, err
	}

	effective := mode
	if effective == "" {
		effective = s.defaultMode
	}

	ep := binding.WriteEndpoint()
	if ttl > 0 {
		err = ep.SetEx(ctx, key, ttl, encoded)
	} else {
		err = ep.Set(ctx, key, encoded)
	}
	if err != nil {
		s.prom.RequestErrors.WithLabelValues("set", string(coorderr.KindNodeUnavailable)).Inc()
		s.logger.Error("write failed",
			zap.Int("shard", binding.ID),
			zap.String("endpoint", ep.Addr()),
			zap.Error(err))
		return nil, coorderr.Wrap(coorderr.KindNodeUnavailable, "write to "+ep.Addr()+" failed", err)
	}

	target := model.TargetPrimary
	if binding.Promoted() {
		target = model.TargetPromotedReplica
	}

	result := &model.SetResult{
		OK:        true,
		ShardID:   binding.ID,
		ShardName: binding.Name,
		Hash:      hash,
		Target:    target,
	}

	if effective == model.ReplicationSync {
		result.Replication = s.awaitReplication(ctx, binding, ep)
	}

	result.LatencyMs = time.Since(start).Milliseconds()
	return result, nil
}

// awaitReplication issues WAIT 1 on the connection that served the write.
// WAIT runs after the SET on the same endpoint, so the acknowledgement
// covers the write just issued.
func (s *CacheService) awaitReplication(ctx context.Context, binding *model.ShardBinding, ep client.Conn) *model.ReplicationInfo {
	info := &model.ReplicationInfo{Mode: model.ReplicationSync, Status: "timeout"}

	n, err := ep.Wait(ctx, 1, syncWaitTimeout)
	if err != nil {
		s.prom.ReplicationTimeouts.Inc()
		s.logger.Warn("replication wait failed",
			zap.Int("shard", binding.ID),
			zap.Error(err))
		return info
	}

	info.Replicas = n
	if n >= 1 {
		info.Status = "confirmed"
	} else {
		s.prom.ReplicationTimeouts.Inc()
	}
	return info
}

// Get reads a key from its shard. The primary is tried first to keep
// read-your-writes; on a transport error the other endpoint is tried, giving
// up consistency for availability. A missing key is not an error.
func (s *CacheService) Get(ctx context.Context, key string) (*model.GetResult, error) {
	start := time.Now()
	defer func() {
		s.prom.RequestDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()

	binding, _, err := s.ring.Lookup(key)
	if err != nil {
		return nil, err
	}
	s.prom.RequestsTotal.WithLabelValues("get", binding.Name).Inc()

	result := &model.GetResult{ShardID: binding.ID, ShardName: binding.Name}

	primary := binding.ReadEndpoint()
	raw, err := primary.Get(ctx, key)
	if err == nil {
		result.OK = true
		result.Value = decodeValue(raw)
		result.Source = "primary"
		return result, nil
	}
	if coorderr.IsKind(err, coorderr.KindKeyNotFound) {
		result.Reason = string(coorderr.KindKeyNotFound)
		return result, nil
	}

	// Transport or protocol error: try the other endpoint.
	s.logger.Warn("primary read failed, trying replica",
		zap.Int("shard", binding.ID),
		zap.String("endpoint", primary.Addr()),
		zap.Error(err))

	replica := binding.ReplicaEndpoint()
	raw, rerr := replica.Get(ctx, key)
	if rerr == nil {
		result.OK = true
		result.Value = decodeValue(raw)
		result.Source = "replica"
		result.Failover = true
		result.Warning = "Primary unavailable, reading from replica"
		return result, nil
	}
	if coorderr.IsKind(rerr, coorderr.KindKeyNotFound) {
		result.Reason = string(coorderr.KindKeyNotFound)
		result.Source = "replica"
		result.Failover = true
		return result, nil
	}

	s.prom.RequestErrors.WithLabelValues("get", string(coorderr.KindNodeUnavailable)).Inc()
	return nil, coorderr.Wrap(coorderr.KindNodeUnavailable,
		"both endpoints of shard "+binding.Name+" failed", rerr)
}

// Delete removes a key from its shard's primary.
func (s *CacheService) Delete(ctx context.Context, key string) (*model.DeleteResult, error) {
	start := time.Now()
	defer func() {
		s.prom.RequestDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	}()

	binding, _, err := s.ring.Lookup(key)
	if err != nil {
		return nil, err
	}
	s.prom.RequestsTotal.WithLabelValues("delete", binding.Name).Inc()

	if binding.GateRaised() {
		s.prom.RequestErrors.WithLabelValues("delete", string(coorderr.KindNodeInFailover)).Inc()
		return nil, coorderr.Newf(coorderr.KindNodeInFailover, "shard %d is failing over", binding.ID)
	}

	ep := binding.WriteEndpoint()
	removed, err := ep.Del(ctx, key)
	if err != nil {
		s.prom.RequestErrors.WithLabelValues("delete", string(coorderr.KindNodeUnavailable)).Inc()
		return nil, coorderr.Wrap(coorderr.KindNodeUnavailable, "delete on "+ep.Addr()+" failed", err)
	}

	return &model.DeleteResult{
		OK:        removed == 1,
		ShardID:   binding.ID,
		ShardName: binding.Name,
	}, nil
}

// encodeValue serializes a value for storage: strings pass through, anything
// else is JSON-encoded.
func encodeValue(value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("value is not serializable: %w", err)
	}
	return string(data), nil
}

// decodeValue parses stored bytes as JSON when possible, otherwise returns
// the raw string.
func decodeValue(raw string) interface{} {
	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return parsed
	}
	return raw
}
