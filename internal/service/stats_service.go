package service

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sayedulabrar/distributed-rediscache/internal/algorithm"
	"github.com/sayedulabrar/distributed-rediscache/internal/model"
)

// StatsService aggregates keyspace, hit-rate and replication-lag numbers by
// parsing each endpoint's INFO output. Read-only and non-critical: a shard
// that fails to respond contributes an error entry, never a failed aggregate.
type StatsService struct {
	ring   *algorithm.HashRing
	logger *zap.Logger
}

// NewStatsService creates the stats aggregator.
func NewStatsService(ring *algorithm.HashRing, logger *zap.Logger) *StatsService {
	return &StatsService{ring: ring, logger: logger}
}

// AllStats collects keyspace and hit-rate numbers from every primary.
func (s *StatsService) AllStats(ctx context.Context) *model.ClusterStats {
	bindings := s.ring.Bindings()
	shards := make([]model.ShardStats, len(bindings))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bindings {
		i, b := i, b
		g.Go(func() error {
			shards[i] = s.shardStats(gctx, b)
			return nil
		})
	}
	_ = g.Wait() // collectors never return errors

	stats := &model.ClusterStats{Shards: shards}
	var hits, misses int64
	for _, sh := range shards {
		stats.TotalKeys += sh.Keys
		hits += sh.Hits
		misses += sh.Misses
	}
	if hits+misses > 0 {
		stats.OverallHitRate = float64(hits) / float64(hits+misses)
	}
	return stats
}

func (s *StatsService) shardStats(ctx context.Context, b *model.ShardBinding) model.ShardStats {
	out := model.ShardStats{ShardID: b.ID, ShardName: b.Name}
	ep := b.WriteEndpoint()

	keyspace, err := ep.Info(ctx, "keyspace")
	if err != nil {
		s.logger.Warn("keyspace stats unavailable",
			zap.Int("shard", b.ID), zap.Error(err))
		out.Error = err.Error()
		return out
	}
	out.Keys = keyspaceKeys(keyspace)

	statsInfo, err := ep.Info(ctx, "stats")
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Hits = infoInt(statsInfo, "keyspace_hits")
	out.Misses = infoInt(statsInfo, "keyspace_misses")
	if out.Hits+out.Misses > 0 {
		out.HitRate = float64(out.Hits) / float64(out.Hits+out.Misses)
	}
	return out
}

// ReplicationLag reports each shard's replication backlog, computed from the
// master_repl_offset of both endpoints. A shard is synced iff the lag is 0.
func (s *StatsService) ReplicationLag(ctx context.Context) []model.ShardLag {
	bindings := s.ring.Bindings()
	lags := make([]model.ShardLag, len(bindings))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bindings {
		i, b := i, b
		g.Go(func() error {
			lags[i] = s.shardLag(gctx, b)
			return nil
		})
	}
	_ = g.Wait() // collectors never return errors

	return lags
}

func (s *StatsService) shardLag(ctx context.Context, b *model.ShardBinding) model.ShardLag {
	out := model.ShardLag{ShardID: b.ID, ShardName: b.Name}

	primaryInfo, err := b.WriteEndpoint().Info(ctx, "replication")
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.PrimaryOffset = infoInt(primaryInfo, "master_repl_offset")
	out.ConnectedSlaves = infoInt(primaryInfo, "connected_slaves")

	replicaInfo, err := b.ReplicaEndpoint().Info(ctx, "replication")
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.ReplicaOffset = infoInt(replicaInfo, "master_repl_offset")

	if lag := out.PrimaryOffset - out.ReplicaOffset; lag > 0 {
		out.LagBytes = lag
	}
	out.Synced = out.LagBytes == 0
	return out
}

// infoField extracts the value of one "key:value" line from INFO output.
// Unrecognized lines are ignored.
func infoField(info, key string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, found := strings.Cut(line, ":")
		if found && k == key {
			return v, true
		}
	}
	return "", false
}

// infoInt extracts an integer "key:value" field, defaulting to 0.
func infoInt(info, key string) int64 {
	v, ok := infoField(info, key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// keyspaceKeys parses "db0:keys=<n>,expires=...,avg_ttl=..." from the
// keyspace section. An empty keyspace has no db0 line; that reads as 0.
func keyspaceKeys(info string) int64 {
	v, ok := infoField(info, "db0")
	if !ok {
		return 0
	}
	for _, field := range strings.Split(v, ",") {
		name, num, found := strings.Cut(field, "=")
		if found && name == "keys" {
			n, err := strconv.ParseInt(num, 10, 64)
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}
