package service

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sayedulabrar/distributed-rediscache/internal/algorithm"
	"github.com/sayedulabrar/distributed-rediscache/internal/metrics"
	"github.com/sayedulabrar/distributed-rediscache/internal/model"
)

// fixture assembles a ring of fake endpoints for service tests.
type fixture struct {
	primaries []*fakeConn
	replicas  []*fakeConn
	bindings  []*model.ShardBinding
	ring      *algorithm.HashRing
	prom      *metrics.Metrics
	history   *model.History
	logger    *zap.Logger
}

func newFixture(t *testing.T, shards, vnodes int) *fixture {
	t.Helper()

	fx := &fixture{
		prom:    metrics.NewMetricsWith(prometheus.NewRegistry()),
		history: model.NewHistory(),
		logger:  zap.NewNop(),
	}
	for i := 0; i < shards; i++ {
		p := newFakeConn(fmt.Sprintf("10.0.0.%d:7000", i+1))
		r := newFakeConn(fmt.Sprintf("10.0.1.%d:7000", i+1))
		fx.primaries = append(fx.primaries, p)
		fx.replicas = append(fx.replicas, r)
		fx.bindings = append(fx.bindings, model.NewShardBinding(i, p, r))
	}
	fx.ring = algorithm.NewHashRing(fx.bindings, vnodes)
	return fx
}

// owner resolves the shard a key routes to, with its fake endpoints.
func (fx *fixture) owner(t *testing.T, key string) (*model.ShardBinding, *fakeConn, *fakeConn) {
	t.Helper()
	binding, _, err := fx.ring.Lookup(key)
	if err != nil {
		t.Fatalf("lookup %q: %v", key, err)
	}
	return binding, fx.primaries[binding.ID], fx.replicas[binding.ID]
}
