package algorithm

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	coorderr "github.com/sayedulabrar/distributed-rediscache/internal/errors"
	"github.com/sayedulabrar/distributed-rediscache/internal/model"
)

const hashSpace = uint64(1) << 32

// HashRing places shards on a 32-bit consistent-hash ring with virtual
// nodes. The ring is immutable after construction: failover swaps role
// pointers inside the bindings, never ring positions, so the sorted position
// slice is read without synchronization on the hot path.
type HashRing struct {
	positions    []uint32       // sorted ascending
	owners       map[uint32]int // position -> shard id
	bindings     []*model.ShardBinding
	virtualNodes int
}

// HashKey maps a key onto the ring: the first 32 bits of its SHA-256 digest,
// big-endian.
func HashKey(key string) uint32 {
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint32(sum[:4])
}

// NewHashRing builds the ring over the given bindings with virtualNodes
// positions per shard. Position collisions are resolved by probing the next
// slot, so the ring always holds exactly len(bindings)*virtualNodes unique
// positions.
func NewHashRing(bindings []*model.ShardBinding, virtualNodes int) *HashRing {
	r := &HashRing{
		owners:       make(map[uint32]int, len(bindings)*virtualNodes),
		bindings:     bindings,
		virtualNodes: virtualNodes,
	}

	for _, b := range bindings {
		for j := 0; j < virtualNodes; j++ {
			pos := HashKey(fmt.Sprintf("%s:vnode%d", b.Name, j))
			for {
				if _, taken := r.owners[pos]; !taken {
					break
				}
				pos++ // wraps at 2^32 by uint32 arithmetic
			}
			r.owners[pos] = b.ID
			r.positions = append(r.positions, pos)
		}
	}

	sort.Slice(r.positions, func(i, j int) bool { return r.positions[i] < r.positions[j] })
	return r
}

// Lookup resolves a key to its owning shard binding and returns the key's
// ring position alongside.
func (r *HashRing) Lookup(key string) (*model.ShardBinding, uint32, error) {
	if len(r.positions) == 0 {
		return nil, 0, coorderr.New(coorderr.KindEmptyRing, "hash ring has no virtual nodes")
	}

	p := HashKey(key)
	idx := sort.Search(len(r.positions), func(i int) bool {
		return r.positions[i] >= p
	})
	if idx == len(r.positions) {
		idx = 0
	}

	return r.bindings[r.owners[r.positions[idx]]], p, nil
}

// Binding returns the binding for a shard ordinal.
func (r *HashRing) Binding(id int) (*model.ShardBinding, bool) {
	if id < 0 || id >= len(r.bindings) {
		return nil, false
	}
	return r.bindings[id], true
}

// Bindings returns all shard bindings in ordinal order.
func (r *HashRing) Bindings() []*model.ShardBinding {
	return r.bindings
}

// PositionCount returns the total number of virtual-node positions.
func (r *HashRing) PositionCount() int {
	return len(r.positions)
}

// Describe computes each shard's share of the hash space. The arc ending at
// a position belongs to that position's shard; the seam arc wraps from the
// last position to the first.
func (r *HashRing) Describe() *model.RingDescription {
	desc := &model.RingDescription{
		Shards:       len(r.bindings),
		VirtualNodes: r.virtualNodes,
		Positions:    len(r.positions),
	}
	if len(r.positions) == 0 {
		return desc
	}

	type acc struct {
		span   uint64
		vnodes int
		minArc uint64
		maxArc uint64
	}
	accs := make([]acc, len(r.bindings))
	for i := range accs {
		accs[i].minArc = hashSpace
	}

	record := func(owner int, arc uint64) {
		a := &accs[owner]
		a.span += arc
		a.vnodes++
		if arc < a.minArc {
			a.minArc = arc
		}
		if arc > a.maxArc {
			a.maxArc = arc
		}
	}

	for i, pos := range r.positions {
		var arc uint64
		if i == 0 {
			last := r.positions[len(r.positions)-1]
			arc = (hashSpace - uint64(last)) + uint64(pos)
		} else {
			arc = uint64(pos) - uint64(r.positions[i-1])
		}
		record(r.owners[pos], arc)
	}

	for id, b := range r.bindings {
		a := accs[id]
		desc.Arcs = append(desc.Arcs, model.RingArc{
			ShardID:    id,
			ShardName:  b.Name,
			VnodeCount: a.vnodes,
			Span:       a.span,
			Percent:    float64(a.span) / float64(hashSpace) * 100,
			MinArc:     a.minArc,
			MaxArc:     a.maxArc,
		})
	}
	return desc
}
