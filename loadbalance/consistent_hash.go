package loadbalance

import (
	"fmt"
	"hash/crc32"
	"slices"
	"sort"
	"strings"
	"sync"

	"torrent-rpc/registry"
)

const defaultReplicas = 100

// ConsistentHashBalancer maps keys onto a hash ring of instances, so the
// same key keeps reaching the same daemon while the instance set is
// unchanged, and only a share of keys move when it changes.
//
// Each instance owns many virtual nodes, hashed from "{addr}#{i}", so that
// a few instances still spread evenly around the ring.
type ConsistentHashBalancer struct {
	replicas int

	mu      sync.Mutex
	members string // sorted addresses the ring was built from
	ring    []uint32
	nodes   map[uint32]string
}

func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{replicas: defaultReplicas}
}

// Pick hashes key onto the ring and returns the first instance clockwise
// from it. The ring is rebuilt whenever instances differ from the last call.
func (b *ConsistentHashBalancer) Pick(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	b.rebuild(instances)
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	addr := b.nodes[b.ring[idx]]
	b.mu.Unlock()

	for i := range instances {
		if instances[i].Addr == addr {
			return &instances[i], nil
		}
	}
	return nil, ErrNoInstances
}

// rebuild is called with mu held.
func (b *ConsistentHashBalancer) rebuild(instances []registry.ServiceInstance) {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	slices.Sort(addrs)
	addrs = slices.Compact(addrs)
	members := strings.Join(addrs, ",")
	if members == b.members && b.ring != nil {
		return
	}

	b.members = members
	b.ring = make([]uint32, 0, len(addrs)*b.replicas)
	b.nodes = make(map[uint32]string, len(addrs)*b.replicas)
	for _, addr := range addrs {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", addr, i)))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = addr
		}
	}
	slices.Sort(b.ring)
}

func (b *ConsistentHashBalancer) Name() string {
	return "consistent-hash"
}
