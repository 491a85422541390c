// Package loadbalance chooses which daemon serves a call.
//
// Three strategies are implemented:
//   - RoundRobin:      daemons of equal capacity
//   - WeightedRandom:  daemons of different capacity
//   - ConsistentHash:  calls about the same torrents go to the same daemon
package loadbalance

import (
	"strings"

	"github.com/juju/errors"

	"torrent-rpc/registry"
)

// ErrNoInstances is returned when there is nothing to pick from.
const ErrNoInstances = errors.ConstError("no daemon instances available")

// Balancer picks an instance for each call. key identifies the call's
// target, for strategies that keep affinity; others ignore it.
// Implementations must be safe for concurrent use.
type Balancer interface {
	Pick(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}

// New returns the balancer for a configured strategy name.
func New(name string) (Balancer, error) {
	switch strings.ToLower(name) {
	case "", "round-robin":
		return &RoundRobinBalancer{}, nil
	case "weighted-random":
		return &WeightedRandomBalancer{}, nil
	case "consistent-hash":
		return NewConsistentHashBalancer(), nil
	}
	return nil, errors.NotValidf("balancer %q", name)
}
