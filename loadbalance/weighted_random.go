package loadbalance

import (
	"math/rand/v2"

	"torrent-rpc/registry"
)

// WeightedRandomBalancer picks instances with probability proportional to
// their weight. Instances with no positive weight count as weight 1.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(_ string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	totalWeight := 0
	for _, v := range instances {
		totalWeight += weight(v)
	}

	r := rand.IntN(totalWeight)
	for i := range instances {
		r -= weight(instances[i])
		if r < 0 {
			return &instances[i], nil
		}
	}
	return &instances[len(instances)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "weighted-random"
}

func weight(instance registry.ServiceInstance) int {
	if instance.Weight <= 0 {
		return 1
	}
	return instance.Weight
}
