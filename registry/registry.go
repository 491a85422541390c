// Package registry tracks where daemons can be reached.
package registry

import (
	"github.com/google/uuid"
)

type ServiceInstance struct {
	ID      string `json:"id"`
	Addr    string `json:"addr"`
	Weight  int    `json:"weight"` // relative share for weighted balancing
	Version string `json:"version,omitempty"`
}

type Registry interface {
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	Watch(serviceName string) <-chan []ServiceInstance
}

// withDefaults fills in the ID and weight an instance registers with.
func withDefaults(instance ServiceInstance) ServiceInstance {
	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}
	if instance.Weight <= 0 {
		instance.Weight = 1
	}
	return instance
}
