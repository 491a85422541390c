package registry

import (
	"slices"
	"sync"

	"github.com/juju/errors"
)

// StaticRegistry keeps instances in memory. It serves clients configured
// with a fixed daemon list and tests that run without etcd.
type StaticRegistry struct {
	mu       sync.Mutex
	services map[string][]ServiceInstance
	watchers map[string][]chan []ServiceInstance
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		services: make(map[string][]ServiceInstance),
		watchers: make(map[string][]chan []ServiceInstance),
	}
}

// NewStaticRegistryFor registers each address under serviceName.
func NewStaticRegistryFor(serviceName string, addrs ...string) (*StaticRegistry, error) {
	r := NewStaticRegistry()
	for _, addr := range addrs {
		if err := r.Register(serviceName, ServiceInstance{Addr: addr}, 0); err != nil {
			return nil, errors.Annotatef(err, "daemon %q", addr)
		}
	}
	return r, nil
}

// Register adds or replaces the instance at instance.Addr. ttl is ignored.
func (r *StaticRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	if instance.Addr == "" {
		return errors.NotValidf("instance without address")
	}
	instance = withDefaults(instance)

	r.mu.Lock()
	defer r.mu.Unlock()
	instances := slices.DeleteFunc(slices.Clone(r.services[serviceName]), func(i ServiceInstance) bool {
		return i.Addr == instance.Addr
	})
	r.services[serviceName] = append(instances, instance)
	r.notify(serviceName)
	return nil
}

func (r *StaticRegistry) Deregister(serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[serviceName] = slices.DeleteFunc(slices.Clone(r.services[serviceName]), func(i ServiceInstance) bool {
		return i.Addr == addr
	})
	r.notify(serviceName)
	return nil
}

func (r *StaticRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.services[serviceName]), nil
}

// Watch emits the current instance list, then the list after every change.
// A watcher that falls behind only sees the latest list.
func (r *StaticRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers[serviceName] = append(r.watchers[serviceName], ch)
	ch <- slices.Clone(r.services[serviceName])
	return ch
}

// notify is called with mu held.
func (r *StaticRegistry) notify(serviceName string) {
	for _, ch := range r.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		ch <- slices.Clone(r.services[serviceName])
	}
}
