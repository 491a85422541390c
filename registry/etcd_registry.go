package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// KeyPrefix roots every daemon entry: /torrent-rpc/{service}/{addr}.
const KeyPrefix = "/torrent-rpc/"

const defaultDialTimeout = 5 * time.Second

// EtcdRegistry keeps daemon entries in etcd under TTL leases, so a daemon
// that dies without deregistering disappears when its lease expires.
type EtcdRegistry struct {
	client *clientv3.Client
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEtcdRegistry connects to etcd. A nil logger silences the etcd client.
func NewEtcdRegistry(endpoints []string, logger *zap.Logger) (*EtcdRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: defaultDialTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to etcd at %v", endpoints)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdRegistry{client: c, ctx: ctx, cancel: cancel}, nil
}

func serviceKey(serviceName string) string {
	return KeyPrefix + serviceName + "/"
}

// Register puts the instance under a lease of ttl seconds and keeps the
// lease alive until Deregister or Close.
func (r *EtcdRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	instance = withDefaults(instance)

	// The lease ID stays local: one registry may register many daemons.
	lease, err := r.client.Grant(r.ctx, ttl)
	if err != nil {
		return errors.Annotate(err, "granting lease")
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return errors.Trace(err)
	}

	_, err = r.client.Put(r.ctx, serviceKey(serviceName)+instance.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return errors.Annotatef(err, "registering %s", instance.Addr)
	}

	ch, err := r.client.KeepAlive(r.ctx, lease.ID)
	if err != nil {
		return errors.Annotate(err, "keeping lease alive")
	}

	// Drain KeepAlive responses so the channel never fills up.
	go func() {
		for range ch {
		}
		logrus.WithFields(logrus.Fields{
			"service": serviceName,
			"addr":    instance.Addr,
		}).Debug("etcd lease keepalive stopped")
	}()
	return nil
}

func (r *EtcdRegistry) Deregister(serviceName string, addr string) error {
	_, err := r.client.Delete(r.ctx, serviceKey(serviceName)+addr)
	return errors.Annotatef(err, "deregistering %s", addr)
}

// Watch emits the full instance list after every change under the
// service prefix, until Close.
func (r *EtcdRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(r.ctx, serviceKey(serviceName), clientv3.WithPrefix())
		for range watchChan {
			// Re-read the whole list rather than applying individual events.
			instances, err := r.Discover(serviceName)
			if err != nil {
				logrus.WithField("service", serviceName).Warnf("rediscovery failed: %v", err)
				continue
			}
			select {
			case ch <- instances:
			case <-r.ctx.Done():
				return
			}
		}
	}()

	return ch
}

func (r *EtcdRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(r.ctx, serviceKey(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Annotatef(err, "discovering %s", serviceName)
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			logrus.WithField("key", string(kv.Key)).Warnf("skipping malformed instance: %v", err)
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Close stops lease renewal and watches and disconnects from etcd.
func (r *EtcdRegistry) Close() error {
	r.cancel()
	return r.client.Close()
}
