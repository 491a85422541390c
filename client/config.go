package client

import (
	"io"

	"github.com/juju/errors"

	"torrent-rpc/config"
	"torrent-rpc/loadbalance"
	"torrent-rpc/middleware"
	"torrent-rpc/registry"
)

// NewFromConfig builds a client with discovery, balancing and the
// middleware chain described by cfg. Daemons come from etcd when endpoints
// are configured, otherwise from the static daemon list.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	cfg.ApplyLogLevel()

	bal, err := loadbalance.New(cfg.Balancer)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var reg registry.Registry
	var closers []io.Closer
	if len(cfg.EtcdEndpoints) > 0 {
		etcd, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, nil)
		if err != nil {
			return nil, errors.Trace(err)
		}
		reg = etcd
		closers = append(closers, etcd)
	} else {
		static, err := registry.NewStaticRegistryFor(cfg.Service, cfg.Daemons...)
		if err != nil {
			return nil, errors.Trace(err)
		}
		reg = static
	}

	// Retry wraps the timeout so every attempt gets the full timeout.
	mws := []middleware.Middleware{middleware.LoggingMiddleware()}
	if cfg.RateLimit.Rate > 0 {
		mws = append(mws, middleware.ThrottleMiddleware(cfg.RateLimit.Rate, cfg.RateLimit.Burst))
	}
	if cfg.Retry.Attempts > 0 {
		mws = append(mws, middleware.RetryMiddleware(cfg.Retry.Attempts, cfg.Retry.Delay, nil))
	}
	if cfg.Timeout > 0 {
		mws = append(mws, middleware.TimeOutMiddleware(cfg.Timeout))
	}

	c := New(reg, bal,
		WithService(cfg.Service),
		WithCodec(cfg.CodecType()),
		WithPoolSize(cfg.PoolSize),
		WithHeartbeat(cfg.HeartbeatInterval),
		WithMiddleware(mws...),
	)
	c.closers = closers
	return c, nil
}
