// Package client sends typed requests to torrent daemons.
//
//	c, err := client.NewFromConfig(cfg)
//	...
//	req := request.NewTorrentSet().IDs(1, 2).SetDownloadLimit(5000)
//	if _, err := client.Do(ctx, c, req); err != nil {
//		...
//	}
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"torrent-rpc/codec"
	"torrent-rpc/loadbalance"
	"torrent-rpc/message"
	"torrent-rpc/middleware"
	"torrent-rpc/registry"
	"torrent-rpc/request"
	"torrent-rpc/transport"
)

// DaemonError reports a request the daemon received and refused.
type DaemonError struct {
	Method string
	Result string
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("%s: daemon replied %q", e.Method, e.Result)
}

type Client struct {
	service     string
	registry    registry.Registry // where daemons are found
	balancer    loadbalance.Balancer
	pools       map[string]*pool // one per daemon address
	codecType   codec.CodecType
	mu          sync.Mutex
	poolSize    int
	heartbeat   time.Duration
	dialTimeout time.Duration
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
	closers     []io.Closer
	closed      bool
}

type Option func(*Client)

// WithService sets the registry name daemons are discovered under.
func WithService(name string) Option {
	return func(c *Client) { c.service = name }
}

func WithCodec(t codec.CodecType) Option {
	return func(c *Client) { c.codecType = t }
}

// WithPoolSize sets how many connections are kept per daemon.
func WithPoolSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithHeartbeat sets the keepalive interval; negative disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Client) { c.heartbeat = d }
}

// WithMiddleware wraps every call; the first middleware runs outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) { c.middlewares = append(c.middlewares, mws...) }
}

func New(reg registry.Registry, bal loadbalance.Balancer, opts ...Option) *Client {
	c := &Client{
		service:     "torrent-daemon",
		registry:    reg,
		balancer:    bal,
		pools:       make(map[string]*pool),
		codecType:   codec.CodecTypeJSON,
		poolSize:    1,
		dialTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.handler = middleware.Chain(c.middlewares...)(c.invoke)
	return c
}

// Do sends req and decodes the daemon's reply into its paired response.
func Do[R any](ctx context.Context, c *Client, req request.Request[R]) (*R, error) {
	resp := req.NewResponse()
	if err := c.Call(ctx, req.MethodName(), req.Arguments(), resp); err != nil {
		return nil, errors.Trace(err)
	}
	return resp, nil
}

// Call sends method with args and decodes the reply arguments into reply,
// which may be nil. Requests built with the request package are sent as
// their argument objects.
func (c *Client) Call(ctx context.Context, method string, args any, reply any) error {
	if am, ok := args.(request.ArgumentsMarshaler); ok {
		args = am.Arguments()
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return errors.Annotatef(err, "marshalling %s arguments", method)
	}

	ctx = context.WithValue(ctx, pickKey{}, balanceKey(method, args))
	resp := c.handler(ctx, &message.RPCMessage{Method: method, Arguments: payload})

	if resp.Failed() {
		if resp.Local() {
			return errors.Errorf("%s: %s", method, resp.Result)
		}
		return &DaemonError{Method: method, Result: resp.Result}
	}
	if reply == nil || len(resp.Arguments) == 0 {
		return nil
	}
	return errors.Annotatef(json.Unmarshal(resp.Arguments, reply), "decoding %s reply", method)
}

type pickKey struct{}

// balanceKey keeps calls about the same first torrent on the same daemon
// under consistent hashing.
func balanceKey(method string, args any) string {
	if a, ok := args.(request.Arguments); ok {
		if ids := a.IDs(); len(ids) > 0 {
			return method + "/" + strconv.FormatUint(ids[0], 10)
		}
	}
	return method
}

// invoke is the innermost handler: it picks a daemon, sends the request on
// a pooled transport and waits for the reply.
func (c *Client) invoke(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	instances, err := c.registry.Discover(c.service)
	if err != nil {
		return message.LocalFailure(req, errors.Annotatef(err, "discovering %s", c.service))
	}
	key, _ := ctx.Value(pickKey{}).(string)
	instance, err := c.balancer.Pick(key, instances)
	if err != nil {
		return message.LocalFailure(req, err)
	}

	p, err := c.pool(instance.Addr)
	if err != nil {
		return message.LocalFailure(req, err)
	}
	t, err := p.get(ctx)
	if err != nil {
		return message.LocalFailure(req, err)
	}
	defer p.put(t)

	seq, ch, err := t.Send(req.Method, req.Arguments)
	if err != nil {
		t.Close()
		return message.LocalFailure(req, err)
	}

	select {
	case resp := <-ch:
		return resp
	case <-ctx.Done():
		t.Forget(seq)
		return message.LocalFailure(req, ctx.Err())
	}
}

func (c *Client) pool(addr string) (*pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, transport.ErrClosed
	}
	p, ok := c.pools[addr]
	if !ok {
		logrus.WithFields(logrus.Fields{
			"addr": addr,
			"size": c.poolSize,
		}).Debug("creating transport pool")
		p = newPool(addr, c.poolSize, c.dial)
		c.pools[addr] = p
	}
	return p, nil
}

func (c *Client) dial(ctx context.Context, addr string) (*transport.ClientTransport, error) {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Annotatef(err, "dialing %s", addr)
	}
	return transport.NewClientTransport(conn, c.codecType, c.heartbeat), nil
}

// Close closes every pooled connection and anything the client created
// for itself, such as an etcd registry.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pools := c.pools
	c.pools = nil
	c.mu.Unlock()

	for _, p := range pools {
		p.close()
	}
	var firstErr error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return errors.Trace(firstErr)
}
