package client

import (
	"context"
	"sync/atomic"

	"torrent-rpc/transport"
)

type dialFunc func(ctx context.Context, addr string) (*transport.ClientTransport, error)

// pool lends out at most size transports to one daemon. A slot holding nil
// or a closed transport is redialled when next borrowed.
type pool struct {
	addr   string
	slots  chan *transport.ClientTransport
	dial   dialFunc
	closed atomic.Bool
}

func newPool(addr string, size int, dial dialFunc) *pool {
	p := &pool{
		addr:  addr,
		slots: make(chan *transport.ClientTransport, size),
		dial:  dial,
	}
	for i := 0; i < size; i++ {
		p.slots <- nil
	}
	return p
}

func (p *pool) get(ctx context.Context) (*transport.ClientTransport, error) {
	var t *transport.ClientTransport
	select {
	case t = <-p.slots:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if t != nil && !t.Closed() {
		return t, nil
	}
	t, err := p.dial(ctx, p.addr)
	if err != nil {
		p.slots <- nil
		return nil, err
	}
	return t, nil
}

func (p *pool) put(t *transport.ClientTransport) {
	if p.closed.Load() && t != nil {
		t.Close()
	}
	p.slots <- t
}

// close shuts the idle transports now and borrowed ones as they return.
func (p *pool) close() {
	p.closed.Store(true)
	for {
		select {
		case t := <-p.slots:
			if t != nil {
				t.Close()
			}
		default:
			return
		}
	}
}
