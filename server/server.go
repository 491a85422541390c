// Package server runs a daemon endpoint: it accepts framed requests,
// dispatches them by method name through a middleware chain, and writes
// the replies back on the same connection.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → Codec.Decode → Middleware Chain → method handler → Codec.Encode → write reply
package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"torrent-rpc/codec"
	"torrent-rpc/message"
	"torrent-rpc/middleware"
	"torrent-rpc/protocol"
	"torrent-rpc/registry"
)

// DefaultServiceName is the name daemons advertise in the registry.
const DefaultServiceName = "torrent-daemon"

// registrationTTL is the lease, in seconds, a daemon holds in the registry.
const registrationTTL = 10

type Server struct {
	svc           *service
	listener      net.Listener
	wg            sync.WaitGroup // in-flight requests
	mu            sync.Mutex     // guards conns and admission to wg
	conns         map[net.Conn]struct{}
	shutdown      atomic.Bool
	middlewares   []middleware.Middleware
	handler       middleware.HandlerFunc
	registry      registry.Registry
	advertiseAddr string
	ready         chan struct{}
}

func NewServer() *Server {
	return NewNamedServer(DefaultServiceName)
}

// NewNamedServer creates a server advertised under name.
func NewNamedServer(name string) *Server {
	return &Server{
		svc:   newService(name),
		conns: make(map[net.Conn]struct{}),
		ready: make(chan struct{}),
	}
}

// Handle registers h for method. Registering a method twice is an error.
func (svr *Server) Handle(method string, h Handler) error {
	return errors.Trace(svr.svc.register(method, h))
}

// Methods lists the registered method names.
func (svr *Server) Methods() []string {
	return svr.svc.methods()
}

func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Serve listens on address and serves until Shutdown.
//
// advertiseAddr is what gets registered when reg is not nil; it differs
// from address when listening on a wildcard like ":9091".
func (svr *Server) Serve(network, address string, advertiseAddr string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return errors.Trace(err)
	}
	return svr.ServeListener(listener, advertiseAddr, reg)
}

// ServeListener serves on an existing listener until Shutdown.
func (svr *Server) ServeListener(listener net.Listener, advertiseAddr string, reg registry.Registry) error {
	svr.listener = listener
	svr.handler = middleware.Chain(svr.middlewares...)(svr.dispatch)

	if advertiseAddr == "" {
		advertiseAddr = listener.Addr().String()
	}
	svr.advertiseAddr = advertiseAddr
	if reg != nil {
		svr.registry = reg
		if err := reg.Register(svr.svc.name, registry.ServiceInstance{Addr: advertiseAddr}, registrationTTL); err != nil {
			listener.Close()
			return errors.Annotatef(err, "registering %s at %s", svr.svc.name, advertiseAddr)
		}
	}
	close(svr.ready)

	logrus.WithFields(logrus.Fields{
		"service": svr.svc.name,
		"addr":    advertiseAddr,
	}).Info("daemon listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if svr.shutdown.Load() {
				return nil
			}
			return errors.Trace(err)
		}
		go svr.handleConn(conn)
	}
}

// Ready is closed once the server accepts connections.
func (svr *Server) Ready() <-chan struct{} {
	return svr.ready
}

// Addr returns the advertised address. It is valid once Ready is closed.
func (svr *Server) Addr() string {
	return svr.advertiseAddr
}

// handleConn reads frames sequentially and serves each request in its own
// goroutine; writeMu keeps their replies from interleaving.
func (svr *Server) handleConn(conn net.Conn) {
	if !svr.track(conn) {
		conn.Close()
		return
	}
	defer svr.untrack(conn)
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			return
		}
		if header.MsgType != protocol.MsgTypeRequest {
			continue
		}
		// Frames after shutdown are dropped; the connection stays open until
		// in-flight replies on it are written.
		if !svr.admit() {
			continue
		}
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

func (svr *Server) track(conn net.Conn) bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.conns[conn] = struct{}{}
	return true
}

func (svr *Server) untrack(conn net.Conn) {
	svr.mu.Lock()
	delete(svr.conns, conn)
	svr.mu.Unlock()
	conn.Close()
}

// admit counts a request as in flight unless shutdown has begun.
func (svr *Server) admit() bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.wg.Add(1)
	return true
}

func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer svr.wg.Done()

	c := codec.GetCodec(codec.CodecType(header.CodecType))
	var reply *message.RPCMessage
	req := &message.RPCMessage{}
	if err := c.Decode(body, req); err != nil {
		reply = message.Failure(nil, "invalid request: "+err.Error())
	} else {
		reply = svr.handler(context.Background(), req)
	}

	result, err := c.Encode(reply)
	if err != nil {
		logrus.WithField("method", req.Method).Errorf("failed to encode reply: %v", err)
		return
	}

	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq,
		BodyLen:   uint32(len(result)),
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.Encode(conn, &replyHeader, result); err != nil {
		logrus.WithFields(logrus.Fields{
			"method": req.Method,
			"seq":    header.Seq,
		}).Warnf("failed to write reply: %v", err)
	}
}

// Shutdown deregisters the daemon, stops accepting connections and
// requests, waits up to timeout for in-flight requests and then closes
// every open connection.
func (svr *Server) Shutdown(timeout time.Duration) error {
	if svr.registry != nil {
		if err := svr.registry.Deregister(svr.svc.name, svr.advertiseAddr); err != nil {
			logrus.WithField("service", svr.svc.name).Warnf("deregister failed: %v", err)
		}
	}

	// Set the flag first so Serve sees the Accept error as intentional.
	svr.mu.Lock()
	svr.shutdown.Store(true)
	svr.mu.Unlock()
	if svr.listener != nil {
		svr.listener.Close()
	}
	defer svr.closeConns()

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.Timeoutf("waiting for in-flight requests")
	}
}

func (svr *Server) closeConns() {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	for conn := range svr.conns {
		conn.Close()
		delete(svr.conns, conn)
	}
}

// dispatch is the innermost handler of the middleware chain.
func (svr *Server) dispatch(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	args, err := svr.svc.call(ctx, req.Method, req.Arguments)
	if err != nil {
		return message.Failure(req, err.Error())
	}
	return message.Success(req, args)
}
