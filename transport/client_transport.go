// Package transport multiplexes daemon calls over a single connection.
//
// Every request gets its own sequence number. A single receive loop reads
// reply frames and hands each one to the caller waiting on that sequence:
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ one conn ──→ daemon
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop:  ←── reply(seq=2) → pending[2] → goroutine-2 wakes up
package transport

import (
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"torrent-rpc/codec"
	"torrent-rpc/message"
	"torrent-rpc/protocol"
)

// ErrClosed is returned by Send once the transport has shut down.
const ErrClosed = errors.ConstError("transport closed")

// DefaultHeartbeatInterval is used when NewClientTransport is given zero.
const DefaultHeartbeatInterval = 30 * time.Second

// ClientTransport owns one connection to a daemon.
type ClientTransport struct {
	conn    net.Conn
	codec   codec.CodecType
	seq     uint32     // guarded by sending
	pending sync.Map   // map[uint32]chan *message.RPCMessage
	sending sync.Mutex // one frame at a time on conn
	closed  atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// NewClientTransport starts the receive loop and, when heartbeat is
// positive, a heartbeat loop on conn.
func NewClientTransport(conn net.Conn, codecType codec.CodecType, heartbeat time.Duration) *ClientTransport {
	t := &ClientTransport{
		conn:  conn,
		codec: codecType,
		done:  make(chan struct{}),
	}
	if heartbeat == 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	go t.recvLoop()
	if heartbeat > 0 {
		go t.heartbeatLoop(heartbeat)
	}
	return t
}

// Send writes a request for method with args marshalled as its argument
// object. The returned channel receives exactly one reply; if the
// connection fails first, that reply is a local failure.
func (t *ClientTransport) Send(method string, args any) (uint32, <-chan *message.RPCMessage, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return 0, nil, errors.Annotatef(err, "marshalling %s arguments", method)
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	if t.closed.Load() {
		return 0, nil, ErrClosed
	}

	t.seq++
	seq := t.seq

	body, err := codec.GetCodec(t.codec).Encode(&message.RPCMessage{
		Method:    method,
		Arguments: payload,
		Tag:       seq,
	})
	if err != nil {
		return 0, nil, errors.Trace(err)
	}

	header := protocol.Header{
		CodecType: byte(t.codec),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
		BodyLen:   uint32(len(body)),
	}

	// Register before writing so the reply cannot beat us to the map.
	respChan := make(chan *message.RPCMessage, 1)
	t.pending.Store(seq, respChan)

	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, errors.Annotatef(err, "writing %s request", method)
	}

	return seq, respChan, nil
}

// Forget drops the pending entry for seq, for callers that stopped waiting.
func (t *ClientTransport) Forget(seq uint32) {
	t.pending.Delete(seq)
}

func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			if t.closed.Load() {
				err = ErrClosed
			} else {
				logrus.WithFields(logrus.Fields{
					"addr": t.conn.RemoteAddr().String(),
				}).Warnf("transport receive failed: %v", err)
			}
			t.shutdown(err)
			return
		}
		if header.MsgType != protocol.MsgTypeResponse {
			continue
		}

		reply := &message.RPCMessage{}
		cdc := codec.GetCodec(codec.CodecType(header.CodecType))
		if err := cdc.Decode(body, reply); err != nil {
			reply = message.LocalFailure(nil, errors.Annotate(err, "decoding reply"))
		}

		if channel, ok := t.pending.LoadAndDelete(header.Seq); ok {
			channel.(chan *message.RPCMessage) <- reply
		}
	}
}

// shutdown marks the transport closed and fails every pending call.
func (t *ClientTransport) shutdown(cause error) {
	t.once.Do(func() {
		t.sending.Lock()
		t.closed.Store(true)
		t.sending.Unlock()
		close(t.done)

		if cause == nil {
			cause = ErrClosed
		}
		t.pending.Range(func(key, _ any) bool {
			// recvLoop may be delivering concurrently; whoever deletes sends.
			if channel, ok := t.pending.LoadAndDelete(key); ok {
				channel.(chan *message.RPCMessage) <- message.LocalFailure(nil, cause)
			}
			return true
		})
	})
}

// Close shuts the connection and fails calls still waiting for replies.
func (t *ClientTransport) Close() error {
	// Closing conn first unblocks a writer stuck holding the send lock.
	t.closed.Store(true)
	err := t.conn.Close()
	t.shutdown(ErrClosed)
	return err
}

// Closed reports whether the transport can no longer send.
func (t *ClientTransport) Closed() bool {
	return t.closed.Load()
}

func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
		header := &protocol.Header{
			CodecType: byte(t.codec),
			MsgType:   protocol.MsgTypeHeartbeat,
		}
		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			logrus.WithField("addr", t.conn.RemoteAddr().String()).Debugf("heartbeat failed: %v", err)
			return
		}
	}
}
