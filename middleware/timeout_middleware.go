package middleware

import (
	"context"
	"time"

	"github.com/juju/errors"

	"torrent-rpc/message"
)

// TimeOutMiddleware fails a call that takes longer than timeout. The
// handler sees the deadline through its context.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.RPCMessage, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case reply := <-done:
				return reply
			case <-ctx.Done():
				return message.LocalFailure(req, errors.Timeoutf("%s after %s", req.Method, timeout))
			}
		}
	}
}
