package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"torrent-rpc/message"
)

func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			start := time.Now()
			reply := next(ctx, req)
			entry := logrus.WithFields(logrus.Fields{
				"method":   req.Method,
				"duration": time.Since(start),
			})
			if reply.Failed() {
				entry.WithField("local", reply.Local()).Warnf("call failed: %s", reply.Result)
			} else {
				entry.Debug("call succeeded")
			}
			return reply
		}
	}
}
