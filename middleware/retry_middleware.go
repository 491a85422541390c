package middleware

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/sirupsen/logrus"

	"torrent-rpc/message"
)

// errDaemonRejected stops the retry loop: the daemon answered, so sending
// the same request again would get the same answer.
const errDaemonRejected = errors.ConstError("daemon rejected request")

// RetryMiddleware retries calls that failed locally, such as broken
// connections and timeouts, up to maxRetries more times, doubling the
// delay after each attempt. Replies from the daemon are never retried.
func RetryMiddleware(maxRetries int, baseDelay time.Duration, clk clock.Clock) Middleware {
	if clk == nil {
		clk = clock.WallClock
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = time.Millisecond
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			var reply *message.RPCMessage
			err := retry.Call(retry.CallArgs{
				Func: func() error {
					reply = next(ctx, req)
					switch {
					case !reply.Failed():
						return nil
					case reply.Local():
						return errors.New(reply.Result)
					}
					return errDaemonRejected
				},
				IsFatalError: func(err error) bool {
					return errors.Is(err, errDaemonRejected)
				},
				NotifyFunc: func(err error, attempt int) {
					logrus.WithFields(logrus.Fields{
						"method":  req.Method,
						"attempt": attempt,
					}).Infof("retrying after: %v", err)
				},
				Attempts:    maxRetries + 1,
				Delay:       baseDelay,
				BackoffFunc: retry.DoubleDelay,
				Clock:       clk,
				Stop:        ctx.Done(),
			})
			if reply == nil {
				return message.LocalFailure(req, err)
			}
			if err != nil && reply.Local() {
				logrus.WithField("method", req.Method).Debugf("giving up: %v", retry.LastError(err))
			}
			return reply
		}
	}
}
