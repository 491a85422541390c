package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"torrent-rpc/message"
)

// RateLimitMiddleware rejects requests beyond r per second with bursts of
// burst. Daemons use it to shed load.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			if !limiter.Allow() {
				return message.Failure(req, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}

// ThrottleMiddleware delays requests to at most r per second with bursts
// of burst. Clients use it so they never trip a daemon's rate limit.
func ThrottleMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			if err := limiter.Wait(ctx); err != nil {
				return message.LocalFailure(req, err)
			}
			return next(ctx, req)
		}
	}
}
