// Package ratelimit implements a Redis fixed-window limiter used to slow
// down credential guessing on the auth endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kis-labs/webbuilder/internal/platform/httpx"
)

const keyPrefix = "webbuilder:ratelimit:"

// Decision is the result of one hit.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts hits per key inside a fixed window.
type Limiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	logger *slog.Logger
}

// New builds a Limiter allowing limit hits per window.
func New(client redis.Cmdable, limit int, window time.Duration, logger *slog.Logger) (*Limiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("ratelimit: limit must be positive, got %d", limit)
	}
	if window < time.Second {
		return nil, fmt.Errorf("ratelimit: window must be at least 1s, got %s", window)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{client: client, limit: limit, window: window, logger: logger}, nil
}

// Allow records one hit for key.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := keyPrefix + key
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, l.window)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: hit %s: %w", key, err)
	}

	count := int(incr.Val())
	retry := ttl.Val()
	if retry <= 0 {
		retry = l.window
	}
	if count > l.limit {
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - count, RetryAfter: retry}, nil
}

// Middleware limits requests per client IP and route. Redis failures let the
// request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r) + ":" + r.URL.Path
		d, err := l.Allow(r.Context(), key)
		if err != nil {
			l.logger.Warn("rate limiter unavailable", slog.String("path", r.URL.Path), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			httpx.Error(w, http.StatusTooManyRequests, "Too many attempts, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
