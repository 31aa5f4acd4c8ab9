package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/ringring/ringring-server/pkg/logger"
)

// RateLimiter is a Redis-backed fixed-window limiter keyed on client IP and
// path. Redis errors fail open: abuse protection must not take the API down.
type RateLimiter struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

func NewRateLimiter(addr, password string, db int) (*RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RateLimiter{
		client:  client,
		prefix:  "ringring:ratelimit:",
		timeout: 250 * time.Millisecond,
	}, nil
}

func (rl *RateLimiter) Close() {
	if rl != nil && rl.client != nil {
		_ = rl.client.Close()
	}
}

// Limit caps each client to requests per window on the wrapped routes.
// A nil limiter disables limiting.
func (rl *RateLimiter) Limit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl == nil || requests <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := getClientIP(r) + ":" + r.URL.Path
			if !rl.allow(key, requests, window) {
				logger.WarnContext(r.Context(), "Rate limit exceeded", "key", key)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Too many requests. Please try again later.","code":"RATE_LIMIT_EXCEEDED"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string, limit int, window time.Duration) bool {
	if window <= 0 {
		window = time.Minute
	}

	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		logger.Error("Rate limiter redis error", "op", "incr", "error", err)
		return true
	}
	if counter == 1 {
		if err := rl.client.Expire(ctx, redisKey, window).Err(); err != nil {
			logger.Error("Rate limiter redis error", "op", "expire", "error", err)
		}
	}

	return int(counter) <= limit
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
