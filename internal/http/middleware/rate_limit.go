package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/AdriBarda/url-shortener/internal/http/response"
	"github.com/AdriBarda/url-shortener/internal/security"
)

// Limiter decides whether one more request is allowed for a key within the
// window. Implementations: an in-process fixed window and a Redis-backed one
// for multi-replica deployments.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

type RateLimiter struct {
	limiter Limiter
	limit   int
	window  time.Duration
	mode    FailureMode
	scope   string
	logger  *slog.Logger
	keyFunc func(r *http.Request) string
}

func NewRateLimiter(limiter Limiter, limit int, window time.Duration, mode FailureMode, scope string, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		limit:   limit,
		window:  window,
		mode:    mode,
		scope:   scope,
		logger:  logger,
		keyFunc: SessionOrIPKey,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.scope + ":" + rl.keyFunc(r)
		allowed, retryAfter, err := rl.limiter.Allow(r.Context(), key, rl.limit, rl.window)
		if err != nil {
			if rl.mode == FailOpen {
				rl.logger.Warn("rate limiter backend unavailable, allowing request",
					"scope", rl.scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retryAfterSeconds(rl.window))
			response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
			response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionOrIPKey buckets authenticated traffic per session and everything
// else per client IP.
func SessionOrIPKey(r *http.Request) string {
	if sid := security.GetCookie(r, security.SessionCookie); sid != "" {
		return "sid:" + sid
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

type fixedWindow struct {
	count       int
	windowStart time.Time
}

type localFixedWindowLimiter struct {
	mu      sync.Mutex
	store   map[string]*fixedWindow
	cleanup time.Time
}

// NewLocalFixedWindowLimiter is the in-process fallback for single-replica
// runs and tests.
func NewLocalFixedWindowLimiter() Limiter {
	return &localFixedWindowLimiter{
		store:   make(map[string]*fixedWindow),
		cleanup: time.Now().Add(time.Minute),
	}
}

func (l *localFixedWindowLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.cleanup) {
		for k, v := range l.store {
			if now.Sub(v.windowStart) > 2*window {
				delete(l.store, k)
			}
		}
		l.cleanup = now.Add(window)
	}

	entry, ok := l.store[key]
	if !ok || now.Sub(entry.windowStart) >= window {
		l.store[key] = &fixedWindow{count: 1, windowStart: now}
		return true, 0, nil
	}
	if entry.count >= limit {
		retryAfter := window - now.Sub(entry.windowStart)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}
	entry.count++
	return true, 0, nil
}
