package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medibrief/medibrief/internal/platform/httperr"
)

// RateLimitConfig holds fixed-window rate limit settings for one tier.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultRateLimitTiers returns the three limiter tiers: a global ceiling,
// a tight budget for credential endpoints, and a tighter one for AI calls.
func DefaultRateLimitTiers() (global, auth, ai RateLimitConfig) {
	global = RateLimitConfig{MaxRequests: 120, Window: time.Minute}
	auth = RateLimitConfig{MaxRequests: 10, Window: time.Minute}
	ai = RateLimitConfig{MaxRequests: 5, Window: time.Minute}
	return
}

// window tracks request counts for one key within the current fixed window.
type window struct {
	count   int
	resetAt time.Time
}

type limiterStore struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     RateLimitConfig
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	return &limiterStore{windows: make(map[string]*window), cfg: cfg}
}

// allow records one request for key and reports whether it fits in the
// current window, along with the window reset time.
func (s *limiterStore) allow(key string, now time.Time) (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(s.cfg.Window)}
		s.windows[key] = w
	}

	// Opportunistic sweep keeps the map from growing without bound.
	if len(s.windows) > 10000 {
		for k, win := range s.windows {
			if now.After(win.resetAt) {
				delete(s.windows, k)
			}
		}
	}

	if w.count >= s.cfg.MaxRequests {
		return false, w.resetAt
	}
	w.count++
	return true, w.resetAt
}

// RateLimit returns middleware enforcing a fixed-window request budget
// keyed by source address. Rejections carry Retry-After and
// X-RateLimit-Reset headers.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			ok, resetAt := store.allow(c.RealIP(), now)
			if !ok {
				retryAfter := int(time.Until(resetAt).Seconds()) + 1
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
				return httperr.New(httperr.KindRateLimited, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
