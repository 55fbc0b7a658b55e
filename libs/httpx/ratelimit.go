package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter is an in-process fixed-window limiter keyed by caller.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	count int
	reset time.Time
}

func NewRateLimiter(limit int, every time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if every <= 0 {
		every = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  every,
		now:     time.Now,
		windows: map[string]*window{},
	}
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(CallerKey(r)) {
				writeRateLimited(w, rl.window)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allow records one hit for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	win := rl.windows[key]
	if win == nil || !now.Before(win.reset) {
		rl.windows[key] = &window{count: 1, reset: now.Add(rl.window)}
		return true
	}
	if win.count >= rl.limit {
		return false
	}
	win.count++
	return true
}

// sweep drops expired windows at most once per window length.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	for k, win := range rl.windows {
		if !now.Before(win.reset) {
			delete(rl.windows, k)
		}
	}
	rl.lastSweep = now
}

// CallerKey identifies the caller: the authenticated user when known,
// otherwise the client address.
func CallerKey(r *http.Request) string {
	if uid := strings.TrimSpace(r.Header.Get(UserIDHeader)); uid != "" {
		return "user:" + uid
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return "ip:" + strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

func writeRateLimited(w http.ResponseWriter, retry time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
	WriteError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
}
