package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

type senderState struct {
	count    int
	lastSeen time.Time
}

// RateLimiter bounds event submissions per principal. Watch events are
// authenticated, so the key is the JWT principal rather than the
// client address; the address is only a fallback for requests that
// reach the limiter unauthenticated.
type RateLimiter struct {
	mu      sync.Mutex
	senders map[string]*senderState
	limit   int
	window  time.Duration
}

// NewRateLimiter builds a limiter allowing limit requests per key per
// window. For the watch-event route the window should comfortably hold
// a full heartbeat cadence (one event per 10s) plus play/pause churn.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		senders: make(map[string]*senderState),
		limit:   limit,
		window:  window,
	}

	go func() {
		for {
			time.Sleep(window)
			rl.mu.Lock()
			for key, s := range rl.senders {
				if time.Since(s.lastSeen) > window {
					delete(rl.senders, key)
				}
			}
			rl.mu.Unlock()
		}
	}()

	return rl
}

func senderKey(r *http.Request) string {
	if id := GetUserID(r.Context()); id != uuid.Nil {
		return "principal:" + id.String()
	}
	return "addr:" + r.RemoteAddr
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(senderKey(r)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	s, exists := rl.senders[key]
	if !exists || time.Since(s.lastSeen) > rl.window {
		rl.senders[key] = &senderState{count: 1, lastSeen: time.Now()}
		return true
	}

	s.count++
	s.lastSeen = time.Now()
	return s.count <= rl.limit
}
