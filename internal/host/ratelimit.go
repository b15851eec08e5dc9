package host

import (
	"sync"
	"time"
)

// Default connection limiter settings: a client key may open at most
// defaultRateLimit connections per defaultRateWindow.
const (
	defaultRateLimit  = 10
	defaultRateWindow = time.Minute
)

// connLimiter is a keyed sliding-window limiter over connection attempts.
type connLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
}

func newConnLimiter(limit int, window time.Duration) *connLimiter {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if window <= 0 {
		window = defaultRateWindow
	}
	return &connLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow reports whether a connection attempt by key at time "now" should be
// permitted, and records it if so.
func (l *connLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cut := now.Add(-l.window)
	dst := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}

	if len(dst) >= l.limit {
		l.events[key] = dst
		return false
	}
	l.events[key] = append(dst, now)
	return true
}
