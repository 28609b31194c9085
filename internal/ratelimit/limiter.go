package ratelimit

import (
	"sync"
	"time"

	"github.com/halcyon-ai/sentry/internal/metrics"
)

const (
	DefaultMaxRequests = 100
	DefaultWindow      = 60 * time.Second
)

// Limiter is a per-client sliding window rate limiter. Each client id owns
// its own window with its own lock, so checks for different clients never
// serialize against each other.
type Limiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time
	recorder    metrics.Recorder

	windows sync.Map // map[string]*clientWindow
}

type clientWindow struct {
	mu    sync.Mutex
	times []time.Time
}

// New creates a limiter. Zero values fall back to the defaults.
func New(maxRequests int, window time.Duration, recorder metrics.Recorder) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		recorder:    recorder,
	}
}

// IsAllowed prunes timestamps older than the window, then either denies
// without recording (window full) or records the current time and allows.
// The window never holds stale timestamps after a check.
func (l *Limiter) IsAllowed(clientID string) bool {
	v, _ := l.windows.LoadOrStore(clientID, &clientWindow{})
	w := v.(*clientWindow)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	w.times = kept

	if len(w.times) >= l.maxRequests {
		l.recorder.RateLimited("quota_exceeded")
		return false
	}

	w.times = append(w.times, now)
	return true
}
