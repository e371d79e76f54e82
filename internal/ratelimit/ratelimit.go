// Package ratelimit provides an in-process fixed-window rate limiter
// keyed by an opaque string, typically a user id. It is a best-effort
// bound, not a durable quota: state is process-local and lost on restart.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of a limit check. When Allowed is false,
// RetryAfter is the time remaining until the current window resets.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window counter per key. The window starts on the
// first check for a key and resets when its reset time passes; the
// increment-and-compare is a single step under the mutex so concurrent
// callers on the same key cannot both claim the last slot.
type Limiter struct {
	mu           sync.Mutex
	windows      map[string]*window
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	now func() time.Time // injectable clock for tests
}

// NewLimiter creates a limiter and starts a background goroutine that
// garbage-collects expired windows at the given interval. Call Stop when
// the limiter is no longer needed.
func NewLimiter(cleanupInterval time.Duration) *Limiter {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	l := &Limiter{
		windows:     make(map[string]*window),
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}
	go l.startCleanup(cleanupInterval)
	return l
}

// Check records one request against key and reports whether it fits
// within maxRequests per windowSize.
func (l *Limiter) Check(key string, maxRequests int, windowSize time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, exists := l.windows[key]

	if !exists || !now.Before(w.resetAt) {
		// New window: first request always fits (maxRequests >= 1 assumed).
		l.windows[key] = &window{count: 1, resetAt: now.Add(windowSize)}
		return Result{Allowed: true}
	}

	if w.count >= maxRequests {
		return Result{Allowed: false, RetryAfter: w.resetAt.Sub(now)}
	}

	w.count++
	return Result{Allowed: true}
}

// ActiveKeys returns the number of currently tracked keys.
func (l *Limiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop shuts down the cleanup goroutine.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}

func (l *Limiter) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupExpired()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) cleanupExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
