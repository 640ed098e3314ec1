// Package ratelimit implements the per-tool fixed-window request limiter
// (§5 "Concurrency & resource model"): N calls per fixed window, reset at
// the window boundary rather than a sliding or token-bucket scheme.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces a fixed-window call budget per key (typically an
// operation name). It is distinct from golang.org/x/time/rate's
// token-bucket semantics — see DESIGN.md for why this package is
// hand-rolled rather than built on x/time/rate.
type Limiter struct {
	mu            sync.Mutex
	callsPerWindow int
	window        time.Duration
	windows       map[string]*windowState
}

type windowState struct {
	count        int
	windowStart  time.Time
}

// New returns a Limiter allowing callsPerWindow calls per window, per key.
func New(callsPerWindow int, window time.Duration) *Limiter {
	if callsPerWindow <= 0 {
		callsPerWindow = 30
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Limiter{
		callsPerWindow: callsPerWindow,
		window:         window,
		windows:        map[string]*windowState{},
	}
}

// Allow reports whether a call under key is permitted at now, consuming
// one unit of budget if so. A new window starts the first time a key is
// seen, or once the previous window has fully elapsed — never mid-window
// based on individual call spacing, per the fixed-window (not sliding)
// semantics named in §5.
func (l *Limiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.windows[key]
	if !ok || now.Sub(st.windowStart) >= l.window {
		st = &windowState{windowStart: now}
		l.windows[key] = st
	}
	if st.count >= l.callsPerWindow {
		return false
	}
	st.count++
	return true
}

// Remaining reports how many calls are left in key's current window at now,
// without consuming budget.
func (l *Limiter) Remaining(key string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.windows[key]
	if !ok || now.Sub(st.windowStart) >= l.window {
		return l.callsPerWindow
	}
	remaining := l.callsPerWindow - st.count
	if remaining < 0 {
		return 0
	}
	return remaining
}
