package sanitypress

import (
	"sync"
	"time"
)

// Limiter counts attempts per key (an IP address) inside a sliding window.
type Limiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewLimiter creates a Limiter that allows max attempts per window and starts
// a janitor goroutine. Call Stop to release it.
func NewLimiter(max int, window time.Duration) *Limiter {
	l := &Limiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Stop ends the janitor goroutine.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-l.window)
			l.mu.Lock()
			for key, hits := range l.attempts {
				if kept := prune(hits, cutoff); len(kept) == 0 {
					delete(l.attempts, key)
				} else {
					l.attempts[key] = kept
				}
			}
			l.mu.Unlock()
		}
	}
}

// Allow checks the key against the limit and records the attempt if allowed.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := prune(l.attempts[key], now.Add(-l.window))
	if len(kept) >= l.max {
		l.attempts[key] = kept
		return false
	}
	l.attempts[key] = append(kept, now)
	return true
}

// Check returns true if the key has not exceeded the limit. It does not
// record an attempt; call Record separately on failure.
func (l *Limiter) Check(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := prune(l.attempts[key], time.Now().Add(-l.window))
	l.attempts[key] = kept
	return len(kept) < l.max
}

// Record registers a failed attempt for key.
func (l *Limiter) Record(key string) {
	l.mu.Lock()
	l.attempts[key] = append(l.attempts[key], time.Now())
	l.mu.Unlock()
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
