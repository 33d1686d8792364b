// Package limiter guards record creation with a sliding-window counter.
// Unlike the token-bucket middleware fronting the whole API, this limiter
// needs an exact window: after the limit is reached, capacity returns
// only as the oldest admitted timestamps age out.
package limiter

import (
	"sync"
	"time"
)

// SlidingWindow admits up to limit requests per key within a rolling
// window. Check-and-record happens under one lock acquisition so
// concurrent callers cannot both claim the last slot.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	stamps map[string][]time.Time

	now func() time.Time // test seam
}

func New(window time.Duration, limit int) *SlidingWindow {
	return &SlidingWindow{
		window: window,
		limit:  limit,
		stamps: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// CanMakeRequest admits the request and records its timestamp, or rejects
// it without side effects when the window is full.
func (l *SlidingWindow) CanMakeRequest(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	live := l.prune(key, now)
	if len(live) >= l.limit {
		l.stamps[key] = live
		return false
	}

	l.stamps[key] = append(live, now)
	return true
}

// GetRemainingRequests is a pure read of the current window capacity.
func (l *SlidingWindow) GetRemainingRequests(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.limit - len(l.prune(key, l.now()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// prune drops timestamps older than the window. Caller holds the lock.
func (l *SlidingWindow) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	stamps := l.stamps[key]
	live := make([]time.Time, 0, len(stamps))
	for _, ts := range stamps {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	return live
}
