package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the single-instance counterpart of RedisLimiter: the same
// fixed window, counted in process memory.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu   sync.Mutex
	hits map[string]*windowCount
}

type windowCount struct {
	start time.Time
	n     int64
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:    int64(max),
		Window: window,
		hits:   make(map[string]*windowCount),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	wc, ok := l.hits[key]
	if !ok || wc.start.Before(winStart) {
		wc = &windowCount{start: winStart}
		l.hits[key] = wc
	}
	wc.n++

	// opportunistic sweep of stale windows
	if len(l.hits) > 4096 {
		for k, v := range l.hits {
			if v.start.Before(winStart) {
				delete(l.hits, k)
			}
		}
	}

	remaining := l.Max - wc.n
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     wc.n <= l.Max,
		Remaining:   remaining,
		CurrentHits: wc.n,
		WindowTTL:   winStart.Add(l.Window).Sub(now),
	}
	if !res.Allowed {
		res.RetryAfter = res.WindowTTL
	}
	return res, nil
}

// NoopLimiter always allows. Used when limiting is disabled by config.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) (Result, error) {
	return Result{Allowed: true, Remaining: 1 << 30}, nil
}
