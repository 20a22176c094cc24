package ratelimitsvc

import (
	"context"
	"sync"
	"time"

	"github.com/learningcloud/backend/core"
)

type windowCount struct {
	count    int
	resetsAt time.Time
}

// memoryLimiter is a process-local fixed-window counter; used in DEV and
// tests where no redis is available.
type memoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowCount
	now     func() time.Time
}

var _ core.RateLimiter = (*memoryLimiter)(nil)

func NewMemoryLimiter() core.RateLimiter {
	return &memoryLimiter{
		windows: make(map[string]*windowCount),
		now:     time.Now,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetsAt) {
		w = &windowCount{resetsAt: now.Add(window)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= limit, nil
}
