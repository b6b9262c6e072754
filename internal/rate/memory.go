package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter es la variante single-process del fixed window. Mismo
// comportamiento observable que RedisLimiter, sin dependencia externa.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu      sync.Mutex
	windows map[string]*memWindow

	// now permite congelar el reloj en tests. nil = time.Now.
	now func() time.Time
}

type memWindow struct {
	start time.Time
	hits  int64
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:     int64(max),
		Window:  window,
		windows: make(map[string]*memWindow),
	}
}

func (l *MemoryLimiter) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.clock().UTC()
	winStart := now.Truncate(l.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil || !w.start.Equal(winStart) {
		w = &memWindow{start: winStart}
		l.windows[key] = w
	}
	w.hits++

	// Limpieza oportunista de ventanas viejas para no crecer sin límite.
	if len(l.windows) > 4096 {
		for k, old := range l.windows {
			if !old.start.Equal(winStart) {
				delete(l.windows, k)
			}
		}
	}

	allowed := w.hits <= l.Max
	remaining := l.Max - w.hits
	if remaining < 0 {
		remaining = 0
	}
	ttl := w.start.Add(l.Window).Sub(now)

	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: w.hits,
		WindowTTL:   ttl,
	}
	if !allowed {
		res.RetryAfter = ttl
	}
	return res, nil
}
