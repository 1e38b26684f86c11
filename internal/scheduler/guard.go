package scheduler

import (
	"context"
	"sync"
)

// MemoryGuard is a Guard for a single process, used when no Redis is configured.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func (g *MemoryGuard) TryAcquire(_ context.Context, key string) (func(context.Context) error, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = make(map[string]struct{})
	}
	if _, taken := g.held[key]; taken {
		return nil, false, nil
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
		return nil
	}, true, nil
}
