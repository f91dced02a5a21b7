package orchestrator

import (
	"context"
	"sync"
)

// resourceGate serializes access per resource key. Waiters are granted the
// resource strictly in arrival order; keys never block each other.
type resourceGate struct {
	mu     sync.Mutex
	active map[string]bool
	queues map[string][]chan struct{}
}

func newResourceGate() *resourceGate {
	return &resourceGate{
		active: make(map[string]bool),
		queues: make(map[string][]chan struct{}),
	}
}

// acquire blocks until the key is free or the context is done.
func (g *resourceGate) acquire(ctx context.Context, key string) error {
	g.mu.Lock()

	if !g.active[key] {
		g.active[key] = true
		g.mu.Unlock()

		return nil
	}

	waiter := make(chan struct{}, 1)
	g.queues[key] = append(g.queues[key], waiter)
	g.mu.Unlock()

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		if g.removeWaiter(key, waiter) {
			g.mu.Unlock()

			return ctx.Err()
		}
		g.mu.Unlock()

		// The grant raced the cancellation; take it and hand it on.
		<-waiter
		g.release(key)

		return ctx.Err()
	}
}

// release hands the key to the next waiter in arrival order, or frees it.
func (g *resourceGate) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	waiters := g.queues[key]
	if len(waiters) == 0 {
		delete(g.active, key)
		delete(g.queues, key)

		return
	}

	next := waiters[0]
	g.queues[key] = waiters[1:]
	next <- struct{}{}
}

// removeWaiter drops a cancelled waiter from the queue. Returns false when
// the waiter is no longer queued, meaning a grant is already on its way.
func (g *resourceGate) removeWaiter(key string, waiter chan struct{}) bool {
	waiters := g.queues[key]

	for i, candidate := range waiters {
		if candidate == waiter {
			g.queues[key] = append(waiters[:i:i], waiters[i+1:]...)

			return true
		}
	}

	return false
}

// queued reports how many waiters are parked behind the key.
func (g *resourceGate) queued(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.queues[key])
}
