package audio

import (
	"context"
	"sync"
)

// Gate holds playback while paused. The zero value is open.
type Gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// Pause closes the gate.
func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.paused {
		g.paused = true
		g.resume = make(chan struct{})
	}
}

// Resume opens the gate and releases waiters.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused {
		g.paused = false
		close(g.resume)
	}
}

// Paused reports whether the gate is closed.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is closed.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return ctx.Err()
	}
	ch := g.resume
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
