package syncx

import (
	"sync"
	"time"
)

// throttleGate enforces the state-broadcast contract: at most one frame per
// window, the most recent call within a window wins, no queueing. The first
// call in an idle window fires immediately; later calls overwrite a single
// pending slot that a trailing timer flushes when the window reopens.
type throttleGate struct {
	mu       sync.Mutex
	window   time.Duration
	clock    func() time.Time
	fire     func(*Frame)
	lastSent time.Time
	pending  *Frame
	timer    *time.Timer
	closed   bool
}

func newThrottleGate(window time.Duration, clock func() time.Time, fire func(*Frame)) *throttleGate {
	return &throttleGate{window: window, clock: clock, fire: fire}
}

// Offer submits a frame. Never blocks.
func (g *throttleGate) Offer(f *Frame) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	now := g.clock()
	elapsed := now.Sub(g.lastSent)
	if g.pending == nil && elapsed >= g.window {
		g.lastSent = now
		g.mu.Unlock()
		g.fire(f)
		return
	}

	// Window busy: latest call wins, earlier pending frames are dropped.
	g.pending = f
	if g.timer == nil {
		delay := g.window - elapsed
		if delay <= 0 {
			delay = g.window
		}
		g.timer = time.AfterFunc(delay, g.flush)
	}
	g.mu.Unlock()
}

func (g *throttleGate) flush() {
	g.mu.Lock()
	g.timer = nil
	f := g.pending
	g.pending = nil
	if f == nil || g.closed {
		g.mu.Unlock()
		return
	}
	g.lastSent = g.clock()
	g.mu.Unlock()
	g.fire(f)
}

// Close drops any pending frame and cancels the trailing timer.
func (g *throttleGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.pending = nil
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
