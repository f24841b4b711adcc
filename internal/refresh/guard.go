package refresh

import "sync"

// Guard serializes the periodic catalogue reload against an in-progress
// multi-field edit. It is a read/write-ordering guard, not a multi-party
// lock: one interactive editor at a time is the design, but with real
// goroutines the flag still needs a mutex.
type Guard struct {
	mu      sync.Mutex
	editing bool
	pending bool
	wake    chan struct{}
}

// NewGuard creates a new refresh guard.
func NewGuard() *Guard {
	return &Guard{wake: make(chan struct{}, 1)}
}

// WithExclusiveEdit runs action while reload passes are suspended. A tick
// refused during the window is deferred, not dropped and not queued more
// than once: after action returns, Deferred fires exactly one wake-up.
func (g *Guard) WithExclusiveEdit(action func() error) error {
	g.mu.Lock()
	g.editing = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.editing = false
		fire := g.pending
		g.pending = false
		g.mu.Unlock()

		if fire {
			select {
			case g.wake <- struct{}{}:
			default:
			}
		}
	}()

	return action()
}

// Allow reports whether a reload pass may run now. When an edit is in
// progress the tick is recorded as pending instead.
func (g *Guard) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editing {
		g.pending = true
		return false
	}
	return true
}

// Deferred signals once for ticks that arrived during an edit window.
func (g *Guard) Deferred() <-chan struct{} {
	return g.wake
}
