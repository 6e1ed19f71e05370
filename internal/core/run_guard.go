package core

// run_guard.go keeps imports from overlapping.
//
// Every run clears and reloads tables on one exclusive connection, so two
// runs at once would delete each other's rows. The HTTP trigger and the
// scheduler both go through the same guard; a busy guard rejects instead of
// queueing, because a queued run would only repeat the one in flight.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrImportInProgress is returned when a run is requested while one is active.
var ErrImportInProgress = errors.New("import already running")

// RunGuard admits at most one import at a time.
type RunGuard struct {
	slot chan struct{}

	mu      sync.RWMutex
	holder  string
	since   time.Time
	started int
}

// NewRunGuard creates an idle guard.
func NewRunGuard() *RunGuard {
	return &RunGuard{slot: make(chan struct{}, 1)}
}

// TryAcquire claims the guard for runID without blocking.
// Returns false if another run holds it.
func (g *RunGuard) TryAcquire(runID string) bool {
	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.holder = runID
		g.since = time.Now()
		g.started++
		g.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees the guard.
// Must be called exactly once for each successful TryAcquire.
func (g *RunGuard) Release() {
	g.mu.Lock()
	g.holder = ""
	g.since = time.Time{}
	g.mu.Unlock()

	<-g.slot
}

// Active reports whether a run holds the guard.
func (g *RunGuard) Active() bool {
	return len(g.slot) > 0
}

// WaitForDrain blocks until the active run finishes or ctx is cancelled.
// Used for graceful shutdown.
func (g *RunGuard) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Active() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunGuardStatus is a snapshot of the guard for monitoring.
type RunGuardStatus struct {
	Active  bool      `json:"active"`
	RunID   string    `json:"run_id,omitempty"`
	Since   time.Time `json:"since,omitempty"`
	Started int       `json:"started"`
}

// Status returns the current guard state.
func (g *RunGuard) Status() RunGuardStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return RunGuardStatus{
		Active:  g.holder != "",
		RunID:   g.holder,
		Since:   g.since,
		Started: g.started,
	}
}
