package refresh

import (
	"context"
	"sync"
)

// RouteProgressData is the vehicle position on the route at the start of a
// refresh cycle.
type RouteProgressData struct {
	LegIndex           int `json:"legIndex"`
	RouteGeometryIndex int `json:"routeGeometryIndex"`
	LegGeometryIndex   int `json:"legGeometryIndex"`
}

// ProgressProvider hands out the current progress, waiting for the first
// update after a route change.
type ProgressProvider interface {
	GetProgressOrWait(ctx context.Context) (RouteProgressData, error)
}

// ProgressTracker keeps the latest progress reported by the trip engine.
// After Reset, readers block until the next Update.
type ProgressTracker struct {
	mu       sync.Mutex
	progress RouteProgressData
	ready    chan struct{}
	has      bool
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{ready: make(chan struct{})}
}

// Update stores p and releases every waiting reader.
func (t *ProgressTracker) Update(p RouteProgressData) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = p
	if !t.has {
		t.has = true
		close(t.ready)
	}
}

// Reset forgets the stored progress. Called whenever the route set changes,
// since old indices no longer point into the new routes.
func (t *ProgressTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.has {
		t.has = false
		t.progress = RouteProgressData{}
		t.ready = make(chan struct{})
	}
}

func (t *ProgressTracker) GetProgressOrWait(ctx context.Context) (RouteProgressData, error) {
	for {
		t.mu.Lock()
		if t.has {
			p := t.progress
			t.mu.Unlock()
			return p, nil
		}
		ready := t.ready
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			return RouteProgressData{}, ctx.Err()
		case <-ready:
		}
	}
}
