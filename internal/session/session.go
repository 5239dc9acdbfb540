package session

import (
	"context"
	"sync"

	"route-refresh/internal/logger"
	"route-refresh/internal/refresh"
	"route-refresh/internal/route"
)

// RoutesUpdate is delivered to route observers after every change of the
// live route set.
type RoutesUpdate struct {
	Routes  []*route.Route
	Reason  route.UpdateReason
	Version uint64
}

// RoutesObserver receives route set changes in registration order.
type RoutesObserver func(RoutesUpdate)

// Controller is the part of *refresh.Controller the session drives.
type Controller interface {
	Start(ctx context.Context) *refresh.Job
	Stop()
}

// Resetter is implemented by components holding per route set state.
type Resetter interface {
	Reset()
}

// Session owns the live route set of one navigation session. It implements
// refresh.RouteStore.
type Session struct {
	id  string
	log logger.Logger

	mu        sync.Mutex
	routes    []*route.Route
	version   uint64
	reason    route.UpdateReason
	nextObsID int
	observers []observerEntry

	progress   *refresh.ProgressTracker
	ctlMu      sync.Mutex
	controller Controller
	resetters  []Resetter
	ctx        context.Context
	cancel     context.CancelFunc

	// restarts run on their own goroutine so that a route observer called
	// from inside a refresh cycle can replace the routes.
	queueMu  sync.Mutex
	queue    []bool // true stops refresh, false restarts it
	wake     chan struct{}
	workerWG sync.WaitGroup
}

type observerEntry struct {
	id int
	fn RoutesObserver
}

func New(ctx context.Context, id string, progress *refresh.ProgressTracker, log logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	if progress == nil {
		progress = refresh.NewProgressTracker()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:       id,
		log:      log.With("session_id", id),
		reason:   route.ReasonCleanUp,
		progress: progress,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
	}
	s.workerWG.Add(1)
	go s.runRestarts()
	return s
}

func (s *Session) ID() string { return s.id }

// Attach wires the refresh controller and the components reset whenever the
// route set is replaced by something other than a refresh.
func (s *Session) Attach(c Controller, resetters ...Resetter) {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	s.controller = c
	s.resetters = resetters
}

func (s *Session) Routes() refresh.RouteSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return refresh.RouteSet{Routes: s.routes, Version: s.version}
}

// Reason is the reason of the last route set change.
func (s *Session) Reason() route.UpdateReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *Session) CompareAndSwap(version uint64, routes []*route.Route, reason route.UpdateReason) bool {
	s.mu.Lock()
	if version != s.version {
		s.mu.Unlock()
		return false
	}
	update := s.replaceLocked(routes, reason)
	observers := s.observerSnapshotLocked()
	s.mu.Unlock()

	notify(observers, update)
	return true
}

// SetRoutes replaces the live route set. Any reason other than a refresh
// restarts route refresh for the new routes; a clean up stops it. Restarts
// are applied asynchronously in the order of the updates.
func (s *Session) SetRoutes(routes []*route.Route, reason route.UpdateReason) {
	s.mu.Lock()
	update := s.replaceLocked(routes, reason)
	observers := s.observerSnapshotLocked()
	if reason != route.ReasonRefresh {
		s.progress.Reset()
		s.enqueueRestart(reason == route.ReasonCleanUp || len(routes) == 0)
	}
	s.mu.Unlock()

	s.log.Info("routes updated", "reason", string(reason), "routes", len(routes), "version", update.Version)
	notify(observers, update)
}

// UpdateProgress records the vehicle position reported by the trip engine.
func (s *Session) UpdateProgress(p refresh.RouteProgressData) {
	s.progress.Update(p)
}

func (s *Session) RegisterRoutesObserver(fn RoutesObserver) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextObsID++
	s.observers = append(s.observers, observerEntry{id: s.nextObsID, fn: fn})
	return s.nextObsID
}

func (s *Session) UnregisterRoutesObserver(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.observers {
		if o.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

// Close stops route refresh. Restarts still queued are dropped.
func (s *Session) Close() {
	s.cancel()
	s.workerWG.Wait()
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	if s.controller != nil {
		s.controller.Stop()
	}
}

func (s *Session) enqueueRestart(stopOnly bool) {
	s.queueMu.Lock()
	s.queue = append(s.queue, stopOnly)
	s.queueMu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// runRestarts applies queued restarts in the order the route sets changed.
func (s *Session) runRestarts() {
	defer s.workerWG.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		for {
			s.queueMu.Lock()
			if len(s.queue) == 0 {
				s.queueMu.Unlock()
				break
			}
			stopOnly := s.queue[0]
			s.queue = s.queue[1:]
			s.queueMu.Unlock()

			if s.ctx.Err() != nil {
				return
			}
			s.restartRefresh(stopOnly)
		}
	}
}

func (s *Session) restartRefresh(stopOnly bool) {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	if s.controller == nil {
		return
	}
	if stopOnly {
		s.controller.Stop()
		return
	}
	for _, r := range s.resetters {
		r.Reset()
	}
	s.controller.Start(s.ctx)
}

func (s *Session) replaceLocked(routes []*route.Route, reason route.UpdateReason) RoutesUpdate {
	s.routes = routes
	s.version++
	s.reason = reason
	return RoutesUpdate{Routes: routes, Reason: reason, Version: s.version}
}

func (s *Session) observerSnapshotLocked() []RoutesObserver {
	out := make([]RoutesObserver, len(s.observers))
	for i, o := range s.observers {
		out[i] = o.fn
	}
	return out
}

func notify(observers []RoutesObserver, update RoutesUpdate) {
	for _, fn := range observers {
		fn(update)
	}
}
