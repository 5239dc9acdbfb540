package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"route-refresh/internal/logger"
	"route-refresh/internal/route"
)

// RouteSet is a snapshot of the live routes. Version changes on every update.
type RouteSet struct {
	Routes  []*route.Route
	Version uint64
}

// RouteStore holds the live route set.
type RouteStore interface {
	Routes() RouteSet
	// CompareAndSwap replaces the routes only if the set is still at version.
	CompareAndSwap(version uint64, routes []*route.Route, reason route.UpdateReason) bool
}

// RoutesRefresher is satisfied by *Refresher.
type RoutesRefresher interface {
	Refresh(ctx context.Context, routes []*route.Route, timeout time.Duration) (RefresherResult, error)
}

// Controller runs refresh cycles on a fixed interval. Cycles are strictly
// sequential: the next tick is not handled before the current cycle has been
// applied or discarded.
type Controller struct {
	store     RouteStore
	refresher RoutesRefresher
	processor *ResultProcessor
	states    *StateHolder
	observers *ObserversManager
	interval  time.Duration
	timeout   time.Duration
	log       logger.Logger
	metrics   Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycleMu sync.Mutex
}

type ControllerOptions struct {
	Interval       time.Duration
	RequestTimeout time.Duration
	Logger         logger.Logger
	Metrics        Metrics
}

func NewController(store RouteStore, refresher RoutesRefresher, processor *ResultProcessor, states *StateHolder, observers *ObserversManager, opts ControllerOptions) *Controller {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Controller{
		store:     store,
		refresher: refresher,
		processor: processor,
		states:    states,
		observers: observers,
		interval:  opts.Interval,
		timeout:   opts.RequestTimeout,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Job is the handle of a running refresh timer.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the timer and any in-flight cycle. It does not wait.
func (j *Job) Cancel() { j.cancel() }

// Done is closed once the timer loop has exited.
func (j *Job) Done() <-chan struct{} { return j.done }

// Start stops any running timer, then launches a new one. The first cycle
// runs one interval after Start.
func (c *Controller) Start(parent context.Context) *Job {
	c.Stop()

	ctx, cancel := context.WithCancel(parent)
	job := &Job{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.cancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer close(job.done)
		if c.interval <= 0 {
			return
		}
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.runCycle(ctx)
			}
		}
	}()
	return job
}

// Stop cancels the timer and the in-flight cycle and waits for both to end.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// runCycle performs one refresh cycle against the current route set.
func (c *Controller) runCycle(ctx context.Context) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	set := c.store.Routes()
	if len(set.Routes) == 0 {
		return
	}
	cycleID := uuid.NewString()
	log := c.log.With("cycle_id", cycleID)
	start := time.Now()

	c.states.OnStarted(cycleID)
	result, err := c.refresher.Refresh(ctx, set.Routes, c.timeout)
	if ctx.Err() != nil {
		log.Info("route refresh cancelled")
		c.states.OnCancel()
		c.states.Reset()
		c.observeCycle(OutcomeCanceled, start)
		return
	}
	if err != nil {
		log.Warn("route refresh failed", "error", err)
		c.states.OnFailure(err.Error())
		c.states.Reset()
		c.observeCycle(OutcomeFailure, start)
		return
	}
	result.CycleID = cycleID

	processed, publish, commit := c.processor.Evaluate(result)
	if publish {
		if !c.store.CompareAndSwap(set.Version, processed.Routes, route.ReasonRefresh) {
			log.Info("routes changed during refresh, result discarded")
			c.states.Reset()
			c.observeCycle(OutcomeDiscarded, start)
			return
		}
	}
	commit()
	if publish {
		c.observers.OnRoutesRefreshed(processed)
	}

	if result.Success {
		c.states.OnSuccess()
		c.observeCycle(OutcomeSuccess, start)
	} else {
		log.Warn("no route was refreshed", "routes", len(set.Routes))
		c.states.OnFailure("Route refresh failed")
		if publish {
			c.observeCycle(OutcomeDegraded, start)
		} else {
			c.observeCycle(OutcomeFailure, start)
		}
	}
	c.states.Reset()
}

func (c *Controller) observeCycle(outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveCycle(outcome, time.Since(start))
	}
}
