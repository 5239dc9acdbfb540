package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"route-refresh/internal/logger"
	"route-refresh/internal/route"
	"route-refresh/internal/router"
)

// RouterClient requests a refreshed version of a route from the backend.
// Implementations return a new route with the fresh data already merged in.
type RouterClient interface {
	RequestRefresh(ctx context.Context, r *route.Route, data route.RefreshRequestData) (*route.Route, error)
}

// EVDataProvider returns EV parameters to attach to a refresh request, or nil.
type EVDataProvider interface {
	Get(opts route.RouteOptions) map[string]string
}

// Request outcomes reported to Metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeTimeout  = "timeout"
	OutcomeInvalid  = "invalid"
	OutcomeCanceled = "canceled"
	OutcomeDegraded = "degraded"
	// OutcomeDiscarded marks a cycle whose result lost against a newer route set.
	OutcomeDiscarded = "discarded"
)

// Metrics receives refresh measurements. A nil Metrics disables reporting.
type Metrics interface {
	ObserveRequest(outcome string, d time.Duration)
	ObserveCycle(outcome string, d time.Duration)
	IncStaleDataRemovals()
}

// RefresherResult is the outcome of one refresh pass over the route set.
// Routes has the same order as the input; entries that were not refreshed are
// the input routes themselves.
type RefresherResult struct {
	CycleID  string
	Success  bool
	Routes   []*route.Route
	Progress RouteProgressData
}

// Refresher refreshes every route of a route set concurrently.
type Refresher struct {
	progress ProgressProvider
	ev       EVDataProvider
	client   RouterClient
	log      logger.Logger
	metrics  Metrics
}

func NewRefresher(progress ProgressProvider, ev EVDataProvider, client RouterClient, log logger.Logger, metrics Metrics) *Refresher {
	if log == nil {
		log = logger.Nop()
	}
	return &Refresher{progress: progress, ev: ev, client: client, log: log, metrics: metrics}
}

// Refresh waits for the current progress, then requests a refresh for each
// route with its own timeout. It fails only when ctx ends before progress is
// known.
func (r *Refresher) Refresh(ctx context.Context, routes []*route.Route, timeout time.Duration) (RefresherResult, error) {
	progress, err := r.progress.GetProgressOrWait(ctx)
	if err != nil {
		return RefresherResult{Routes: routes}, fmt.Errorf("wait for route progress: %w", err)
	}

	refreshed := make([]*route.Route, len(routes))
	var g errgroup.Group
	for i, rt := range routes {
		g.Go(func() error {
			refreshed[i] = r.refreshRoute(ctx, rt, progress, timeout)
			return nil
		})
	}
	_ = g.Wait()

	res := RefresherResult{Routes: make([]*route.Route, len(routes)), Progress: progress}
	for i, rt := range refreshed {
		if rt == nil {
			res.Routes[i] = routes[i]
			continue
		}
		res.Routes[i] = rt
		res.Success = true
	}
	if !res.Success {
		res.Routes = routes
	}
	return res, nil
}

// refreshRoute returns nil when the route was not refreshed.
func (r *Refresher) refreshRoute(ctx context.Context, rt *route.Route, progress RouteProgressData, timeout time.Duration) *route.Route {
	if v := ValidateRoute(rt); !v.Valid {
		id := "<nil>"
		if rt != nil {
			id = rt.ID()
		}
		r.log.Info(fmt.Sprintf("route %s can't be refreshed because %s", id, v.Reason))
		r.observeRequest(OutcomeInvalid, 0)
		return nil
	}

	data := route.RefreshRequestData{
		LegIndex:           progress.LegIndex,
		RouteGeometryIndex: progress.RouteGeometryIndex,
		LegGeometryIndex:   progress.LegGeometryIndex,
	}
	if r.ev != nil {
		data.EVData = r.ev.Get(rt.Options)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	fresh, err := r.client.RequestRefresh(reqCtx, rt, data)
	elapsed := time.Since(start)

	switch {
	case err == nil && fresh != nil:
		r.log.Info(fmt.Sprintf("Received refreshed route %s", fresh.ID()))
		r.logDiff(rt, fresh, data.LegIndex)
		r.observeRequest(OutcomeSuccess, elapsed)
		return fresh
	case err == nil:
		r.log.Error(fmt.Sprintf("Route refresh error: empty response for route %s cause=<nil>", rt.ID()))
		r.observeRequest(OutcomeFailure, elapsed)
	case errors.Is(err, context.DeadlineExceeded) || (reqCtx.Err() != nil && errors.Is(err, context.Canceled)):
		r.log.Info(fmt.Sprintf("Route refresh for route %s was cancelled after timeout", rt.ID()))
		if ctx.Err() != nil {
			r.observeRequest(OutcomeCanceled, elapsed)
		} else {
			r.observeRequest(OutcomeTimeout, elapsed)
		}
	default:
		message, cause := err.Error(), error(nil)
		var refreshErr *router.RefreshError
		if errors.As(err, &refreshErr) {
			message, cause = refreshErr.Message, refreshErr.Cause
		}
		r.log.Error(fmt.Sprintf("Route refresh error: %s cause=%v", message, cause), "route_id", rt.ID())
		r.observeRequest(OutcomeFailure, elapsed)
	}
	return nil
}

func (r *Refresher) logDiff(old, fresh *route.Route, currentLegIndex int) {
	diffs := DiffRoutes(old, fresh, currentLegIndex)
	if len(diffs) == 0 {
		r.log.Info(fmt.Sprintf("No changes in annotations for route %s", fresh.ID()))
		return
	}
	for _, d := range diffs {
		r.log.Info(d)
	}
}

func (r *Refresher) observeRequest(outcome string, d time.Duration) {
	if r.metrics != nil {
		r.metrics.ObserveRequest(outcome, d)
	}
}
