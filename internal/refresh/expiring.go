package refresh

import (
	"time"

	"route-refresh/internal/route"
)

// ExpiringDataRemover degrades routes that could not be refreshed for a long
// time: traffic data ahead of the vehicle becomes unknown and incidents past
// their end time are removed.
type ExpiringDataRemover struct {
	now func() time.Time
}

func NewExpiringDataRemover(now func() time.Time) *ExpiringDataRemover {
	if now == nil {
		now = time.Now
	}
	return &ExpiringDataRemover{now: now}
}

// RemoveExpiringData returns the degraded routes and whether any route
// changed. Unchanged routes are returned as the same values.
func (e *ExpiringDataRemover) RemoveExpiringData(routes []*route.Route, progress RouteProgressData) ([]*route.Route, bool) {
	now := e.now()
	out := make([]*route.Route, len(routes))
	changed := false
	for i, r := range routes {
		out[i] = r
		if r == nil {
			continue
		}
		if degraded, ok := e.removeFromRoute(r, progress, now); ok {
			out[i] = degraded
			changed = true
		}
	}
	return out, changed
}

func (e *ExpiringDataRemover) removeFromRoute(r *route.Route, progress RouteProgressData, now time.Time) (*route.Route, bool) {
	legs := make([]*route.Leg, len(r.Legs))
	copy(legs, r.Legs)
	changed := false
	for i := max(progress.LegIndex, 0); i < len(r.Legs); i++ {
		start := 0
		if i == progress.LegIndex {
			start = progress.LegGeometryIndex
		}
		if leg, ok := removeFromLeg(r.Legs[i], start, now); ok {
			legs[i] = leg
			changed = true
		}
	}
	if !changed {
		return r, false
	}
	return r.WithLegs(legs), true
}

func removeFromLeg(leg *route.Leg, start int, now time.Time) (*route.Leg, bool) {
	changed := false
	cp := leg.Copy()

	if a := leg.Annotation; a != nil {
		congestion, c1 := replaceFrom(a.Congestion, start, route.CongestionUnknown)
		numeric, c2 := replaceFrom(a.CongestionNumeric, start, route.CongestionNumericUnknown)
		if c1 || c2 {
			na := *a
			na.Congestion = congestion
			na.CongestionNumeric = numeric
			cp.Annotation = &na
			changed = true
		}
	}

	var kept []route.Incident
	removed := false
	for _, inc := range leg.Incidents {
		if inc.Expired(now) {
			removed = true
			continue
		}
		kept = append(kept, inc)
	}
	if removed {
		cp.Incidents = kept
		changed = true
	}
	return cp, changed
}

func replaceFrom[T comparable](values []T, start int, unknown T) ([]T, bool) {
	if start < 0 {
		start = 0
	}
	changed := false
	for i := start; i < len(values); i++ {
		if values[i] != unknown {
			changed = true
			break
		}
	}
	if !changed {
		return values, false
	}
	out := make([]T, len(values))
	copy(out, values)
	for i := start; i < len(out); i++ {
		out[i] = unknown
	}
	return out, true
}
