package refresh

import (
	"fmt"
	"reflect"
	"strings"

	"route-refresh/internal/route"
)

// DiffRoutes lists the observable differences between old and fresh on legs
// at or after currentLegIndex, one message per changed leg. The result is only
// meant for logging.
func DiffRoutes(old, fresh *route.Route, currentLegIndex int) []string {
	if old == nil || fresh == nil {
		return nil
	}
	if currentLegIndex < 0 {
		currentLegIndex = 0
	}
	var diffs []string
	n := min(len(old.Legs), len(fresh.Legs))
	for i := currentLegIndex; i < n; i++ {
		names := legDiff(old.Legs[i], fresh.Legs[i])
		if len(names) == 0 {
			continue
		}
		diffs = append(diffs, fmt.Sprintf("Updated %s at route %s leg %d", strings.Join(names, ", "), fresh.ID(), i))
	}
	return diffs
}

func legDiff(old, fresh *route.Leg) []string {
	oa, fa := annotationOrEmpty(old.Annotation), annotationOrEmpty(fresh.Annotation)
	var names []string
	if !reflect.DeepEqual(oa.Distance, fa.Distance) {
		names = append(names, "distance")
	}
	if !reflect.DeepEqual(oa.Duration, fa.Duration) {
		names = append(names, "duration")
	}
	if !reflect.DeepEqual(oa.Speed, fa.Speed) {
		names = append(names, "speed")
	}
	if !reflect.DeepEqual(oa.Congestion, fa.Congestion) {
		names = append(names, "congestion")
	}
	if !reflect.DeepEqual(oa.CongestionNumeric, fa.CongestionNumeric) {
		names = append(names, "congestion_numeric")
	}
	if !sameItems(old.Incidents, fresh.Incidents) {
		names = append(names, "incidents")
	}
	if !sameItems(old.Closures, fresh.Closures) {
		names = append(names, "closures")
	}
	return names
}

func annotationOrEmpty(a *route.Annotation) *route.Annotation {
	if a == nil {
		return &route.Annotation{}
	}
	return a
}

// sameItems treats nil and empty lists as equal.
func sameItems[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
