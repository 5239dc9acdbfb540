package route

// MergeAnnotations splices fresh annotation data into old at the given leg
// geometry index. Fresh arrays are aligned with old ones: slot i of both refers
// to the same geometry interval, and only slots from startingLegGeometryIndex
// onward are taken from fresh. Arrays absent from fresh are kept from old.
func MergeAnnotations(old, fresh *Annotation, startingLegGeometryIndex int) *Annotation {
	if fresh == nil {
		return old
	}
	if old == nil {
		old = &Annotation{}
	}
	g := startingLegGeometryIndex
	return &Annotation{
		Duration:          spliceSlice(old.Duration, fresh.Duration, g),
		Distance:          spliceSlice(old.Distance, fresh.Distance, g),
		Speed:             spliceSlice(old.Speed, fresh.Speed, g),
		Congestion:        spliceSlice(old.Congestion, fresh.Congestion, g),
		CongestionNumeric: spliceSlice(old.CongestionNumeric, fresh.CongestionNumeric, g),
	}
}

func spliceSlice[T any](old, fresh []T, g int) []T {
	if fresh == nil {
		return old
	}
	if g <= 0 {
		return append([]T(nil), fresh...)
	}
	if g >= len(old) || g > len(fresh) {
		return old
	}
	out := make([]T, 0, len(fresh))
	out = append(out, old[:g]...)
	return append(out, fresh[g:]...)
}

// Refresh builds a new route from r with refreshed per-leg data applied to
// every leg starting at initialLegIndex. The per-leg slices are indexed by
// absolute leg index; a nil entry, or a missing one, keeps that leg's field.
//
// On the initial leg new data applies from currentLegGeometryIndex, and
// incident and closure indices reported by the backend are relative to that
// index. Later legs are replaced from index 0.
func Refresh(
	r *Route,
	initialLegIndex int,
	currentLegGeometryIndex int,
	annotations []*Annotation,
	incidents [][]Incident,
	closures [][]Closure,
) *Route {
	if initialLegIndex < 0 {
		initialLegIndex = 0
	}
	legs := make([]*Leg, len(r.Legs))
	copy(legs, r.Legs)

	durationsChanged := false
	for i := initialLegIndex; i < len(r.Legs); i++ {
		old := r.Legs[i]
		splice := 0
		if i == initialLegIndex {
			splice = currentLegGeometryIndex
		}

		leg := old.Copy()
		if a := legItem(annotations, i); a != nil {
			leg.Annotation = MergeAnnotations(old.Annotation, a, splice)
			if leg.Annotation != nil && leg.Annotation.Duration != nil {
				recalculateLegDurations(leg)
				durationsChanged = true
			}
		}
		if fresh := legItem(incidents, i); fresh != nil {
			leg.Incidents = mergeIncidents(old.Incidents, fresh, splice)
		}
		if fresh := legItem(closures, i); fresh != nil {
			leg.Closures = mergeClosures(old.Closures, fresh, splice)
		}
		legs[i] = leg
	}

	refreshed := r.WithLegs(legs)
	if durationsChanged {
		total := 0.0
		for _, l := range legs {
			total += l.Duration
		}
		refreshed.Duration = total
	}
	return refreshed
}

func legItem[T any](items []T, i int) T {
	var zero T
	if i < 0 || i >= len(items) {
		return zero
	}
	return items[i]
}

// recalculateLegDurations derives leg and step durations from the leg's
// duration annotation. Steps past the end of the annotation get 0.
func recalculateLegDurations(leg *Leg) {
	durations := leg.Annotation.Duration
	total := 0.0
	for _, d := range durations {
		total += d
	}
	leg.Duration = total

	steps := make([]Step, len(leg.Steps))
	cursor := 0
	for i, s := range leg.Steps {
		end := cursor + s.Intervals()
		if end > len(durations) {
			end = len(durations)
		}
		sum := 0.0
		for j := cursor; j < end; j++ {
			sum += durations[j]
		}
		s.Duration = sum
		steps[i] = s
		cursor += s.Intervals()
	}
	leg.Steps = steps
}

func mergeIncidents(old, fresh []Incident, splice int) []Incident {
	rebased := make([]Incident, 0, len(fresh))
	ids := make(map[string]struct{}, len(fresh))
	for _, inc := range fresh {
		inc.GeometryIndexStart += splice
		inc.GeometryIndexEnd += splice
		rebased = append(rebased, inc)
		if inc.ID != "" {
			ids[inc.ID] = struct{}{}
		}
	}
	out := make([]Incident, 0, len(rebased))
	for _, inc := range old {
		if !straddles(inc.GeometryIndexStart, inc.GeometryIndexEnd, splice) {
			continue
		}
		if _, dup := ids[inc.ID]; dup && inc.ID != "" {
			continue
		}
		out = append(out, inc)
	}
	return append(out, rebased...)
}

func mergeClosures(old, fresh []Closure, splice int) []Closure {
	rebased := make([]Closure, 0, len(fresh))
	for _, c := range fresh {
		c.GeometryIndexStart += splice
		c.GeometryIndexEnd += splice
		rebased = append(rebased, c)
	}
	out := make([]Closure, 0, len(rebased))
	for _, c := range old {
		if !straddles(c.GeometryIndexStart, c.GeometryIndexEnd, splice) {
			continue
		}
		dup := false
		for _, n := range rebased {
			if n == c {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return append(out, rebased...)
}

// straddles reports whether an old range begins behind the splice point and
// ends at or past it. Such items are kept with their original indices; items
// fully behind the splice point are dropped and items ahead of it are
// superseded by the fresh data.
func straddles(start, end, splice int) bool {
	return start < splice && end >= splice
}
