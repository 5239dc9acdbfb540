package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func points(n int) []Point {
	out := make([]Point, n)
	for i := range out {
		out[i] = Point{Lat: 52.5 + float64(i)*0.001, Lon: 13.4}
	}
	return out
}

func stepsOf(pointCounts ...int) []Step {
	out := make([]Step, len(pointCounts))
	for i, n := range pointCounts {
		out[i] = Step{Geometry: points(n)}
	}
	return out
}

// singleLegRoute mirrors a short city route: two maneuvers and an arrival step.
func singleLegRoute() *Route {
	steps := stepsOf(7, 2, 1)
	steps[0].Duration = 34.341
	steps[1].Duration = 7.541
	leg := &Leg{
		Duration: 41.882,
		Annotation: &Annotation{
			Duration:   []float64{4.548, 4.555, 4.512, 3.841, 15.415, 1.507, 7.504},
			Congestion: []string{"low", "low", "low", "moderate", "moderate", "heavy", "heavy"},
		},
		Steps: steps,
	}
	return &Route{
		ResponseUUID: "resp-1",
		Options:      RouteOptions{Profile: ProfileDrivingTraffic, EnableRefresh: true},
		Duration:     41.882,
		Legs:         []*Leg{leg},
	}
}

func TestRefreshRecalculatesDurations(t *testing.T) {
	r := singleLegRoute()
	fresh := &Annotation{Duration: []float64{4.548, 4.555, 4.512, 3.841, 15.415, 1.507, 6.359}}

	got := Refresh(r, 0, 0, []*Annotation{fresh}, nil, nil)

	assert.InDelta(t, 40.737, got.Duration, 1e-9)
	require.Len(t, got.Legs, 1)
	assert.InDelta(t, 40.737, got.Legs[0].Duration, 1e-9)
	assert.InDelta(t, 34.378, got.Legs[0].Steps[0].Duration, 1e-9)
	assert.InDelta(t, 6.359, got.Legs[0].Steps[1].Duration, 1e-9)
	assert.Zero(t, got.Legs[0].Steps[2].Duration)

	// source route untouched
	assert.Equal(t, 41.882, r.Duration)
	assert.Equal(t, 34.341, r.Legs[0].Steps[0].Duration)
}

func TestRefreshWithoutDurationKeepsDurations(t *testing.T) {
	r := singleLegRoute()
	fresh := &Annotation{Congestion: []string{"low", "low", "low", "low", "low", "low", "low"}}

	got := Refresh(r, 0, 0, []*Annotation{fresh}, nil, nil)

	assert.Equal(t, 41.882, got.Duration)
	assert.Equal(t, 41.882, got.Legs[0].Duration)
	assert.Equal(t, 34.341, got.Legs[0].Steps[0].Duration)
	assert.Equal(t, 7.541, got.Legs[0].Steps[1].Duration)
	assert.Zero(t, got.Legs[0].Steps[2].Duration)
	assert.Equal(t, fresh.Congestion, got.Legs[0].Annotation.Congestion)
	assert.Equal(t, r.Legs[0].Annotation.Duration, got.Legs[0].Annotation.Duration)
}

func TestRefreshSecondLeg(t *testing.T) {
	r := singleLegRoute()
	second := &Leg{
		Duration:   6,
		Annotation: &Annotation{Duration: []float64{2, 2, 1, 1}},
		Steps:      stepsOf(2, 4, 1),
	}
	r.Legs = append(r.Legs, second)
	r.Duration = 47.882

	fresh := &Annotation{Duration: []float64{1, 1, 1, 1}}
	got := Refresh(r, 1, 0, []*Annotation{nil, fresh}, nil, nil)

	assert.Same(t, r.Legs[0], got.Legs[0])
	assert.InDelta(t, 4.0, got.Legs[1].Duration, 1e-9)
	assert.InDelta(t, 1.0, got.Legs[1].Steps[0].Duration, 1e-9)
	assert.InDelta(t, 3.0, got.Legs[1].Steps[1].Duration, 1e-9)
	assert.Zero(t, got.Legs[1].Steps[2].Duration)
	assert.InDelta(t, 45.882, got.Duration, 1e-9)
}

func TestRefreshRebasesIncidentsOnCurrentLeg(t *testing.T) {
	r := singleLegRoute()
	fresh := [][]Incident{{{ID: "inc-1", GeometryIndexStart: 2, GeometryIndexEnd: 4}}}

	got := Refresh(r, 0, 2, nil, fresh, nil)

	require.Len(t, got.Legs[0].Incidents, 1)
	assert.Equal(t, 4, got.Legs[0].Incidents[0].GeometryIndexStart)
	assert.Equal(t, 6, got.Legs[0].Incidents[0].GeometryIndexEnd)
	// fresh input is not modified
	assert.Equal(t, 2, fresh[0][0].GeometryIndexStart)
}

func TestRefreshRebasesSecondLegItems(t *testing.T) {
	r := singleLegRoute()
	r.Legs = append(r.Legs, &Leg{Steps: stepsOf(60, 1)})

	incidents := [][]Incident{nil, {{ID: "inc-2", GeometryIndexStart: 40, GeometryIndexEnd: 50}}}
	closures := [][]Closure{nil, {{GeometryIndexStart: 2, GeometryIndexEnd: 6}}}

	got := Refresh(r, 1, 4, nil, incidents, closures)

	require.Len(t, got.Legs[1].Incidents, 1)
	assert.Equal(t, 44, got.Legs[1].Incidents[0].GeometryIndexStart)
	assert.Equal(t, 54, got.Legs[1].Incidents[0].GeometryIndexEnd)
	require.Len(t, got.Legs[1].Closures, 1)
	assert.Equal(t, Closure{GeometryIndexStart: 6, GeometryIndexEnd: 10}, got.Legs[1].Closures[0])
}

func TestRefreshLaterLegsUseZeroSplice(t *testing.T) {
	r := singleLegRoute()
	r.Legs = append(r.Legs, &Leg{
		Steps:     stepsOf(10, 1),
		Incidents: []Incident{{ID: "old", GeometryIndexStart: 1, GeometryIndexEnd: 2}},
	})
	incidents := [][]Incident{{}, {{ID: "new", GeometryIndexStart: 3, GeometryIndexEnd: 5}}}

	got := Refresh(r, 0, 5, nil, incidents, nil)

	require.Len(t, got.Legs[1].Incidents, 1)
	assert.Equal(t, Incident{ID: "new", GeometryIndexStart: 3, GeometryIndexEnd: 5}, got.Legs[1].Incidents[0])
}

func TestRefreshIncidentsAroundSplicePoint(t *testing.T) {
	r := singleLegRoute()
	r.Legs[0].Incidents = []Incident{
		{ID: "behind", GeometryIndexStart: 0, GeometryIndexEnd: 2},
		{ID: "straddling", GeometryIndexStart: 1, GeometryIndexEnd: 5},
		{ID: "ahead", GeometryIndexStart: 4, GeometryIndexEnd: 6},
	}
	fresh := [][]Incident{{{ID: "fresh", GeometryIndexStart: 0, GeometryIndexEnd: 1}}}

	got := Refresh(r, 0, 3, nil, fresh, nil)

	assert.Equal(t, []Incident{
		{ID: "straddling", GeometryIndexStart: 1, GeometryIndexEnd: 5},
		{ID: "fresh", GeometryIndexStart: 3, GeometryIndexEnd: 4},
	}, got.Legs[0].Incidents)
}

func TestRefreshStraddlingIncidentReplacedBySameID(t *testing.T) {
	r := singleLegRoute()
	r.Legs[0].Incidents = []Incident{{ID: "jam", GeometryIndexStart: 1, GeometryIndexEnd: 5}}
	fresh := [][]Incident{{{ID: "jam", GeometryIndexStart: 0, GeometryIndexEnd: 3}}}

	got := Refresh(r, 0, 3, nil, fresh, nil)

	assert.Equal(t, []Incident{{ID: "jam", GeometryIndexStart: 3, GeometryIndexEnd: 6}}, got.Legs[0].Incidents)
}

func TestRefreshStraddlingClosureDeduplicated(t *testing.T) {
	r := singleLegRoute()
	r.Legs[0].Closures = []Closure{
		{GeometryIndexStart: 1, GeometryIndexEnd: 4},
		{GeometryIndexStart: 2, GeometryIndexEnd: 5},
	}
	// the second fresh closure rebases onto the second old one
	fresh := [][]Closure{{{GeometryIndexStart: 0, GeometryIndexEnd: 1}, {GeometryIndexStart: -1, GeometryIndexEnd: 2}}}

	got := Refresh(r, 0, 3, nil, nil, fresh)

	assert.Equal(t, []Closure{
		{GeometryIndexStart: 1, GeometryIndexEnd: 4},
		{GeometryIndexStart: 3, GeometryIndexEnd: 4},
		{GeometryIndexStart: 2, GeometryIndexEnd: 5},
	}, got.Legs[0].Closures)
}

func TestRefreshNilEntriesKeepOldData(t *testing.T) {
	r := singleLegRoute()
	r.Legs[0].Incidents = []Incident{{ID: "keep", GeometryIndexStart: 0, GeometryIndexEnd: 1}}
	r.Legs[0].Closures = []Closure{{GeometryIndexStart: 0, GeometryIndexEnd: 1}}

	got := Refresh(r, 0, 3, []*Annotation{nil}, [][]Incident{nil}, [][]Closure{nil})

	assert.NotSame(t, r, got)
	assert.Same(t, r.Legs[0].Annotation, got.Legs[0].Annotation)
	assert.Equal(t, r.Legs[0].Incidents, got.Legs[0].Incidents)
	assert.Equal(t, r.Legs[0].Closures, got.Legs[0].Closures)
	assert.Equal(t, r.Duration, got.Duration)
}

func TestRefreshEmptyListClearsItems(t *testing.T) {
	r := singleLegRoute()
	r.Legs[0].Incidents = []Incident{{ID: "gone", GeometryIndexStart: 0, GeometryIndexEnd: 1}}

	got := Refresh(r, 0, 0, nil, [][]Incident{{}}, nil)

	assert.Empty(t, got.Legs[0].Incidents)
}

func TestMergeAnnotations(t *testing.T) {
	old := &Annotation{
		Duration:   []float64{1, 1, 1, 1, 1},
		Congestion: []string{"low", "low", "low", "low", "low"},
		Speed:      []float64{10, 10, 10, 10, 10},
	}
	fresh := &Annotation{
		Duration:   []float64{2, 2, 2, 2, 2},
		Congestion: []string{"heavy", "heavy", "heavy", "heavy", "heavy"},
	}

	tests := []struct {
		name       string
		g          int
		duration   []float64
		congestion []string
	}{
		{"full replacement", 0, []float64{2, 2, 2, 2, 2}, []string{"heavy", "heavy", "heavy", "heavy", "heavy"}},
		{"splice", 2, []float64{1, 1, 2, 2, 2}, []string{"low", "low", "heavy", "heavy", "heavy"}},
		{"past old end", 5, old.Duration, old.Congestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeAnnotations(old, fresh, tt.g)
			assert.Equal(t, tt.duration, got.Duration)
			assert.Equal(t, tt.congestion, got.Congestion)
			assert.Equal(t, old.Speed, got.Speed)
		})
	}
}

func TestMergeAnnotationsShortFresh(t *testing.T) {
	old := &Annotation{Distance: []float64{5, 5, 5, 5}}
	fresh := &Annotation{Distance: []float64{7}}

	got := MergeAnnotations(old, fresh, 2)

	assert.Equal(t, old.Distance, got.Distance)
}

func TestMergeAnnotationsReturnsFreshSlices(t *testing.T) {
	old := &Annotation{CongestionNumeric: []int{10, 20, 30}}
	fresh := &Annotation{CongestionNumeric: []int{40, 50, 60}}

	got := MergeAnnotations(old, fresh, 1)
	got.CongestionNumeric[0] = 99
	got2 := MergeAnnotations(old, fresh, 0)
	got2.CongestionNumeric[0] = 99

	assert.Equal(t, []int{10, 20, 30}, old.CongestionNumeric)
	assert.Equal(t, []int{40, 50, 60}, fresh.CongestionNumeric)
}

func TestMergeAnnotationsNil(t *testing.T) {
	old := &Annotation{Duration: []float64{1}}
	assert.Same(t, old, MergeAnnotations(old, nil, 0))

	got := MergeAnnotations(nil, &Annotation{Duration: []float64{3}}, 0)
	assert.Equal(t, []float64{3}, got.Duration)
}
