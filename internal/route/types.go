package route

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProfileDrivingTraffic = "driving-traffic"
	ProfileDriving        = "driving"
	ProfileWalking        = "walking"
	ProfileCycling        = "cycling"

	CongestionUnknown = "unknown"
	// CongestionNumericUnknown marks a segment whose numeric congestion is not known.
	CongestionNumericUnknown = -1

	// localUUIDPrefix is carried by routes built on the device (offline router).
	localUUIDPrefix = "local@"
)

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RouteOptions are the request options a route was computed with.
type RouteOptions struct {
	Profile       string            `json:"profile"`
	EnableRefresh bool              `json:"enableRefresh"`
	Annotations   []string          `json:"annotations,omitempty"`
	EngineType    string            `json:"engineType,omitempty"`
	EVParams      map[string]string `json:"evParams,omitempty"`
}

// Annotation holds per geometry interval arrays. A nil array means the
// annotation type was not requested.
type Annotation struct {
	Duration          []float64 `json:"duration,omitempty"`
	Distance          []float64 `json:"distance,omitempty"`
	Speed             []float64 `json:"speed,omitempty"`
	Congestion        []string  `json:"congestion,omitempty"`
	CongestionNumeric []int     `json:"congestionNumeric,omitempty"`
}

type Incident struct {
	ID                 string `json:"id"`
	Type               string `json:"type,omitempty"`
	Description        string `json:"description,omitempty"`
	GeometryIndexStart int    `json:"geometryIndexStart"`
	GeometryIndexEnd   int    `json:"geometryIndexEnd"`
	// EndTime is the RFC3339 time the incident stops being valid, as sent by the backend.
	EndTime string `json:"endTime,omitempty"`
}

// Expired reports whether the incident end time is before now. Incidents
// without a parsable end time never expire.
func (i Incident) Expired(now time.Time) bool {
	if i.EndTime == "" {
		return false
	}
	end, err := time.Parse(time.RFC3339, i.EndTime)
	if err != nil {
		return false
	}
	return end.Before(now)
}

type Closure struct {
	GeometryIndexStart int `json:"geometryIndexStart"`
	GeometryIndexEnd   int `json:"geometryIndexEnd"`
}

type Step struct {
	Name     string  `json:"name,omitempty"`
	Duration float64 `json:"duration"`
	Distance float64 `json:"distance"`
	Geometry []Point `json:"geometry"`
}

// Intervals is the number of annotation slots the step covers.
func (s Step) Intervals() int {
	if len(s.Geometry) < 2 {
		return 0
	}
	return len(s.Geometry) - 1
}

type Leg struct {
	Duration   float64     `json:"duration"`
	Distance   float64     `json:"distance"`
	Annotation *Annotation `json:"annotation,omitempty"`
	Incidents  []Incident  `json:"incidents,omitempty"`
	Closures   []Closure   `json:"closures,omitempty"`
	Steps      []Step      `json:"steps"`
}

// Route is one drivable path. Values are never mutated once built; refresh
// produces a new Route sharing untouched legs with the old one.
type Route struct {
	ResponseUUID string       `json:"responseUuid"`
	Index        int          `json:"routeIndex"`
	Options      RouteOptions `json:"options"`
	Duration     float64      `json:"duration"`
	Distance     float64      `json:"distance"`
	Legs         []*Leg       `json:"legs"`
}

func (r *Route) ID() string {
	return fmt.Sprintf("%s#%d", r.ResponseUUID, r.Index)
}

// IsLocal reports whether the route was built by an on-device router.
func (r *Route) IsLocal() bool {
	return strings.HasPrefix(r.ResponseUUID, localUUIDPrefix)
}

// WithLegs returns a shallow copy of r carrying the given legs.
func (r *Route) WithLegs(legs []*Leg) *Route {
	cp := *r
	cp.Legs = legs
	return &cp
}

// Copy returns a shallow copy of the leg that can be modified field by field.
func (l *Leg) Copy() *Leg {
	cp := *l
	return &cp
}

// UpdateReason explains why a route set was replaced.
type UpdateReason string

const (
	ReasonCleanUp     UpdateReason = "ROUTES_UPDATE_REASON_CLEAN_UP"
	ReasonNew         UpdateReason = "ROUTES_UPDATE_REASON_NEW"
	ReasonAlternative UpdateReason = "ROUTES_UPDATE_REASON_ALTERNATIVE"
	ReasonReroute     UpdateReason = "ROUTES_UPDATE_REASON_REROUTE"
	ReasonRefresh     UpdateReason = "ROUTES_UPDATE_REASON_REFRESH"
	ReasonPreview     UpdateReason = "ROUTES_UPDATE_REASON_PREVIEW"
)

// RefreshRequestData locates the vehicle on the route when a refresh is
// requested, plus EV parameters for EV-aware routes.
type RefreshRequestData struct {
	LegIndex           int
	RouteGeometryIndex int
	LegGeometryIndex   int
	EVData             map[string]string
}
