package router

import "route-refresh/internal/route"

// refreshResponse is the body of a directions-refresh response. Legs start at
// the leg index of the request; arrays and geometry indices of the first leg
// start at the requested geometry index.
type refreshResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Route   struct {
		Legs []legDTO `json:"legs"`
	} `json:"route"`
}

type legDTO struct {
	Annotation *annotationDTO `json:"annotation,omitempty"`
	Incidents  []incidentDTO  `json:"incidents,omitempty"`
	Closures   []closureDTO   `json:"closures,omitempty"`
}

type annotationDTO struct {
	Duration          []float64 `json:"duration,omitempty"`
	Distance          []float64 `json:"distance,omitempty"`
	Speed             []float64 `json:"speed,omitempty"`
	Congestion        []string  `json:"congestion,omitempty"`
	CongestionNumeric []*int    `json:"congestion_numeric,omitempty"`
}

type incidentDTO struct {
	ID                 string `json:"id"`
	Type               string `json:"type,omitempty"`
	Description        string `json:"description,omitempty"`
	GeometryIndexStart int    `json:"geometry_index_start"`
	GeometryIndexEnd   int    `json:"geometry_index_end"`
	EndTime            string `json:"end_time,omitempty"`
}

type closureDTO struct {
	GeometryIndexStart int `json:"geometry_index_start"`
	GeometryIndexEnd   int `json:"geometry_index_end"`
}

// toAnnotation converts a leg annotation and shifts its arrays right by
// offset so that slot i lines up with slot i of the full leg.
func (a *annotationDTO) toAnnotation(offset int) *route.Annotation {
	if a == nil {
		return nil
	}
	out := &route.Annotation{
		Duration:   shift(a.Duration, offset),
		Distance:   shift(a.Distance, offset),
		Speed:      shift(a.Speed, offset),
		Congestion: shift(a.Congestion, offset),
	}
	if a.CongestionNumeric != nil {
		numeric := make([]int, len(a.CongestionNumeric))
		for i, v := range a.CongestionNumeric {
			if v == nil {
				numeric[i] = route.CongestionNumericUnknown
				continue
			}
			numeric[i] = *v
		}
		out.CongestionNumeric = shift(numeric, offset)
	}
	return out
}

// shift prefixes values with offset zero slots. The prefix is never used:
// merging keeps the old values before the splice point.
func shift[T any](values []T, offset int) []T {
	if values == nil || offset <= 0 {
		return values
	}
	out := make([]T, offset+len(values))
	copy(out[offset:], values)
	return out
}

func (i incidentDTO) toIncident() route.Incident {
	return route.Incident{
		ID:                 i.ID,
		Type:               i.Type,
		Description:        i.Description,
		GeometryIndexStart: i.GeometryIndexStart,
		GeometryIndexEnd:   i.GeometryIndexEnd,
		EndTime:            i.EndTime,
	}
}

// perLeg spreads the response legs over absolute leg indices of a route with
// legCount legs. Indices before legIndex stay nil.
func (r *refreshResponse) perLeg(legCount, legIndex, legGeometryIndex int) ([]*route.Annotation, [][]route.Incident, [][]route.Closure) {
	annotations := make([]*route.Annotation, legCount)
	incidents := make([][]route.Incident, legCount)
	closures := make([][]route.Closure, legCount)
	for k, leg := range r.Route.Legs {
		i := legIndex + k
		if i >= legCount {
			break
		}
		offset := 0
		if k == 0 {
			offset = legGeometryIndex
		}
		annotations[i] = leg.Annotation.toAnnotation(offset)
		incidents[i] = make([]route.Incident, 0, len(leg.Incidents))
		for _, inc := range leg.Incidents {
			incidents[i] = append(incidents[i], inc.toIncident())
		}
		closures[i] = make([]route.Closure, 0, len(leg.Closures))
		for _, c := range leg.Closures {
			closures[i] = append(closures[i], route.Closure{GeometryIndexStart: c.GeometryIndexStart, GeometryIndexEnd: c.GeometryIndexEnd})
		}
	}
	return annotations, incidents, closures
}
