package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"route-refresh/internal/logger"
	"route-refresh/internal/route"
)

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Info(msg string, _ ...interface{})  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...interface{})  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...interface{}) { l.add("error", msg) }
func (l *recordingLogger) Debug(msg string, _ ...interface{}) { l.add("debug", msg) }
func (l *recordingLogger) Fatal(msg string, _ ...interface{}) { l.add("fatal", msg) }
func (l *recordingLogger) With(...interface{}) logger.Logger  { return l }

func (l *recordingLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}

type staticProgress struct {
	data RouteProgressData
}

func (p staticProgress) GetProgressOrWait(context.Context) (RouteProgressData, error) {
	return p.data, nil
}

// fakeRouter answers per route id. Routes without a handler block until the
// request context ends.
type fakeRouter struct {
	mu       sync.Mutex
	handlers map[string]func(*route.Route, route.RefreshRequestData) (*route.Route, error)
	requests []route.RefreshRequestData
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{handlers: make(map[string]func(*route.Route, route.RefreshRequestData) (*route.Route, error))}
}

func (f *fakeRouter) on(id string, h func(*route.Route, route.RefreshRequestData) (*route.Route, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[id] = h
}

func (f *fakeRouter) RequestRefresh(ctx context.Context, r *route.Route, data route.RefreshRequestData) (*route.Route, error) {
	f.mu.Lock()
	f.requests = append(f.requests, data)
	h := f.handlers[r.ID()]
	f.mu.Unlock()
	if h == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return h(r, data)
}

type fakeMetrics struct {
	mu       sync.Mutex
	requests []string
	cycles   []string
	removals int
}

func (m *fakeMetrics) ObserveRequest(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, outcome)
}

func (m *fakeMetrics) ObserveCycle(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, outcome)
}

func (m *fakeMetrics) IncStaleDataRemovals() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removals++
}

func (m *fakeMetrics) cycleOutcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cycles...)
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func refreshableRoute(uuid string, index int) *route.Route {
	return &route.Route{
		ResponseUUID: uuid,
		Index:        index,
		Options:      route.RouteOptions{Profile: route.ProfileDrivingTraffic, EnableRefresh: true},
		Duration:     10,
		Legs: []*route.Leg{{
			Duration: 10,
			Annotation: &route.Annotation{
				Duration:          []float64{5, 5},
				Congestion:        []string{"low", "moderate"},
				CongestionNumeric: []int{10, 40},
			},
			Steps: []route.Step{{Geometry: make([]route.Point, 3)}, {Geometry: make([]route.Point, 1)}},
		}},
	}
}

// withCongestion returns a refreshed copy of r with new congestion values.
func withCongestion(r *route.Route, congestion ...string) *route.Route {
	return route.Refresh(r, 0, 0, []*route.Annotation{{Congestion: congestion}}, nil, nil)
}

func stateNames(results []StateResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.State.String()
		if r.Message != "" {
			out[i] = fmt.Sprintf("%s(%s)", out[i], r.Message)
		}
	}
	return out
}
