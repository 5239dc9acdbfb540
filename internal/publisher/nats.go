package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"route-refresh/internal/logger"
	"route-refresh/internal/refresh"
	"route-refresh/internal/route"
)

// conn is the subset of *nats.Conn used by the publisher.
type conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type NATSPublisher struct {
	nc      conn
	raw     *nats.Conn
	session string
	log     logger.Logger
	metrics PublisherMetrics
	now     func() time.Time
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, session string, log logger.Logger, m PublisherMetrics) (*NATSPublisher, error) {
	if log == nil {
		log = logger.Nop()
	}
	nc, err := nats.Connect(url,
		nats.Name("route-refresh"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := newPublisher(nc, session, log, m)
	p.raw = nc
	return p, nil
}

func newPublisher(nc conn, session string, log logger.Logger, m PublisherMetrics) *NATSPublisher {
	return &NATSPublisher{nc: nc, session: subjectToken(session), log: log, metrics: m, now: time.Now}
}

func (p *NATSPublisher) Close() {
	if p.raw != nil {
		_ = p.raw.Drain()
		p.raw.Close()
	}
}

// StateMessage is published on refresh.<session>.state.
type StateMessage struct {
	CycleID   string    `json:"cycleId,omitempty"`
	State     string    `json:"state"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RoutesMessage is published on refresh.<session>.routes after a refresh
// result was applied.
type RoutesMessage struct {
	CycleID   string                    `json:"cycleId,omitempty"`
	Success   bool                      `json:"success"`
	RouteIDs  []string                  `json:"routeIds"`
	Durations []float64                 `json:"durations"`
	Progress  refresh.RouteProgressData `json:"progress"`
	Timestamp time.Time                 `json:"timestamp"`
}

// RouteSetMessage is received on nav.<session>.routes.
type RouteSetMessage struct {
	Reason route.UpdateReason `json:"reason"`
	Routes []*route.Route     `json:"routes"`
}

func (p *NATSPublisher) StateSubject() string    { return fmt.Sprintf("refresh.%s.state", p.session) }
func (p *NATSPublisher) RoutesSubject() string   { return fmt.Sprintf("refresh.%s.routes", p.session) }
func (p *NATSPublisher) ProgressSubject() string { return fmt.Sprintf("trip.%s.progress", p.session) }
func (p *NATSPublisher) RouteSetSubject() string { return fmt.Sprintf("nav.%s.routes", p.session) }
func (p *NATSPublisher) EVDataSubject() string   { return fmt.Sprintf("ev.%s.data", p.session) }

func (p *NATSPublisher) PublishState(s refresh.StateResult) error {
	return p.publish(p.StateSubject(), StateMessage{
		CycleID:   s.CycleID,
		State:     s.State.String(),
		Message:   s.Message,
		Timestamp: p.now(),
	})
}

func (p *NATSPublisher) PublishRoutes(r refresh.RefresherResult) error {
	msg := RoutesMessage{
		CycleID:   r.CycleID,
		Success:   r.Success,
		RouteIDs:  make([]string, 0, len(r.Routes)),
		Durations: make([]float64, 0, len(r.Routes)),
		Progress:  r.Progress,
		Timestamp: p.now(),
	}
	for _, rt := range r.Routes {
		msg.RouteIDs = append(msg.RouteIDs, rt.ID())
		msg.Durations = append(msg.Durations, rt.Duration)
	}
	return p.publish(p.RoutesSubject(), msg)
}

// StateObserver publishes every refresh state transition.
func (p *NATSPublisher) StateObserver() refresh.StateObserver {
	return refresh.StateObserverFunc(func(s refresh.StateResult) {
		if err := p.PublishState(s); err != nil {
			p.log.Error("publish refresh state", "error", err)
		}
	})
}

// RoutesObserver publishes a summary of every applied refresh result.
func (p *NATSPublisher) RoutesObserver() refresh.RoutesObserver {
	return refresh.RoutesObserverFunc(func(r refresh.RefresherResult) {
		if err := p.PublishRoutes(r); err != nil {
			p.log.Error("publish refreshed routes", "error", err)
		}
	})
}

// SubscribeProgress delivers trip progress snapshots reported by the trip engine.
func (p *NATSPublisher) SubscribeProgress(fn func(refresh.RouteProgressData)) (*nats.Subscription, error) {
	return p.nc.Subscribe(p.ProgressSubject(), p.progressHandler(fn))
}

// SubscribeRouteSets delivers route sets set by the route requester.
func (p *NATSPublisher) SubscribeRouteSets(fn func(RouteSetMessage)) (*nats.Subscription, error) {
	return p.nc.Subscribe(p.RouteSetSubject(), p.routeSetHandler(fn))
}

// SubscribeEVData delivers dynamic EV parameters (charge level and similar)
// as flat string maps.
func (p *NATSPublisher) SubscribeEVData(fn func(map[string]string)) (*nats.Subscription, error) {
	return p.nc.Subscribe(p.EVDataSubject(), func(m *nats.Msg) {
		var data map[string]string
		if err := json.Unmarshal(m.Data, &data); err != nil {
			p.log.Warn("invalid ev data message", "subject", m.Subject, "error", err)
			return
		}
		fn(data)
	})
}

func (p *NATSPublisher) progressHandler(fn func(refresh.RouteProgressData)) nats.MsgHandler {
	return func(m *nats.Msg) {
		var data refresh.RouteProgressData
		if err := json.Unmarshal(m.Data, &data); err != nil {
			p.log.Warn("invalid progress message", "subject", m.Subject, "error", err)
			return
		}
		if data.LegIndex < 0 || data.LegGeometryIndex < 0 || data.RouteGeometryIndex < 0 {
			p.log.Warn("progress message with negative index dropped", "subject", m.Subject)
			return
		}
		fn(data)
	}
}

func (p *NATSPublisher) routeSetHandler(fn func(RouteSetMessage)) nats.MsgHandler {
	return func(m *nats.Msg) {
		var msg RouteSetMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			p.log.Warn("invalid route set message", "subject", m.Subject, "error", err)
			return
		}
		if msg.Reason == "" {
			msg.Reason = route.ReasonNew
		}
		for _, r := range msg.Routes {
			if r == nil {
				p.log.Warn("route set message with null route dropped", "subject", m.Subject)
				return
			}
		}
		fn(msg)
	}
}

func (p *NATSPublisher) publish(subject string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.log.Debug("nats publish", "subject", subject)
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
