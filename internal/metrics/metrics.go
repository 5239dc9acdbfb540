package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"route-refresh/internal/logger"
)

type Collector struct {
	reg *prometheus.Registry

	Cycles            *prometheus.CounterVec // outcome label
	Requests          *prometheus.CounterVec // outcome label
	StaleDataRemovals prometheus.Counter

	CycleDuration   prometheus.Histogram
	RequestDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	RouteSetUpdates *prometheus.CounterVec // reason label
	LiveRoutes      prometheus.Gauge

	RefreshInterval  prometheus.Gauge // seconds
	RequestTimeout   prometheus.Gauge // seconds
	StaleDataTimeout prometheus.Gauge // seconds
}

func NewCollector(refreshInterval, requestTimeout, staleDataTimeout time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "route_refresh_cycles_total",
			Help: "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "route_refresh_requests_total",
			Help: "Per route refresh requests by outcome.",
		}, []string{"outcome"}),
		StaleDataRemovals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "route_refresh_stale_data_removals_total",
			Help: "Times expiring data was removed from routes that could not be refreshed.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "route_refresh_cycle_duration_seconds",
			Help:    "Duration of a full refresh cycle.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "route_refresh_request_duration_seconds",
			Help:    "Duration of a single route refresh request.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "route_refresh_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "route_refresh_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "route_refresh_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		RouteSetUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "route_refresh_route_set_updates_total",
			Help: "Live route set updates by reason.",
		}, []string{"reason"}),
		LiveRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "route_refresh_live_routes",
			Help: "Number of routes in the live route set.",
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "route_refresh_interval_seconds",
			Help: "Refresh interval in seconds.",
		}),
		RequestTimeout: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "route_refresh_request_timeout_seconds",
			Help: "Per route request timeout in seconds.",
		}),
		StaleDataTimeout: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "route_refresh_stale_data_timeout_seconds",
			Help: "Time without a successful refresh before expiring data is removed.",
		}),
	}

	reg.MustRegister(
		c.Cycles, c.Requests, c.StaleDataRemovals,
		c.CycleDuration, c.RequestDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.RouteSetUpdates, c.LiveRoutes,
		c.RefreshInterval, c.RequestTimeout, c.StaleDataTimeout,
	)

	c.RefreshInterval.Set(refreshInterval.Seconds())
	c.RequestTimeout.Set(requestTimeout.Seconds())
	c.StaleDataTimeout.Set(staleDataTimeout.Seconds())

	return c
}

// ObserveRequest, ObserveCycle and IncStaleDataRemovals make the collector
// usable as refresh.Metrics.
func (c *Collector) ObserveRequest(outcome string, d time.Duration) {
	c.Requests.WithLabelValues(outcome).Inc()
	if d > 0 {
		c.RequestDuration.Observe(d.Seconds())
	}
}

func (c *Collector) ObserveCycle(outcome string, d time.Duration) {
	c.Cycles.WithLabelValues(outcome).Inc()
	c.CycleDuration.Observe(d.Seconds())
}

func (c *Collector) IncStaleDataRemovals() { c.StaleDataRemovals.Inc() }

func (c *Collector) ObserveRouteSet(reason string, routes int) {
	c.RouteSetUpdates.WithLabelValues(reason).Inc()
	c.LiveRoutes.Set(float64(routes))
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	log.Info("metrics listening", "addr", addr)
	return srv
}
