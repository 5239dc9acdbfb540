package main

import (
	"context"
	"database/sql"
	"io"
	"os/signal"
	"syscall"
	"time"

	"route-refresh/internal/config"
	"route-refresh/internal/db"
	"route-refresh/internal/ev"
	"route-refresh/internal/logger"
	"route-refresh/internal/metrics"
	"route-refresh/internal/publisher"
	"route-refresh/internal/refresh"
	"route-refresh/internal/route"
	"route-refresh/internal/router"
	"route-refresh/internal/session"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", logger.ConsoleWriter()).Fatal("config error", "error", err)
	}

	writers := []io.Writer{logger.ConsoleWriter()}
	if cfg.LogFile != "" {
		writers = append(writers, logger.FileWriter(cfg.LogFile))
	}
	log := logger.New(cfg.LogLevel, writers...).With("component", "route_refresh")

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	var refreshMetrics refresh.Metrics
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.RefreshInterval, cfg.RequestTimeout, cfg.StaleDataTimeout)
		refreshMetrics = mcol
		srv := mcol.Serve(cfg.MetricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sqlDB := openDatabase(ctx, cfg, log)
	if sqlDB != nil {
		defer sqlDB.Close()
	}

	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.SessionID, log, wrapPublisherMetrics(mcol))
	if err != nil {
		log.Fatal("nats error", "error", err)
	}
	defer pub.Close()

	// Refresh pipeline
	progress := refresh.NewProgressTracker()
	evData := ev.NewProvider()
	client := router.NewClient(cfg.RouterBaseURL, cfg.RouterAccessToken, cfg.RouterRatePerMin, log)
	refresher := refresh.NewRefresher(progress, evData, client, log, refreshMetrics)
	processor := refresh.NewResultProcessor(refresh.NewExpiringDataRemover(time.Now), time.Now, cfg.StaleDataTimeout, log, refreshMetrics)
	states := refresh.NewStateHolder()
	observers := refresh.NewObserversManager()

	sess := session.New(ctx, cfg.SessionID, progress, log)
	controller := refresh.NewController(sess, refresher, processor, states, observers, refresh.ControllerOptions{
		Interval:       cfg.RefreshInterval,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
		Metrics:        refreshMetrics,
	})
	sess.Attach(controller, processor)

	states.Register(pub.StateObserver())
	observers.Register(pub.RoutesObserver())
	sess.RegisterRoutesObserver(func(u session.RoutesUpdate) {
		if mcol != nil {
			mcol.ObserveRouteSet(string(u.Reason), len(u.Routes))
		}
		if sqlDB == nil {
			return
		}
		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err := db.SaveRouteSet(saveCtx, sqlDB, db.RouteSet{
			SessionID: cfg.SessionID,
			Version:   u.Version,
			Reason:    u.Reason,
			Routes:    u.Routes,
		})
		if err != nil {
			log.Error("route set not saved", "error", err)
		}
	})

	if _, err := pub.SubscribeProgress(sess.UpdateProgress); err != nil {
		log.Fatal("subscribe progress", "error", err)
	}
	if _, err := pub.SubscribeRouteSets(func(m publisher.RouteSetMessage) {
		sess.SetRoutes(m.Routes, m.Reason)
	}); err != nil {
		log.Fatal("subscribe route sets", "error", err)
	}
	if _, err := pub.SubscribeEVData(evData.Update); err != nil {
		log.Fatal("subscribe ev data", "error", err)
	}

	restoreRoutes(ctx, sqlDB, sess, log)

	// Block until context cancelled
	<-ctx.Done()
	sess.Close()
	states.UnregisterAll()
	observers.UnregisterAll()
	log.Info("shutdown complete")
}

// openDatabase returns nil when persistence is disabled or unreachable.
func openDatabase(ctx context.Context, cfg *config.Config, log logger.Logger) *sql.DB {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set, route sets are not persisted")
		return nil
	}
	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db open error", "error", err)
	}
	if err := db.Ping(ctx, sqlDB); err != nil {
		log.Error("db ping error, route sets are not persisted", "error", err)
		sqlDB.Close()
		return nil
	}
	if err := db.EnsureSchema(ctx, sqlDB); err != nil {
		log.Error("db schema error, route sets are not persisted", "error", err)
		sqlDB.Close()
		return nil
	}
	return sqlDB
}

func restoreRoutes(ctx context.Context, sqlDB *sql.DB, sess *session.Session, log logger.Logger) {
	if sqlDB == nil {
		return
	}
	rs, err := db.LoadRouteSet(ctx, sqlDB, sess.ID())
	if err != nil {
		log.Error("load route set", "error", err)
		return
	}
	if rs == nil || len(rs.Routes) == 0 {
		return
	}
	log.Info("restoring route set", "routes", len(rs.Routes), "saved_version", rs.Version, "updated_at", rs.UpdatedAt)
	sess.SetRoutes(rs.Routes, route.ReasonNew)
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()  { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc() { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
