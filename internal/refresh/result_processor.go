package refresh

import (
	"sync"
	"time"

	"route-refresh/internal/logger"
)

// ResultProcessor decides which refresh results get published. Failed
// results are dropped until no success has been seen for staleTimeout; then
// the displayed routes are degraded once and the clock restarts.
type ResultProcessor struct {
	remover      *ExpiringDataRemover
	now          func() time.Time
	staleTimeout time.Duration
	log          logger.Logger
	metrics      Metrics

	mu          sync.Mutex
	lastRefresh time.Time
}

func NewResultProcessor(remover *ExpiringDataRemover, now func() time.Time, staleTimeout time.Duration, log logger.Logger, metrics Metrics) *ResultProcessor {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ResultProcessor{
		remover:      remover,
		now:          now,
		staleTimeout: staleTimeout,
		log:          log,
		metrics:      metrics,
		lastRefresh:  now(),
	}
}

// Reset restarts the stale data clock.
func (p *ResultProcessor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRefresh = p.now()
}

// Process returns the result to publish and whether there is one.
func (p *ResultProcessor) Process(result RefresherResult) (RefresherResult, bool) {
	out, publish, commit := p.Evaluate(result)
	commit()
	return out, publish
}

// Evaluate is Process without the side effect on the stale data clock: the
// clock only moves once commit is called. Callers that may still drop the
// result call commit after it has been applied.
func (p *ResultProcessor) Evaluate(result RefresherResult) (RefresherResult, bool, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	commit := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.lastRefresh = now
	}
	if result.Success {
		return result, true, commit
	}
	if now.Before(p.lastRefresh.Add(p.staleTimeout)) {
		return RefresherResult{}, false, func() {}
	}

	routes, changed := p.remover.RemoveExpiringData(result.Routes, result.Progress)
	if !changed {
		return RefresherResult{}, false, commit
	}
	p.log.Info("removed expiring data from routes that could not be refreshed", "routes", len(routes))
	if p.metrics != nil {
		p.metrics.IncStaleDataRemovals()
	}
	return RefresherResult{Success: false, Routes: routes, Progress: result.Progress}, true, commit
}
