package ev

import (
	"maps"
	"sync"

	"route-refresh/internal/route"
)

// EngineElectric is the engine type of routes requested for an EV.
const EngineElectric = "electric"

// Provider builds the EV parameters of refresh requests: the EV parameters the
// route was requested with, overridden by the latest values reported by the
// vehicle (charge level, auxiliary consumption and so on).
type Provider struct {
	mu      sync.RWMutex
	dynamic map[string]string
}

func NewProvider() *Provider {
	return &Provider{dynamic: make(map[string]string)}
}

// Update merges data into the dynamic values. An empty value removes the key.
func (p *Provider) Update(data map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range data {
		if v == "" {
			delete(p.dynamic, k)
			continue
		}
		p.dynamic[k] = v
	}
}

// Get returns nil for routes that were not requested for an electric engine.
func (p *Provider) Get(opts route.RouteOptions) map[string]string {
	if opts.EngineType != EngineElectric {
		return nil
	}
	out := make(map[string]string, len(opts.EVParams)+1)
	maps.Copy(out, opts.EVParams)
	p.mu.RLock()
	maps.Copy(out, p.dynamic)
	p.mu.RUnlock()
	out["engine"] = EngineElectric
	return out
}
