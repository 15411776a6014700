// Package monitoring probes provider health in the background and alerts
// on state changes.
package monitoring

import (
	"context"
	"time"

	"github.com/sells-group/leadfinder/internal/enrich"
	"github.com/sells-group/leadfinder/internal/resilience"
)

// Prober reports the health of every configured provider.
type Prober interface {
	ServicesStatus(ctx context.Context) []enrich.ServiceStatus
}

// Snapshot is one round of health probes.
type Snapshot struct {
	Services map[string]enrich.ServiceStatus
	Breakers map[string]resilience.BreakerState
	At       time.Time
}

// Collector gathers Snapshots from a Prober and an optional breaker
// registry.
type Collector struct {
	prober   Prober
	breakers *resilience.Breakers
	now      func() time.Time
}

// NewCollector creates a Collector. breakers may be nil.
func NewCollector(prober Prober, breakers *resilience.Breakers) *Collector {
	return &Collector{prober: prober, breakers: breakers, now: time.Now}
}

// Collect runs every probe once.
func (c *Collector) Collect(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Services: make(map[string]enrich.ServiceStatus),
		Breakers: make(map[string]resilience.BreakerState),
		At:       c.now().UTC(),
	}
	for _, s := range c.prober.ServicesStatus(ctx) {
		snap.Services[s.Name] = s
	}
	if c.breakers != nil {
		snap.Breakers = c.breakers.States()
	}
	return snap
}
