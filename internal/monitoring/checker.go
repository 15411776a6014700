package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/telemetry"
)

// DefaultInterval is used when NewChecker gets a non-positive interval.
const DefaultInterval = time.Minute

// Checker runs periodic health probes in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	last      *Snapshot
}

// NewChecker creates a background health checker.
func NewChecker(collector *Collector, alerter *Alerter, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap := c.collector.Collect(ctx)
	for name, s := range snap.Services {
		up := 0.0
		if s.OK {
			up = 1
		}
		telemetry.ServiceUp.WithLabelValues(name).Set(up)
	}

	alerts := c.alerter.Evaluate(c.last, snap)
	c.last = snap
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: health check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
