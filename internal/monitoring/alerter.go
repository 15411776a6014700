package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertServiceDown      AlertType = "service_down"
	AlertServiceRecovered AlertType = "service_recovered"
	AlertBreakerOpen      AlertType = "breaker_open"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns snapshot transitions into alerts and delivers them via
// webhook.
type Alerter struct {
	webhookURL string
	client     *http.Client
}

// NewAlerter creates an Alerter. An empty webhookURL disables delivery.
func NewAlerter(webhookURL string) *Alerter {
	return &Alerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate compares cur against prev and returns alerts for services that
// went down or came back, and for breakers that just opened. A nil prev
// treats every service as previously healthy and every breaker as closed.
func (a *Alerter) Evaluate(prev, cur *Snapshot) []Alert {
	var alerts []Alert

	names := make([]string, 0, len(cur.Services))
	for name := range cur.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := cur.Services[name]
		wasOK := true
		if prev != nil {
			if p, ok := prev.Services[name]; ok {
				wasOK = p.OK
			}
		}
		switch {
		case wasOK && !s.OK:
			alerts = append(alerts, Alert{
				Type:      AlertServiceDown,
				Severity:  "high",
				Message:   fmt.Sprintf("Service %s is failing health checks: %s", name, s.Error),
				Details:   map[string]any{"service": name, "error": s.Error},
				Timestamp: cur.At,
			})
		case !wasOK && s.OK:
			alerts = append(alerts, Alert{
				Type:      AlertServiceRecovered,
				Severity:  "info",
				Message:   fmt.Sprintf("Service %s recovered", name),
				Details:   map[string]any{"service": name},
				Timestamp: cur.At,
			})
		}
	}

	breakers := make([]string, 0, len(cur.Breakers))
	for name := range cur.Breakers {
		breakers = append(breakers, name)
	}
	sort.Strings(breakers)

	for _, name := range breakers {
		if cur.Breakers[name] != resilience.BreakerOpen {
			continue
		}
		if prev != nil && prev.Breakers[name] == resilience.BreakerOpen {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      AlertBreakerOpen,
			Severity:  "medium",
			Message:   fmt.Sprintf("Circuit breaker %s opened; calls are short-circuited", name),
			Details:   map[string]any{"breaker": name},
			Timestamp: cur.At,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.webhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
