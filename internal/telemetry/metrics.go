// Package telemetry holds the Prometheus collectors for the pipeline.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	DiscoveryJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadfinder_discovery_jobs_total",
		Help: "Discovery jobs by final status",
	}, []string{"status"})
	DiscoveryPolls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadfinder_discovery_polls_total",
		Help: "Discovery status polls issued",
	})
	InferenceResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadfinder_inference_results_total",
		Help: "Inference calls by winning strategy (none when nothing was found)",
	}, []string{"strategy"})
	ValidationCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadfinder_validation_calls_total",
		Help: "Address validation calls by returned status",
	}, []string{"status"})
	CreditDeductions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadfinder_credit_deductions_total",
		Help: "Credit deductions by outcome",
	}, []string{"outcome"})
	LeadsEnriched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadfinder_leads_enriched_total",
		Help: "Leads processed by outcome",
	}, []string{"outcome"})
	ServiceUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "leadfinder_service_up",
		Help: "Last health probe per provider (1 healthy, 0 failing)",
	}, []string{"service"})
	BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leadfinder_batch_duration_seconds",
		Help:    "Wall time of enrichment batches",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)

// Handler registers the collectors once and returns the /metrics handler.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			DiscoveryJobs,
			DiscoveryPolls,
			InferenceResults,
			ValidationCalls,
			CreditDeductions,
			LeadsEnriched,
			ServiceUp,
			BatchDuration,
		)
	})
	return promhttp.Handler()
}
