package model

// CostEstimate is the spend attributed to one enrichment call.
type CostEstimate struct {
	DiscoveryUSD     float64 `json:"discovery_usd"`
	InferenceCredits int     `json:"inference_credits"`
	InferenceUSD     float64 `json:"inference_usd"`
	TotalUSD         float64 `json:"total_usd"`
}

// EnrichmentResult is the aggregate returned for a batch.
type EnrichmentResult struct {
	Leads                 []EnrichedLead `json:"leads"`
	TotalProcessed        int            `json:"total_processed"`
	SuccessfulEnrichments int            `json:"successful_enrichments"`
	DiscoveryJobsRun      int            `json:"discovery_jobs_run"`
	EmailsFound           int            `json:"emails_found"`
	CostEstimate          CostEstimate   `json:"cost_estimate"`
	ProcessingTimeMs      int64          `json:"processing_time_ms"`
}

// Failed returns the leads that carry a per-lead error.
func (r *EnrichmentResult) Failed() []EnrichedLead {
	var out []EnrichedLead
	for _, l := range r.Leads {
		if l.Err != nil {
			out = append(out, l)
		}
	}
	return out
}
