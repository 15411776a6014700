// Package model holds the shared types passed between search, discovery,
// inference and enrichment.
package model

import "time"

// Lead is a business returned by the search step.
type Lead struct {
	ExternalID      string  `json:"external_id"`
	Name            string  `json:"name"`
	Website         string  `json:"website,omitempty"`
	Domain          string  `json:"domain,omitempty"`
	Address         string  `json:"address,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	Category        string  `json:"category,omitempty"`
	Latitude        float64 `json:"latitude,omitempty"`
	Longitude       float64 `json:"longitude,omitempty"`
	Rating          float64 `json:"rating,omitempty"`
	UserRatingCount int     `json:"user_rating_count,omitempty"`
	Source          string  `json:"source,omitempty"`
}

// Source names recorded in EnrichedLead.EnrichmentSources.
const (
	SourceDiscovery = "discovery"
	SourceInference = "inference"
)

// EnrichedLead is a Lead plus everything the enrichment pass attached to it.
// The embedded Lead is never modified.
type EnrichedLead struct {
	Lead

	Contacts          []ContactCandidate `json:"contacts"`
	DecisionMakers    []ContactCandidate `json:"decision_makers"`
	Emails            []EmailCandidate   `json:"emails"`
	EnrichmentSources []string           `json:"enrichment_sources"`
	DataConfidence    int                `json:"data_confidence"`
	EnrichedAt        time.Time          `json:"enriched_at"`

	CompanySize        string `json:"company_size,omitempty"`
	CompanyIndustry    string `json:"company_industry,omitempty"`
	CompanyLinkedInURL string `json:"company_linkedin_url,omitempty"`

	// DiscoveryJobID is set when a discovery job reached a terminal state.
	DiscoveryJobID string `json:"discovery_job_id,omitempty"`
	// CreditRefused is set when inference was skipped for lack of credits.
	CreditRefused bool `json:"credit_refused,omitempty"`
	// Warnings lists steps that were skipped without failing the lead.
	Warnings []string `json:"warnings,omitempty"`

	// Err is the failure that degraded this lead; FailureReason is its
	// message for serialized output.
	Err           error  `json:"-"`
	FailureReason string `json:"error,omitempty"`
}

// AddSource appends src unless it is already present.
func (e *EnrichedLead) AddSource(src string) {
	for _, s := range e.EnrichmentSources {
		if s == src {
			return
		}
	}
	e.EnrichmentSources = append(e.EnrichmentSources, src)
}

// HasSource reports whether src contributed to this lead.
func (e *EnrichedLead) HasSource(src string) bool {
	for _, s := range e.EnrichmentSources {
		if s == src {
			return true
		}
	}
	return false
}

// Fail degrades the lead after an error: no sources and zero confidence.
func (e *EnrichedLead) Fail(err error) {
	e.Err = err
	e.FailureReason = err.Error()
	e.EnrichmentSources = []string{}
	e.DataConfidence = 0
}
