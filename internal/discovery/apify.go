package discovery

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/internal/resilience"
	"github.com/sells-group/leadfinder/pkg/apify"
)

// DefaultActorID is the people-scraper actor run for each job.
const DefaultActorID = "code_crafter~apollo-io-scraper"

// ApifyProvider runs discovery jobs as Apify actor runs.
type ApifyProvider struct {
	client  apify.Client
	actorID string
}

// NewApifyProvider returns a provider that starts actorID runs.
func NewApifyProvider(client apify.Client, actorID string) *ApifyProvider {
	if actorID == "" {
		actorID = DefaultActorID
	}
	return &ApifyProvider{client: client, actorID: actorID}
}

type actorInput struct {
	URL                 string     `json:"url"`
	MaxResults          int        `json:"maxResults"`
	IncludeEmails       bool       `json:"includeEmails"`
	IncludePhoneNumbers bool       `json:"includePhoneNumbers"`
	ProxyConfiguration  proxyInput `json:"proxyConfiguration"`
}

type proxyInput struct {
	UseApifyProxy bool `json:"useApifyProxy"`
}

// Name implements JobProvider.
func (p *ApifyProvider) Name() string { return "apify" }

// Submit implements JobProvider.
func (p *ApifyProvider) Submit(ctx context.Context, spec JobSpec) (string, error) {
	in := actorInput{
		URL:                 BuildPeopleSearchURL(spec.Query, spec.MaxResults, spec.Filters),
		MaxResults:          spec.MaxResults,
		IncludeEmails:       spec.Filters.IncludeEmails,
		IncludePhoneNumbers: spec.Filters.IncludePhones,
		ProxyConfiguration:  proxyInput{UseApifyProxy: true},
	}
	run, err := p.client.StartRun(ctx, p.actorID, in)
	if err != nil {
		return "", classify(err)
	}
	return run.ID, nil
}

// Status implements JobProvider.
func (p *ApifyProvider) Status(ctx context.Context, jobID string) (JobState, error) {
	run, err := p.client.GetRun(ctx, jobID)
	if err != nil {
		return JobState{}, classify(err)
	}
	return JobState{Status: runStatus(run.Status), DatasetRef: run.DefaultDatasetID}, nil
}

// Results implements JobProvider.
func (p *ApifyProvider) Results(ctx context.Context, job model.DiscoveryJob) ([]RawContact, error) {
	dataset := job.DatasetRef
	if dataset == "" {
		run, err := p.client.GetRun(ctx, job.ID)
		if err != nil {
			return nil, classify(err)
		}
		dataset = run.DefaultDatasetID
	}
	items, err := p.client.DatasetItems(ctx, dataset)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]RawContact, len(items))
	for i, it := range items {
		out[i] = RawContact(it)
	}
	return out, nil
}

// Cancel implements JobProvider.
func (p *ApifyProvider) Cancel(ctx context.Context, jobID string) error {
	_, err := p.client.AbortRun(ctx, jobID)
	return classify(err)
}

// Usage reports the account behind the API token.
func (p *ApifyProvider) Usage(ctx context.Context) (*apify.User, error) {
	u, err := p.client.Me(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

func runStatus(s string) model.JobStatus {
	switch s {
	case apify.StatusReady:
		return model.JobQueued
	case apify.StatusSucceeded:
		return model.JobSucceeded
	case apify.StatusFailed:
		return model.JobFailed
	case apify.StatusAborted:
		return model.JobAborted
	case apify.StatusTimedOut:
		return model.JobTimedOut
	default:
		// RUNNING, ABORTING and TIMING-OUT are still in flight.
		return model.JobRunning
	}
}

// classify tags retryable HTTP failures and maps 429 and auth errors onto
// the shared error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *apify.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return resilience.NewTransientError(eris.Wrap(model.ErrRateLimited, err.Error()), apiErr.StatusCode)
	case resilience.IsTransientHTTPStatus(apiErr.StatusCode):
		return resilience.NewTransientError(err, apiErr.StatusCode)
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return &model.ProviderUnavailableError{Provider: "apify", Err: err}
	}
	return err
}
