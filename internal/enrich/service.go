package enrich

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadfinder/internal/inference"
	"github.com/sells-group/leadfinder/internal/leadfinder"
	"github.com/sells-group/leadfinder/internal/model"
)

// SearchAndEnrich finds leads for q and enriches them.
func (o *Orchestrator) SearchAndEnrich(ctx context.Context, q leadfinder.Query, opts Options) (*model.EnrichmentResult, error) {
	if o.searcher == nil {
		return nil, &model.ProviderUnavailableError{Provider: "search", Err: eris.New("no lead search provider configured")}
	}
	// Fail on bad options before paying for the search.
	if err := o.preflight(opts.withDefaults()); err != nil {
		return nil, err
	}
	leads, err := o.searcher.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return o.Enrich(ctx, leads, opts)
}

// FindEmail infers one address outside a batch. The user is charged up
// front and refunded on a miss; a refusal returns ErrInsufficientCredits.
func (o *Orchestrator) FindEmail(ctx context.Context, userID string, req inference.Request) (*model.EmailCandidate, error) {
	if o.finder == nil {
		return nil, &model.ProviderUnavailableError{Provider: "inference", Err: eris.New("no inference provider configured")}
	}
	credits := o.calc.CreditsPerEmail()
	if o.ledger != nil {
		if userID == "" {
			return nil, eris.New("enrich: user id is required when credits are enforced")
		}
		res, err := o.ledger.Deduct(ctx, userID, credits)
		if err != nil {
			return nil, err
		}
		if !res.Success {
			return nil, eris.Wrapf(model.ErrInsufficientCredits, "enrich: %d credits remaining", res.Remaining)
		}
	}

	found, err := o.finder.FindAnyEmail(ctx, req)
	if err != nil || found == nil {
		o.refund(ctx, userID, credits)
	}
	return found, err
}

// MaxBulkValidation caps the addresses accepted by one ValidateEmails call.
const MaxBulkValidation = 100

// BulkValidator checks a list of addresses.
type BulkValidator interface {
	ValidateAll(ctx context.Context, emails []string) ([]inference.Validation, error)
}

// ValidateEmails checks each address with the validation provider. The
// user is charged per address up front; addresses the provider could not
// check come back unknown and are refunded.
func (o *Orchestrator) ValidateEmails(ctx context.Context, userID string, emails []string) ([]inference.Validation, error) {
	if o.validator == nil {
		return nil, &model.ProviderUnavailableError{Provider: "address_validation", Err: eris.New("no validation provider configured")}
	}
	if len(emails) == 0 {
		return nil, eris.New("enrich: no addresses to validate")
	}
	if len(emails) > MaxBulkValidation {
		return nil, eris.Errorf("enrich: at most %d addresses per call, got %d", MaxBulkValidation, len(emails))
	}

	per := o.calc.CreditsPerEmail()
	if o.ledger != nil {
		if userID == "" {
			return nil, eris.New("enrich: user id is required when credits are enforced")
		}
		res, err := o.ledger.Deduct(ctx, userID, per*len(emails))
		if err != nil {
			return nil, err
		}
		if !res.Success {
			return nil, eris.Wrapf(model.ErrInsufficientCredits, "enrich: %d credits remaining", res.Remaining)
		}
	}

	out, err := o.validator.ValidateAll(ctx, emails)
	unchecked := len(emails) - len(out)
	for _, v := range out {
		if v.Status == model.StatusUnknown {
			unchecked++
		}
	}
	if unchecked > 0 {
		o.refund(ctx, userID, per*unchecked)
	}
	return out, err
}

// ProviderUsage is one entry of Usage.
type ProviderUsage struct {
	Provider string `json:"provider"`
	Usage    any    `json:"usage,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Usage asks every registered provider for its account usage, sorted by
// provider name. A failing provider is reported, not returned as an error.
func (o *Orchestrator) Usage(ctx context.Context) []ProviderUsage {
	out := make([]ProviderUsage, 0, len(o.usage))
	for name, fn := range o.usage {
		u := ProviderUsage{Provider: name}
		v, err := fn(ctx)
		if err != nil {
			u.Error = err.Error()
		} else {
			u.Usage = v
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// EstimateCost prices an Enrich call over leadCount leads, assuming every
// discovery job returns MaxContactsPerLead results and every lead needs
// one inferred email.
func (o *Orchestrator) EstimateCost(leadCount int, opts Options) model.CostEstimate {
	opts = opts.withDefaults()
	var est model.CostEstimate
	if opts.IncludeDiscovery {
		est.DiscoveryUSD = round2(float64(leadCount) * o.calc.Discovery(opts.MaxContactsPerLead))
	}
	if opts.inferenceEnabled() {
		est.InferenceCredits = leadCount * o.calc.CreditsPerEmail()
		est.InferenceUSD = o.calc.Inference(est.InferenceCredits)
	}
	est.TotalUSD = round2(est.DiscoveryUSD + est.InferenceUSD)
	return est
}

// ServiceStatus is one entry of ServicesStatus.
type ServiceStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ServicesStatus runs every registered health check, sorted by name.
func (o *Orchestrator) ServicesStatus(ctx context.Context) []ServiceStatus {
	out := make([]ServiceStatus, 0, len(o.checks))
	for name, check := range o.checks {
		st := ServiceStatus{Name: name, OK: true}
		if err := check(ctx); err != nil {
			st.OK = false
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
