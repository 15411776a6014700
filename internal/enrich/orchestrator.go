// Package enrich runs discovery and email inference across a batch of
// leads and aggregates the results.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadfinder/internal/cost"
	"github.com/sells-group/leadfinder/internal/credit"
	"github.com/sells-group/leadfinder/internal/discovery"
	"github.com/sells-group/leadfinder/internal/inference"
	"github.com/sells-group/leadfinder/internal/leadfinder"
	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/internal/telemetry"
)

// Confidence points per contributing source.
const (
	baseConfidence      = 50
	discoveryConfidence = 30
	inferenceConfidence = 20
)

// Discoverer runs a discovery job to completion.
type Discoverer interface {
	Search(ctx context.Context, query string, maxResults int, filters discovery.Filters) (*discovery.Result, error)
}

// EmailFinder infers an email for a domain.
type EmailFinder interface {
	FindAnyEmail(ctx context.Context, req inference.Request) (*model.EmailCandidate, error)
}

// LeadSearcher turns a query into leads.
type LeadSearcher interface {
	Search(ctx context.Context, q leadfinder.Query) ([]model.Lead, error)
}

// Orchestrator enriches leads. Every dependency is optional; Enrich
// refuses options that need a missing one.
type Orchestrator struct {
	discoverer Discoverer
	finder     EmailFinder
	searcher   LeadSearcher
	ledger     *credit.Ledger
	calc       *cost.Calculator
	validator  BulkValidator
	checks     map[string]func(context.Context) error
	usage      map[string]func(context.Context) (any, error)
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDiscoverer enables the discovery step.
func WithDiscoverer(d Discoverer) Option {
	return func(o *Orchestrator) { o.discoverer = d }
}

// WithEmailFinder enables the inference fallback.
func WithEmailFinder(f EmailFinder) Option {
	return func(o *Orchestrator) { o.finder = f }
}

// WithLeadSearcher enables SearchAndEnrich.
func WithLeadSearcher(s LeadSearcher) Option {
	return func(o *Orchestrator) { o.searcher = s }
}

// WithLedger charges inference attempts against user balances.
func WithLedger(l *credit.Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithCalculator overrides the default pricing.
func WithCalculator(c *cost.Calculator) Option {
	return func(o *Orchestrator) { o.calc = c }
}

// WithHealthCheck registers a named check reported by ServicesStatus.
func WithHealthCheck(name string, fn func(context.Context) error) Option {
	return func(o *Orchestrator) { o.checks[name] = fn }
}

// WithBulkValidator enables ValidateEmails.
func WithBulkValidator(v BulkValidator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// WithUsage registers a named provider account report returned by Usage.
func WithUsage(name string, fn func(context.Context) (any, error)) Option {
	return func(o *Orchestrator) { o.usage[name] = fn }
}

// New returns an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		calc:   cost.NewCalculator(cost.DefaultRates()),
		checks: make(map[string]func(context.Context) error),
		usage:  make(map[string]func(context.Context) (any, error)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// preflight rejects option sets that would fail identically for every lead.
func (o *Orchestrator) preflight(opts Options) error {
	if opts.IncludeDiscovery && o.discoverer == nil {
		return &model.ProviderUnavailableError{Provider: "discovery", Err: eris.New("no discovery provider configured")}
	}
	if opts.inferenceEnabled() {
		if o.finder == nil {
			return &model.ProviderUnavailableError{Provider: "inference", Err: eris.New("no inference provider configured")}
		}
		if o.ledger != nil && opts.UserID == "" {
			return eris.New("enrich: user id is required when credits are enforced")
		}
	}
	return nil
}

// leadOutcome is what one lead's pipeline contributes to the batch totals.
type leadOutcome struct {
	discoveryRan     bool
	discoveryUSD     float64
	inferenceCredits int
}

// Enrich runs every lead's pipeline concurrently and joins the results.
// A failing lead is degraded in place; only configuration problems fail
// the whole call.
func (o *Orchestrator) Enrich(ctx context.Context, leads []model.Lead, opts Options) (*model.EnrichmentResult, error) {
	opts = opts.withDefaults()
	if err := o.preflight(opts); err != nil {
		return nil, err
	}

	start := o.now()
	log := zap.L().With(zap.Int("leads", len(leads)))
	log.Info("enrich: batch started",
		zap.Bool("discovery", opts.IncludeDiscovery),
		zap.Bool("inference", opts.inferenceEnabled()),
	)

	enriched := make([]model.EnrichedLead, len(leads))
	outcomes := make([]leadOutcome, len(leads))

	var g errgroup.Group
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i, lead := range leads {
		g.Go(func() error {
			enriched[i], outcomes[i] = o.enrichLead(ctx, lead, opts)
			return nil
		})
	}
	_ = g.Wait()

	res := o.aggregate(enriched, outcomes)
	elapsed := o.now().Sub(start)
	res.ProcessingTimeMs = elapsed.Milliseconds()
	telemetry.BatchDuration.Observe(elapsed.Seconds())

	log.Info("enrich: batch complete",
		zap.Int("successful", res.SuccessfulEnrichments),
		zap.Int("emails", res.EmailsFound),
		zap.Int("discovery_jobs", res.DiscoveryJobsRun),
		zap.Float64("cost_usd", res.CostEstimate.TotalUSD),
		zap.Int64("elapsed_ms", res.ProcessingTimeMs),
	)
	return res, nil
}

func (o *Orchestrator) aggregate(leads []model.EnrichedLead, outcomes []leadOutcome) *model.EnrichmentResult {
	res := &model.EnrichmentResult{Leads: leads, TotalProcessed: len(leads)}
	for i, l := range leads {
		out := outcomes[i]
		switch {
		case l.Err != nil:
			telemetry.LeadsEnriched.WithLabelValues("failed").Inc()
		case len(l.EnrichmentSources) > 0:
			res.SuccessfulEnrichments++
			telemetry.LeadsEnriched.WithLabelValues("enriched").Inc()
		default:
			telemetry.LeadsEnriched.WithLabelValues("empty").Inc()
		}
		if out.discoveryRan {
			res.DiscoveryJobsRun++
		}
		res.EmailsFound += len(l.Emails)
		res.CostEstimate.DiscoveryUSD += out.discoveryUSD
		res.CostEstimate.InferenceCredits += out.inferenceCredits
	}
	res.CostEstimate.DiscoveryUSD = round2(res.CostEstimate.DiscoveryUSD)
	res.CostEstimate.InferenceUSD = o.calc.Inference(res.CostEstimate.InferenceCredits)
	res.CostEstimate.TotalUSD = round2(res.CostEstimate.DiscoveryUSD + res.CostEstimate.InferenceUSD)
	return res
}

// enrichLead runs discovery then, if no email turned up, inference.
func (o *Orchestrator) enrichLead(ctx context.Context, lead model.Lead, opts Options) (model.EnrichedLead, leadOutcome) {
	el := model.EnrichedLead{
		Lead:              lead,
		Contacts:          []model.ContactCandidate{},
		DecisionMakers:    []model.ContactCandidate{},
		Emails:            []model.EmailCandidate{},
		EnrichmentSources: []string{},
		DataConfidence:    baseConfidence,
		EnrichedAt:        o.now(),
	}
	var out leadOutcome
	log := zap.L().With(zap.String("lead", lead.Name), zap.String("domain", lead.Domain))

	if opts.IncludeDiscovery {
		if err := o.discover(ctx, &el, &out, opts); err != nil {
			log.Warn("enrich: discovery failed", zap.Error(err))
			el.Fail(err)
			return el, out
		}
	}

	if len(el.Emails) == 0 && opts.inferenceEnabled() {
		if err := o.infer(ctx, &el, &out, opts); err != nil {
			log.Warn("enrich: inference failed", zap.Error(err))
			el.Fail(err)
			return el, out
		}
	}

	el.Emails = filterConfidence(el.Emails, opts.MinConfidence)
	log.Debug("enrich: lead done",
		zap.Strings("sources", el.EnrichmentSources),
		zap.Int("confidence", el.DataConfidence),
	)
	return el, out
}

// discover runs one discovery job scoped to the lead's company. An error
// fails only this lead.
func (o *Orchestrator) discover(ctx context.Context, el *model.EnrichedLead, out *leadOutcome, opts Options) error {
	filters := discovery.Filters{
		CompanyName:   el.Name,
		Location:      el.Address,
		IncludeEmails: true,
		IncludePhones: true,
	}
	if len(opts.TargetTitles) > 0 {
		filters.JobTitles = opts.TargetTitles
		filters.Seniority = "c_level"
	}
	if el.Domain != "" {
		filters.Keywords = []string{model.DomainLabel(el.Domain)}
	}

	res, err := o.discoverer.Search(ctx, "", opts.MaxContactsPerLead, filters)
	if res != nil {
		out.discoveryRan = true
		el.DiscoveryJobID = res.Job.ID
	}
	if err != nil {
		return eris.Wrap(err, "enrich: discovery")
	}

	out.discoveryUSD = res.CostUSD
	el.Contacts = res.Contacts
	el.DecisionMakers = discovery.DecisionMakers(res.Contacts)
	el.AddSource(model.SourceDiscovery)
	el.DataConfidence += discoveryConfidence

	if len(res.Contacts) > 0 {
		first := res.Contacts[0]
		el.CompanySize = first.Company.Size
		el.CompanyIndustry = first.Company.Industry
		el.CompanyLinkedInURL = first.Company.LinkedInURL
	}
	for _, c := range res.Contacts {
		if c.Email == "" {
			continue
		}
		confidence := 75
		if c.EmailStatus == model.EmailVerified {
			confidence = 95
		}
		el.Emails = append(el.Emails, model.EmailCandidate{
			Email:      c.Email,
			Type:       model.ClassifyEmail(c.Email),
			Confidence: confidence,
			Status:     model.StatusValid,
			Source:     model.SourceDiscovery,
			FirstName:  c.FirstName,
			LastName:   c.LastName,
			Verified:   c.EmailStatus == model.EmailVerified,
		})
	}
	return nil
}

// infer charges the user, runs the waterfall, and refunds on a miss. Leads
// without a usable domain are skipped; a refusal is recorded, not retried.
func (o *Orchestrator) infer(ctx context.Context, el *model.EnrichedLead, out *leadOutcome, opts Options) error {
	if el.Domain == "" {
		el.Warnings = append(el.Warnings, "inference skipped: lead has no website domain")
		return nil
	}

	credits := o.calc.CreditsPerEmail()
	if o.ledger != nil {
		res, err := o.ledger.Deduct(ctx, opts.UserID, credits)
		if err != nil {
			return err
		}
		if !res.Success {
			el.CreditRefused = true
			el.Warnings = append(el.Warnings, model.ErrInsufficientCredits.Error())
			return nil
		}
	}

	req := inference.Request{Domain: el.Domain, CompanyName: el.Name}
	for _, dm := range el.DecisionMakers {
		if dm.FirstName != "" && dm.LastName != "" {
			req.FirstName, req.LastName = dm.FirstName, dm.LastName
			break
		}
	}

	found, err := o.finder.FindAnyEmail(ctx, req)
	if err != nil || found == nil {
		o.refund(ctx, opts.UserID, credits)
	}
	if errors.Is(err, model.ErrInvalidDomain) {
		el.Warnings = append(el.Warnings, err.Error())
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "enrich: inference")
	}
	if found == nil {
		return nil
	}

	out.inferenceCredits += credits
	el.Emails = append(el.Emails, *found)
	el.AddSource(model.SourceInference)
	el.DataConfidence += inferenceConfidence
	return nil
}

func (o *Orchestrator) refund(ctx context.Context, userID string, credits int) {
	if o.ledger == nil {
		return
	}
	if _, err := o.ledger.Add(context.WithoutCancel(ctx), userID, credits); err != nil {
		zap.L().Error("enrich: credit refund failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func filterConfidence(emails []model.EmailCandidate, floor int) []model.EmailCandidate {
	if floor <= 0 {
		return emails
	}
	kept := emails[:0]
	for _, e := range emails {
		if e.Confidence >= floor {
			kept = append(kept, e)
		}
	}
	return kept
}
