// Package inference guesses a contact's email address for a domain by
// running an ordered waterfall of strategies against a format-lookup
// provider and an address validator.
package inference

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/internal/resilience"
	"github.com/sells-group/leadfinder/internal/telemetry"
)

// Request identifies the person and company to look up. Only Domain is
// required.
type Request struct {
	Domain      string
	FirstName   string
	LastName    string
	CompanyName string
}

// Engine runs the inference waterfall.
type Engine struct {
	formats    FormatLookup
	validator  AddressValidator
	breakers   *resilience.Breakers
	limiter    *rate.Limiter
	cfg        Config
	strategies []strategy
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default waterfall config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg.withDefaults() }
}

// WithBreakers shares a breaker registry with other components.
func WithBreakers(b *resilience.Breakers) Option {
	return func(e *Engine) { e.breakers = b }
}

// WithLimiter overrides the validation spacing limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// NewEngine returns an engine. Either provider may be nil, in which case
// it is treated as unavailable.
func NewEngine(formats FormatLookup, validator AddressValidator, opts ...Option) *Engine {
	e := &Engine{
		formats:   formats,
		validator: validator,
		cfg:       DefaultConfig(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.breakers == nil {
		e.breakers = resilience.NewBreakers(resilience.DefaultBreakerConfig())
	}
	if e.limiter == nil {
		e.limiter = rate.NewLimiter(rate.Every(e.cfg.ValidationInterval), 1)
	}
	e.strategies = e.cfg.strategies()
	return e
}

// Strategies lists the waterfall order.
func (e *Engine) Strategies() []string {
	out := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		out[i] = s.Name()
	}
	return out
}

// FindAnyEmail returns the first candidate the waterfall produces, or nil
// when nothing could be produced.
func (e *Engine) FindAnyEmail(ctx context.Context, req Request) (*model.EmailCandidate, error) {
	domain, err := model.CleanDomain(req.Domain)
	if err != nil {
		return nil, err
	}
	a := &attempt{
		engine:      e,
		domain:      domain,
		first:       NormalizeName(req.FirstName),
		last:        NormalizeName(req.LastName),
		companyName: req.CompanyName,
	}

	for _, s := range e.strategies {
		c, err := s.Find(ctx, a)
		if err != nil {
			return nil, eris.Wrapf(err, "inference: %s for %s", s.Name(), domain)
		}
		if c == nil {
			continue
		}
		c.Source = model.SourceInference
		c.Type = model.ClassifyEmail(c.Email)
		telemetry.InferenceResults.WithLabelValues(s.Name()).Inc()
		zap.L().Debug("inference: found email",
			zap.String("domain", domain),
			zap.String("strategy", s.Name()),
			zap.Int("confidence", c.Confidence),
		)
		return c, nil
	}

	telemetry.InferenceResults.WithLabelValues("none").Inc()
	return nil, nil
}

// ValidateAll validates each address in turn, spaced by the validation
// limiter. Addresses the provider could not check are returned with
// status unknown.
func (e *Engine) ValidateAll(ctx context.Context, emails []string) ([]Validation, error) {
	if e.validator == nil {
		return nil, &model.ProviderUnavailableError{Provider: "address_validation"}
	}
	out := make([]Validation, 0, len(emails))
	for _, email := range emails {
		a := &attempt{engine: e}
		v, err := a.validate(ctx, email)
		if err != nil {
			return out, eris.Wrap(err, "inference: validate all")
		}
		if v == nil {
			v = &Validation{Email: email, Status: model.StatusUnknown}
		}
		out = append(out, *v)
	}
	return out, nil
}

// Credits reports the validator's remaining balance when it exposes one.
func (e *Engine) Credits(ctx context.Context) (int, error) {
	cr, ok := e.validator.(CreditReporter)
	if !ok {
		return 0, &model.ProviderUnavailableError{Provider: "address_validation"}
	}
	return cr.Credits(ctx)
}

// Available reports whether a validator is configured and its breaker is
// not open.
func (e *Engine) Available() bool {
	return e.validator != nil && e.breakers.Get("address_validation").State() != resilience.BreakerOpen
}

func (e *Engine) observeValidation(status string) {
	telemetry.ValidationCalls.WithLabelValues(status).Inc()
}
