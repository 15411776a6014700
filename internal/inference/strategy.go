package inference

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/internal/resilience"
)

// Strategy names accepted in Config.Strategies.
const (
	StrategyDominantPattern   = "dominant-pattern"
	StrategyFallbackTemplates = "fallback-templates"
	StrategyGenericMailbox    = "generic-mailbox"
)

// Fixed scores for candidates accepted without validation.
const (
	highTierConfidence       = 90
	highAlternateConfidence  = 85
	genericHighConfidence    = 85
	genericConfidence        = 70
	genericUnknownConfidence = 60
)

// strategy is one step of the inference waterfall. It returns nil when it
// produced nothing; a non-nil error aborts the waterfall.
type strategy interface {
	Name() string
	Find(ctx context.Context, a *attempt) (*model.EmailCandidate, error)
}

// attempt carries one FindAnyEmail call through the strategies.
type attempt struct {
	engine      *Engine
	domain      string
	first, last string
	companyName string

	looked    bool
	format    *Format
	formatErr error
}

func (a *attempt) hasName() bool {
	return a.first != "" && a.last != ""
}

// lookupFormat asks the format provider once per call.
func (a *attempt) lookupFormat(ctx context.Context) (*Format, error) {
	if a.looked {
		return a.format, a.formatErr
	}
	a.looked = true
	e := a.engine
	if e.formats == nil {
		a.formatErr = &model.ProviderUnavailableError{Provider: "format_lookup"}
		return nil, a.formatErr
	}
	a.format, a.formatErr = resilience.Call(ctx, e.breakers.Get("format_lookup"), func(ctx context.Context) (*Format, error) {
		return e.formats.GuessFormat(ctx, a.domain, a.companyName)
	})
	if a.formatErr != nil {
		zap.L().Debug("inference: format lookup unavailable",
			zap.String("domain", a.domain),
			zap.Error(a.formatErr),
		)
	}
	return a.format, a.formatErr
}

// validate checks one address. Provider failures come back as a nil
// verdict; only context errors are returned.
func (a *attempt) validate(ctx context.Context, email string) (*Validation, error) {
	e := a.engine
	if e.validator == nil {
		return nil, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	v, err := resilience.Call(ctx, e.breakers.Get("address_validation"), func(ctx context.Context) (*Validation, error) {
		return e.validator.Validate(ctx, email)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.observeValidation("error")
		zap.L().Debug("inference: validation failed", zap.String("email", email), zap.Error(err))
		return nil, nil
	}
	e.observeValidation(string(v.Status))
	return v, nil
}

func (a *attempt) candidate(email string, confidence int, status model.ValidationStatus, verified bool) *model.EmailCandidate {
	return &model.EmailCandidate{
		Email:      email,
		Confidence: model.ClampConfidence(confidence),
		Status:     status,
		FirstName:  a.first,
		LastName:   a.last,
		Verified:   verified,
	}
}

// tryValidated returns a candidate when email validates as valid or
// catch-all.
func (a *attempt) tryValidated(ctx context.Context, email string) (*model.EmailCandidate, error) {
	v, err := a.validate(ctx, email)
	if err != nil || v == nil || !v.Status.Accepted() {
		return nil, err
	}
	return a.candidate(email, v.Status.Confidence(), v.Status, true), nil
}

type dominantPattern struct{}

func (dominantPattern) Name() string { return StrategyDominantPattern }

func (dominantPattern) Find(ctx context.Context, a *attempt) (*model.EmailCandidate, error) {
	if !a.hasName() {
		return nil, nil
	}
	f, err := a.lookupFormat(ctx)
	if err != nil || !f.HasPattern() {
		return nil, nil
	}
	email := BuildAddress(f.Pattern, a.first, a.last, a.domain)
	if f.Tier == TierHigh {
		return a.candidate(email, highTierConfidence, model.StatusUnknown, false), nil
	}
	c, err := a.tryValidated(ctx, email)
	if c != nil || err != nil {
		return c, err
	}
	for _, alt := range f.Alternates {
		email := BuildAddress(alt.Pattern, a.first, a.last, a.domain)
		if alt.Tier == TierHigh {
			return a.candidate(email, highAlternateConfidence, model.StatusUnknown, false), nil
		}
	}
	return nil, nil
}

type fallbackTemplates struct {
	patterns []string
}

func (fallbackTemplates) Name() string { return StrategyFallbackTemplates }

func (s fallbackTemplates) Find(ctx context.Context, a *attempt) (*model.EmailCandidate, error) {
	if !a.hasName() {
		return nil, nil
	}
	// Only when the format provider gave us nothing to go on.
	if f, err := a.lookupFormat(ctx); err == nil && f.HasPattern() {
		return nil, nil
	}
	for _, p := range s.patterns {
		c, err := a.tryValidated(ctx, BuildAddress(p, a.first, a.last, a.domain))
		if c != nil || err != nil {
			return c, err
		}
	}
	return nil, nil
}

type genericMailbox struct {
	known   []string
	unknown []string
}

func (genericMailbox) Name() string { return StrategyGenericMailbox }

func (s genericMailbox) Find(ctx context.Context, a *attempt) (*model.EmailCandidate, error) {
	boxes, confidence := s.unknown, genericUnknownConfidence
	if f, err := a.lookupFormat(ctx); err == nil && f.HasPattern() {
		boxes, confidence = s.known, genericConfidence
		if f.Tier == TierHigh {
			confidence = genericHighConfidence
		}
	}
	var best *model.EmailCandidate
	for _, box := range boxes {
		c := a.candidate(box+"@"+a.domain, confidence, model.StatusUnknown, false)
		if best == nil || c.Confidence > best.Confidence {
			best = c
		}
	}
	if best != nil {
		best.FirstName, best.LastName = "", ""
	}
	return best, nil
}
