package inference

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/internal/resilience"
	"github.com/sells-group/leadfinder/pkg/zerobounce"
)

// ZeroBounce adapts the ZeroBounce client to FormatLookup and
// AddressValidator.
type ZeroBounce struct {
	client zerobounce.Client
	// IPAddress is forwarded with validation requests when set.
	IPAddress string
}

// NewZeroBounce wraps client.
func NewZeroBounce(client zerobounce.Client) *ZeroBounce {
	return &ZeroBounce{client: client}
}

// GuessFormat implements FormatLookup.
func (z *ZeroBounce) GuessFormat(ctx context.Context, domain, companyName string) (*Format, error) {
	resp, err := z.client.GuessFormat(ctx, domain, companyName)
	if err != nil {
		return nil, classify(err)
	}
	f := &Format{
		Pattern:     strings.ToLower(strings.TrimSpace(resp.Format)),
		Tier:        parseTier(resp.Confidence),
		CompanyName: resp.CompanyName,
	}
	for _, alt := range resp.OtherDomainFormats {
		if alt.Format == "" {
			continue
		}
		f.Alternates = append(f.Alternates, Alternate{
			Pattern: strings.ToLower(strings.TrimSpace(alt.Format)),
			Tier:    parseTier(alt.Confidence),
		})
	}
	return f, nil
}

// Validate implements AddressValidator.
func (z *ZeroBounce) Validate(ctx context.Context, email string) (*Validation, error) {
	resp, err := z.client.Validate(ctx, email, z.IPAddress)
	if err != nil {
		return nil, classify(err)
	}
	return &Validation{
		Email:        email,
		Status:       model.ValidationStatus(strings.ToLower(resp.Status)),
		SubStatus:    resp.SubStatus,
		MXFound:      resp.HasMX(),
		MXRecord:     resp.MXRecord,
		SMTPProvider: resp.SMTPProvider,
	}, nil
}

// Credits implements CreditReporter.
func (z *ZeroBounce) Credits(ctx context.Context) (int, error) {
	n, err := z.client.Credits(ctx)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func parseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return TierHigh
	case "medium":
		return TierMedium
	default:
		return TierLow
	}
}

func classify(err error) error {
	var apiErr *zerobounce.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return resilience.NewTransientError(eris.Wrap(model.ErrRateLimited, err.Error()), apiErr.StatusCode)
	case resilience.IsTransientHTTPStatus(apiErr.StatusCode):
		return resilience.NewTransientError(err, apiErr.StatusCode)
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return &model.ProviderUnavailableError{Provider: "zerobounce", Err: err}
	}
	return eris.Wrap(model.ErrValidationFailed, err.Error())
}
