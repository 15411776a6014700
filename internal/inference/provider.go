package inference

import (
	"context"

	"github.com/sells-group/leadfinder/internal/model"
)

// Tier is a provider's certainty about a naming pattern.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Format is the dominant naming pattern for a domain.
type Format struct {
	Pattern     string
	Tier        Tier
	Alternates  []Alternate
	CompanyName string
}

// Alternate is a secondary naming pattern.
type Alternate struct {
	Pattern string
	Tier    Tier
}

// HasPattern reports whether the lookup produced a usable pattern.
func (f *Format) HasPattern() bool {
	return f != nil && f.Pattern != "" && f.Pattern != "unknown"
}

// Validation is an address validator's verdict.
type Validation struct {
	Email        string                 `json:"email"`
	Status       model.ValidationStatus `json:"status"`
	SubStatus    string                 `json:"sub_status,omitempty"`
	MXFound      bool                   `json:"mx_found"`
	MXRecord     string                 `json:"mx_record,omitempty"`
	SMTPProvider string                 `json:"smtp_provider,omitempty"`
}

// FormatLookup finds the dominant naming pattern for a domain.
type FormatLookup interface {
	GuessFormat(ctx context.Context, domain, companyName string) (*Format, error)
}

// AddressValidator checks a single address.
type AddressValidator interface {
	Validate(ctx context.Context, email string) (*Validation, error)
}

// CreditReporter is implemented by validators that expose a remaining
// credit balance.
type CreditReporter interface {
	Credits(ctx context.Context) (int, error)
}
