package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrDiscoveryTimedOut is returned when a discovery job exceeds its
	// wall-clock budget or the provider reports it timed out.
	ErrDiscoveryTimedOut = eris.New("discovery job timed out")
	// ErrValidationFailed is returned when an address could not be validated.
	ErrValidationFailed = eris.New("address validation failed")
	// ErrInsufficientCredits is returned when a user cannot pay for inference.
	ErrInsufficientCredits = eris.New("Insufficient credits. Please upgrade your account.")
	// ErrInvalidDomain is returned for an empty or malformed domain.
	ErrInvalidDomain = eris.New("invalid domain")
	// ErrRateLimited is returned when a provider answers 429.
	ErrRateLimited = eris.New("provider rate limited")
)

// DiscoveryFailedError reports a job that ended Failed or Aborted.
type DiscoveryFailedError struct {
	JobID  string
	Status JobStatus
}

func (e *DiscoveryFailedError) Error() string {
	return fmt.Sprintf("discovery job %s ended with status %s", e.JobID, e.Status)
}

// ProviderUnavailableError reports a provider that could not be reached or
// is misconfigured.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s unavailable", e.Provider)
	}
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}
