package model

import "strings"

// EmailStatus is the discovery provider's view of a contact's email.
type EmailStatus string

const (
	EmailVerified    EmailStatus = "verified"
	EmailGuessed     EmailStatus = "guessed"
	EmailUnavailable EmailStatus = "unavailable"
)

// ContactCandidate is a person found by a discovery job.
type ContactCandidate struct {
	ID          string          `json:"id"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	FullName    string          `json:"full_name"`
	Title       string          `json:"title"`
	Seniority   string          `json:"seniority,omitempty"`
	Department  string          `json:"department,omitempty"`
	Email       string          `json:"email,omitempty"`
	EmailStatus EmailStatus     `json:"email_status"`
	Phone       string          `json:"phone,omitempty"`
	LinkedInURL string          `json:"linkedin_url,omitempty"`
	Company     CompanySummary  `json:"company"`
	Location    ContactLocation `json:"location"`
}

// CompanySummary is the employer block attached to a contact.
type CompanySummary struct {
	Name        string `json:"name"`
	Domain      string `json:"domain,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Size        string `json:"size,omitempty"`
	Location    string `json:"location,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// ContactLocation is where a contact is based.
type ContactLocation struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// EmailType separates person addresses from role mailboxes.
type EmailType string

const (
	EmailPersonal EmailType = "personal"
	EmailGeneric  EmailType = "generic"
)

// ValidationStatus is the result reported by an address validator.
type ValidationStatus string

const (
	StatusValid     ValidationStatus = "valid"
	StatusInvalid   ValidationStatus = "invalid"
	StatusCatchAll  ValidationStatus = "catch-all"
	StatusUnknown   ValidationStatus = "unknown"
	StatusSpamtrap  ValidationStatus = "spamtrap"
	StatusAbuse     ValidationStatus = "abuse"
	StatusDoNotMail ValidationStatus = "do_not_mail"
)

// Accepted reports whether an address with this status may be returned.
func (s ValidationStatus) Accepted() bool {
	return s == StatusValid || s == StatusCatchAll
}

// Confidence maps a validation status to its fixed score.
func (s ValidationStatus) Confidence() int {
	switch s {
	case StatusValid:
		return 95
	case StatusCatchAll:
		return 75
	case StatusUnknown:
		return 50
	case StatusInvalid, StatusSpamtrap, StatusAbuse, StatusDoNotMail:
		return 0
	default:
		return 25
	}
}

// EmailCandidate is an address attached to a lead.
type EmailCandidate struct {
	Email      string           `json:"email"`
	Type       EmailType        `json:"type"`
	Confidence int              `json:"confidence"`
	Status     ValidationStatus `json:"status"`
	Source     string           `json:"source"`
	FirstName  string           `json:"first_name,omitempty"`
	LastName   string           `json:"last_name,omitempty"`
	Verified   bool             `json:"verified"`
}

var genericKeywords = []string{
	"info", "contact", "hello", "support", "sales", "admin",
	"help", "service", "office", "general", "inquiry", "team",
}

// ClassifyEmail returns EmailGeneric when the local part contains a role
// keyword and EmailPersonal otherwise.
func ClassifyEmail(email string) EmailType {
	local := strings.ToLower(email)
	if i := strings.IndexByte(local, '@'); i >= 0 {
		local = local[:i]
	}
	for _, kw := range genericKeywords {
		if strings.Contains(local, kw) {
			return EmailGeneric
		}
	}
	return EmailPersonal
}

// ClampConfidence bounds c to [0,100].
func ClampConfidence(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}
