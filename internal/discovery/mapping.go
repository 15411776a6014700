package discovery

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/leadfinder/internal/model"
)

// RawContact is one record from a provider result set.
type RawContact map[string]any

// FieldMapping lists, per canonical field, the provider keys to try in
// order. A key may be a dotted path into nested objects ("company.name").
// The first non-empty string wins.
type FieldMapping struct {
	Version string

	ID          []string
	FirstName   []string
	LastName    []string
	FullName    []string
	Email       []string
	EmailStatus []string
	Phone       []string
	LinkedInURL []string
	Title       []string
	Seniority   []string
	Department  []string

	CompanyName     []string
	CompanyDomain   []string
	CompanyIndustry []string
	CompanySize     []string
	CompanyLocation []string
	CompanyLinkedIn []string

	City    []string
	State   []string
	Country []string

	// DefaultTitle and DefaultCompany fill empty title/company name.
	DefaultTitle   string
	DefaultCompany string
}

// ApolloScraperV1 maps the people-scraper actor's dataset items.
var ApolloScraperV1 = FieldMapping{
	Version:     "apollo-scraper/v1",
	ID:          []string{"id", "apolloId", "person_id"},
	FirstName:   []string{"firstName", "first_name"},
	LastName:    []string{"lastName", "last_name"},
	FullName:    []string{"fullName", "name", "full_name"},
	Email:       []string{"email", "emailAddress", "email_address"},
	EmailStatus: []string{"emailStatus", "email_status"},
	Phone:       []string{"phoneNumber", "phone", "phone_number", "sanitized_phone"},
	LinkedInURL: []string{"linkedinUrl", "linkedin_url"},
	Title:       []string{"title", "jobTitle", "position", "headline"},
	Seniority:   []string{"seniority"},
	Department:  []string{"department", "departments"},

	CompanyName:     []string{"companyName", "company.name", "organization.name", "organization_name"},
	CompanyDomain:   []string{"companyDomain", "company.domain", "organization.primary_domain", "organization.website_url"},
	CompanyIndustry: []string{"companyIndustry", "company.industry", "organization.industry"},
	CompanySize:     []string{"companySize", "company.size", "organization.estimated_num_employees"},
	CompanyLocation: []string{"companyLocation", "company.location", "organization.raw_address"},
	CompanyLinkedIn: []string{"companyLinkedinUrl", "company.linkedinUrl", "organization.linkedin_url"},

	City:    []string{"city", "location.city"},
	State:   []string{"state", "location.state"},
	Country: []string{"country", "location.country"},

	DefaultTitle:   "Unknown",
	DefaultCompany: "Unknown Company",
}

// Apply converts raw into a ContactCandidate. Missing keys leave fields
// empty; Apply never fails.
func (m FieldMapping) Apply(raw RawContact) model.ContactCandidate {
	c := model.ContactCandidate{
		ID:          m.pick(raw, m.ID),
		FirstName:   m.pick(raw, m.FirstName),
		LastName:    m.pick(raw, m.LastName),
		FullName:    m.pick(raw, m.FullName),
		Email:       strings.ToLower(m.pick(raw, m.Email)),
		Phone:       m.pick(raw, m.Phone),
		LinkedInURL: m.pick(raw, m.LinkedInURL),
		Title:       m.pick(raw, m.Title),
		Seniority:   m.pick(raw, m.Seniority),
		Department:  m.pick(raw, m.Department),
		Company: model.CompanySummary{
			Name:        m.pick(raw, m.CompanyName),
			Domain:      m.pick(raw, m.CompanyDomain),
			Industry:    m.pick(raw, m.CompanyIndustry),
			Size:        m.pick(raw, m.CompanySize),
			Location:    m.pick(raw, m.CompanyLocation),
			LinkedInURL: m.pick(raw, m.CompanyLinkedIn),
		},
		Location: model.ContactLocation{
			City:    m.pick(raw, m.City),
			State:   m.pick(raw, m.State),
			Country: m.pick(raw, m.Country),
		},
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.FullName == "" {
		c.FullName = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	if c.FirstName == "" && c.LastName == "" && c.FullName != "" {
		parts := strings.Fields(c.FullName)
		c.FirstName = parts[0]
		if len(parts) > 1 {
			c.LastName = parts[len(parts)-1]
		}
	}
	if c.Title == "" {
		c.Title = m.DefaultTitle
	}
	if c.Company.Name == "" {
		c.Company.Name = m.DefaultCompany
	}

	switch status := model.EmailStatus(strings.ToLower(m.pick(raw, m.EmailStatus))); {
	case status == model.EmailVerified || status == model.EmailGuessed || status == model.EmailUnavailable:
		c.EmailStatus = status
	case c.Email != "":
		c.EmailStatus = model.EmailVerified
	default:
		c.EmailStatus = model.EmailUnavailable
	}
	return c
}

// ApplyAll maps every record.
func (m FieldMapping) ApplyAll(raws []RawContact) []model.ContactCandidate {
	out := make([]model.ContactCandidate, 0, len(raws))
	for _, r := range raws {
		out = append(out, m.Apply(r))
	}
	return out
}

func (m FieldMapping) pick(raw RawContact, keys []string) string {
	for _, k := range keys {
		if s := lookup(raw, k); s != "" {
			return s
		}
	}
	return ""
}

func lookup(raw map[string]any, path string) string {
	var cur any = raw
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[part]
	}
	return stringify(cur)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}
