package discovery

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	peopleSearchBase  = "https://app.apollo.io/search/people"
	defaultMaxResults = 10
	maxMaxResults     = 1000
)

// Filters narrows a people search.
type Filters struct {
	CompanyName   string   `json:"company_name,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	Location      string   `json:"location,omitempty"`
	Country       string   `json:"country,omitempty"`
	CompanySize   string   `json:"company_size,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	JobTitles     []string `json:"job_titles,omitempty"`
	Seniority     string   `json:"seniority,omitempty"`
	Departments   []string `json:"departments,omitempty"`
	IncludeEmails bool     `json:"include_emails"`
	IncludePhones bool     `json:"include_phones"`
}

var seniorityParam = map[string]string{
	"individual_contributor": "individual-contributor",
	"manager":                "manager",
	"director":               "director",
	"vp":                     "vp",
	"c_level":                "c-level",
}

var companySizeParam = map[string]string{
	"startup":    "1-10",
	"small":      "11-50",
	"medium":     "51-200",
	"large":      "201-1000",
	"enterprise": "1000+",
}

// Validate checks that a search has at least one criterion and a sane
// result limit.
func (f Filters) Validate(query string, maxResults int) error {
	if query == "" && f.CompanyName == "" && f.Industry == "" && len(f.Keywords) == 0 && len(f.JobTitles) == 0 {
		return eris.New("discovery: at least one of query, company, industry, keywords or job titles is required")
	}
	if maxResults < 0 || maxResults > maxMaxResults {
		return eris.Errorf("discovery: max results must be between 1 and %d", maxMaxResults)
	}
	return nil
}

// BuildPeopleSearchURL renders query and filters as the people-search URL
// the discovery actor scrapes. query is appended to the keyword list.
func BuildPeopleSearchURL(query string, maxResults int, f Filters) string {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	keywords := f.Keywords
	if q := strings.TrimSpace(query); q != "" {
		keywords = append(append([]string{}, keywords...), q)
	}

	v := url.Values{}
	setIf := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	setIf("companyName", f.CompanyName)
	setIf("industry", f.Industry)
	setIf("keywords", strings.Join(keywords, ","))
	setIf("companySize", companySizeParam[f.CompanySize])
	setIf("location", f.Location)
	setIf("country", f.Country)
	setIf("jobTitles", strings.Join(f.JobTitles, ","))
	if s, ok := seniorityParam[f.Seniority]; ok {
		v.Set("seniority", s)
	} else {
		setIf("seniority", f.Seniority)
	}
	setIf("departments", strings.Join(f.Departments, ","))
	v.Set("limit", strconv.Itoa(maxResults))
	if f.IncludeEmails {
		v.Set("includeEmails", "true")
	}
	if f.IncludePhones {
		v.Set("includePhones", "true")
	}
	return peopleSearchBase + "?" + v.Encode()
}
