package model

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// CleanDomain reduces a website or domain string to a bare lowercase host.
// "https://www.Acme.com/about?x=1" becomes "acme.com".
func CleanDomain(raw string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return "", eris.Wrap(ErrInvalidDomain, "empty domain")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "", eris.Wrapf(ErrInvalidDomain, "%q", raw)
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if !strings.Contains(host, ".") || len(host) <= 3 {
		return "", eris.Wrapf(ErrInvalidDomain, "%q", raw)
	}
	return host, nil
}

// DomainLabel returns the first label of a domain: "acme" for "acme.co.uk".
func DomainLabel(domain string) string {
	if i := strings.IndexByte(domain, '.'); i > 0 {
		return domain[:i]
	}
	return domain
}
