// Package zerobounce wraps the ZeroBounce email format and validation API.
package zerobounce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.zerobounce.net/v2"

// Client calls the ZeroBounce v2 API.
type Client interface {
	GuessFormat(ctx context.Context, domain, companyName string) (*FormatResponse, error)
	Validate(ctx context.Context, email, ipAddress string) (*ValidateResponse, error)
	Credits(ctx context.Context) (int, error)
}

// FormatResponse is returned by /guessformat.
type FormatResponse struct {
	Domain             string         `json:"domain"`
	CompanyName        string         `json:"company_name"`
	Format             string         `json:"format"`
	Confidence         string         `json:"confidence"`
	OtherDomainFormats []DomainFormat `json:"other_domain_formats"`
	Error              string         `json:"error,omitempty"`
}

// DomainFormat is an alternate naming pattern.
type DomainFormat struct {
	Format     string `json:"format"`
	Confidence string `json:"confidence"`
}

// ValidateResponse is returned by /validate.
type ValidateResponse struct {
	Address      string `json:"address"`
	Status       string `json:"status"`
	SubStatus    string `json:"sub_status"`
	FreeEmail    bool   `json:"free_email"`
	Account      string `json:"account"`
	Domain       string `json:"domain"`
	MXFound      string `json:"mx_found"`
	MXRecord     string `json:"mx_record"`
	SMTPProvider string `json:"smtp_provider"`
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
	ProcessedAt  string `json:"processed_at"`
	Error        string `json:"error,omitempty"`
}

// HasMX reports whether the validator found an MX record.
func (v *ValidateResponse) HasMX() bool {
	return v.MXFound == "true"
}

// APIError is returned for non-2xx responses and for 200 responses that
// carry an error field.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zerobounce: HTTP %d: %s", e.StatusCode, e.Message)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a ZeroBounce client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GuessFormat(ctx context.Context, domain, companyName string) (*FormatResponse, error) {
	q := url.Values{"domain": {domain}}
	if companyName != "" {
		q.Set("company_name", companyName)
	}
	var out FormatResponse
	if err := c.get(ctx, "/guessformat", q, &out); err != nil {
		return nil, eris.Wrapf(err, "zerobounce: guess format %s", domain)
	}
	if out.Error != "" {
		return nil, eris.Wrapf(&APIError{StatusCode: http.StatusOK, Message: out.Error}, "zerobounce: guess format %s", domain)
	}
	return &out, nil
}

func (c *httpClient) Validate(ctx context.Context, email, ipAddress string) (*ValidateResponse, error) {
	q := url.Values{"email": {email}, "ip_address": {ipAddress}}
	var out ValidateResponse
	if err := c.get(ctx, "/validate", q, &out); err != nil {
		return nil, eris.Wrapf(err, "zerobounce: validate %s", email)
	}
	if out.Error != "" {
		return nil, eris.Wrapf(&APIError{StatusCode: http.StatusOK, Message: out.Error}, "zerobounce: validate %s", email)
	}
	return &out, nil
}

func (c *httpClient) Credits(ctx context.Context) (int, error) {
	var out struct {
		Credits string `json:"Credits"`
	}
	if err := c.get(ctx, "/getcredits", url.Values{}, &out); err != nil {
		return 0, eris.Wrap(err, "zerobounce: get credits")
	}
	n, err := strconv.Atoi(out.Credits)
	if err != nil {
		return 0, eris.Wrapf(err, "zerobounce: parse credits %q", out.Credits)
	}
	if n < 0 {
		return 0, eris.Wrap(&APIError{StatusCode: http.StatusOK, Message: "invalid api key"}, "zerobounce: get credits")
	}
	return n, nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("api_key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
