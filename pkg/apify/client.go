// Package apify is a small client for the Apify actor-run API.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.apify.com/v2"

// Run statuses reported by the API.
const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusAborting  = "ABORTING"
	StatusAborted   = "ABORTED"
	StatusTimingOut = "TIMING-OUT"
	StatusTimedOut  = "TIMED-OUT"
)

// Client starts and tracks actor runs.
type Client interface {
	StartRun(ctx context.Context, actorID string, input any) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	AbortRun(ctx context.Context, runID string) (*Run, error)
	DatasetItems(ctx context.Context, datasetID string) ([]map[string]any, error)
	Me(ctx context.Context) (*User, error)
}

// Run is an actor run.
type Run struct {
	ID               string     `json:"id"`
	ActID            string     `json:"actId"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"startedAt"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
	DefaultDatasetID string     `json:"defaultDatasetId"`
	Stats            RunStats   `json:"stats"`
}

// RunStats is the subset of run statistics we read.
type RunStats struct {
	RestartCount int     `json:"restartCount"`
	ComputeUnits float64 `json:"computeUnits"`
}

// User is the account behind the API token.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Plan     struct {
		ID                     string  `json:"id"`
		MonthlyUsageCreditsUSD float64 `json:"monthlyUsageCreditsUsd"`
	} `json:"plan"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apify: HTTP %d: %s", e.StatusCode, e.Body)
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
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates an Apify client authenticated with token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) StartRun(ctx context.Context, actorID string, input any) (*Run, error) {
	var out envelope[Run]
	if err := c.call(ctx, http.MethodPost, "/acts/"+url.PathEscape(actorID)+"/runs", input, &out); err != nil {
		return nil, eris.Wrapf(err, "apify: start run %s", actorID)
	}
	return &out.Data, nil
}

func (c *httpClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	var out envelope[Run]
	if err := c.call(ctx, http.MethodGet, "/actor-runs/"+url.PathEscape(runID), nil, &out); err != nil {
		return nil, eris.Wrapf(err, "apify: get run %s", runID)
	}
	return &out.Data, nil
}

func (c *httpClient) AbortRun(ctx context.Context, runID string) (*Run, error) {
	var out envelope[Run]
	if err := c.call(ctx, http.MethodPost, "/actor-runs/"+url.PathEscape(runID)+"/abort", struct{}{}, &out); err != nil {
		return nil, eris.Wrapf(err, "apify: abort run %s", runID)
	}
	return &out.Data, nil
}

func (c *httpClient) DatasetItems(ctx context.Context, datasetID string) ([]map[string]any, error) {
	var out []map[string]any
	path := "/datasets/" + url.PathEscape(datasetID) + "/items?format=json&clean=true"
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, eris.Wrapf(err, "apify: dataset items %s", datasetID)
	}
	return out, nil
}

func (c *httpClient) Me(ctx context.Context) (*User, error) {
	var out envelope[User]
	if err := c.call(ctx, http.MethodGet, "/users/me", nil, &out); err != nil {
		return nil, eris.Wrap(err, "apify: get user")
	}
	return &out.Data, nil
}

func (c *httpClient) call(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
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
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
