package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/internal/resilience"
	"github.com/sells-group/leadfinder/pkg/apify"
)

func TestApifyProvider_Submit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acts/"+DefaultActorID+"/runs", r.URL.Path)
		var in actorInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.True(t, strings.Contains(in.URL, "companyName=Acme"))
		assert.Equal(t, 5, in.MaxResults)
		assert.True(t, in.IncludeEmails)
		assert.True(t, in.ProxyConfiguration.UseApifyProxy)
		_, _ = w.Write([]byte(`{"data":{"id":"run-7","status":"READY"}}`))
	}))
	defer srv.Close()

	p := NewApifyProvider(apify.NewClient("tok", apify.WithBaseURL(srv.URL)), "")
	id, err := p.Submit(context.Background(), JobSpec{MaxResults: 5, Filters: Filters{CompanyName: "Acme", IncludeEmails: true}})
	require.NoError(t, err)
	assert.Equal(t, "run-7", id)
}

func TestApifyProvider_StatusMapping(t *testing.T) {
	tests := map[string]model.JobStatus{
		"READY":      model.JobQueued,
		"RUNNING":    model.JobRunning,
		"ABORTING":   model.JobRunning,
		"TIMING-OUT": model.JobRunning,
		"SUCCEEDED":  model.JobSucceeded,
		"FAILED":     model.JobFailed,
		"ABORTED":    model.JobAborted,
		"TIMED-OUT":  model.JobTimedOut,
	}
	for remote, want := range tests {
		assert.Equal(t, want, runStatus(remote), remote)
	}
}

func TestApifyProvider_StatusAndResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/actor-runs/run-7":
			_, _ = w.Write([]byte(`{"data":{"id":"run-7","status":"SUCCEEDED","defaultDatasetId":"ds-7"}}`))
		case "/datasets/ds-7/items":
			_, _ = w.Write([]byte(`[{"firstName":"Jane","lastName":"Doe","email":"jane@acme.com"}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewApifyProvider(apify.NewClient("tok", apify.WithBaseURL(srv.URL)), "")
	state, err := p.Status(context.Background(), "run-7")
	require.NoError(t, err)
	assert.Equal(t, model.JobSucceeded, state.Status)
	assert.Equal(t, "ds-7", state.DatasetRef)

	// Without a dataset ref the provider looks it up from the run.
	items, err := p.Results(context.Background(), model.DiscoveryJob{ID: "run-7", Status: model.JobSucceeded})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Jane", items[0]["firstName"])
}

func TestApifyProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		code        int
		transient   bool
		rateLimited bool
		unavailable bool
	}{
		{http.StatusTooManyRequests, true, true, false},
		{http.StatusBadGateway, true, false, false},
		{http.StatusUnauthorized, false, false, true},
		{http.StatusNotFound, false, false, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			p := NewApifyProvider(apify.NewClient("tok", apify.WithBaseURL(srv.URL)), "actor")
			_, err := p.Status(context.Background(), "run-1")
			require.Error(t, err)

			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			assert.Equal(t, tt.rateLimited, errors.Is(err, model.ErrRateLimited))
			var pue *model.ProviderUnavailableError
			assert.Equal(t, tt.unavailable, errors.As(err, &pue))
		})
	}
}

func TestApifyProvider_CancelAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/actor-runs/run-1/abort":
			_, _ = w.Write([]byte(`{"data":{"id":"run-1","status":"ABORTING"}}`))
		case "/users/me":
			_, _ = w.Write([]byte(`{"data":{"id":"u1","username":"ops"}}`))
		}
	}))
	defer srv.Close()

	p := NewApifyProvider(apify.NewClient("tok", apify.WithBaseURL(srv.URL)), "")
	require.NoError(t, p.Cancel(context.Background(), "run-1"))
	u, err := p.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ops", u.Username)
}
