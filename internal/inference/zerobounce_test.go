package inference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/internal/resilience"
	"github.com/sells-group/leadfinder/pkg/zerobounce"
)

func TestZeroBounce_GuessFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"domain":"acme.com","company_name":"Acme","format":"First.Last","confidence":"HIGH",
			"other_domain_formats":[{"format":"flast","confidence":"medium"},{"format":"","confidence":"high"}]}`))
	}))
	defer srv.Close()

	z := NewZeroBounce(zerobounce.NewClient("key", zerobounce.WithBaseURL(srv.URL)))
	f, err := z.GuessFormat(context.Background(), "acme.com", "Acme")
	require.NoError(t, err)
	assert.Equal(t, "first.last", f.Pattern)
	assert.Equal(t, TierHigh, f.Tier)
	assert.Equal(t, []Alternate{{Pattern: "flast", Tier: TierMedium}}, f.Alternates)
	assert.True(t, f.HasPattern())
}

func TestZeroBounce_Validate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"address":"jane@acme.com","status":"catch-all","mx_found":"true","mx_record":"mx.acme.com"}`))
	}))
	defer srv.Close()

	z := NewZeroBounce(zerobounce.NewClient("key", zerobounce.WithBaseURL(srv.URL)))
	v, err := z.Validate(context.Background(), "jane@acme.com")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCatchAll, v.Status)
	assert.True(t, v.MXFound)
	assert.Equal(t, "mx.acme.com", v.MXRecord)
}

func TestZeroBounce_ErrorClassification(t *testing.T) {
	tests := []struct {
		code        int
		transient   bool
		rateLimited bool
		unavailable bool
	}{
		{http.StatusTooManyRequests, true, true, false},
		{http.StatusServiceUnavailable, true, false, false},
		{http.StatusUnauthorized, false, false, true},
		{http.StatusBadRequest, false, false, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			z := NewZeroBounce(zerobounce.NewClient("key", zerobounce.WithBaseURL(srv.URL)))
			_, err := z.Validate(context.Background(), "x@acme.com")
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			assert.Equal(t, tt.rateLimited, errors.Is(err, model.ErrRateLimited))
			var pue *model.ProviderUnavailableError
			assert.Equal(t, tt.unavailable, errors.As(err, &pue))
		})
	}
}

func TestZeroBounce_Credits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Credits":"1250"}`))
	}))
	defer srv.Close()

	e := NewEngine(nil, NewZeroBounce(zerobounce.NewClient("key", zerobounce.WithBaseURL(srv.URL))))
	n, err := e.Credits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1250, n)

	_, err = NewEngine(nil, nil).Credits(context.Background())
	assert.Error(t, err)
}
