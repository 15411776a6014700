package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.websiteUri")
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.businessStatus")

		var body TextSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dentists in Austin, TX", body.TextQuery)
		assert.Equal(t, 20, body.MaxResultCount)

		_, _ = w.Write([]byte(`{"places":[{
			"id":"ChIJ1",
			"displayName":{"text":"Bright Smiles"},
			"formattedAddress":"1 Main St, Austin, TX",
			"location":{"latitude":30.26,"longitude":-97.74},
			"websiteUri":"https://www.brightsmiles.com/",
			"nationalPhoneNumber":"(512) 555-0100",
			"types":["dental_clinic","health"],
			"businessStatus":"OPERATIONAL",
			"rating":4.8,
			"userRatingCount":212}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "dentists in Austin, TX", MaxResultCount: 20})

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	p := resp.Places[0]
	assert.Equal(t, "ChIJ1", p.ID)
	assert.Equal(t, "Bright Smiles", p.DisplayName.Text)
	assert.Equal(t, "https://www.brightsmiles.com/", p.WebsiteURI)
	assert.Equal(t, []string{"dental_clinic", "health"}, p.Types)
	assert.InDelta(t, 30.26, p.Location.Latitude, 0.0001)
	assert.Equal(t, 212, p.UserRatingCount)
}

func TestTextSearch_LocationBias(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bias := body["locationBias"].(map[string]any)["circle"].(map[string]any)
		assert.InDelta(t, 5000.0, bias["radius"], 0.01)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := NewClient("k", WithBaseURL(srv.URL)).TextSearch(context.Background(), TextSearchRequest{
		TextQuery:    "plumbers",
		LocationBias: &LocationBias{Circle: Circle{Center: LatLng{Latitude: 1, Longitude: 2}, Radius: 5000}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Places)
}

func TestTextSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	_, err := NewClient("bad", WithBaseURL(srv.URL)).TextSearch(context.Background(), TextSearchRequest{TextQuery: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestTextSearch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).TextSearch(context.Background(), TextSearchRequest{TextQuery: "x"})
	assert.Error(t, err)
}
