package leadfinder

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/pkg/google"
)

const (
	placesMaxResults  = 20
	closedPermanently = "CLOSED_PERMANENTLY"
)

// PlacesProvider searches Google Places text search.
type PlacesProvider struct {
	client google.Client
}

// NewPlacesProvider wraps a Places client.
func NewPlacesProvider(client google.Client) *PlacesProvider {
	return &PlacesProvider{client: client}
}

// Name implements SearchProvider.
func (p *PlacesProvider) Name() string { return "google_places" }

// Search implements SearchProvider. Permanently closed businesses are
// dropped.
func (p *PlacesProvider) Search(ctx context.Context, q Query) ([]model.Lead, error) {
	req := google.TextSearchRequest{
		TextQuery:      fmt.Sprintf("%s in %s", q.Category, q.Location),
		MaxResultCount: placesMaxResults,
	}
	if q.MaxResults > 0 && q.MaxResults < placesMaxResults {
		req.MaxResultCount = q.MaxResults
	}
	if q.RadiusMeters > 0 && (q.Latitude != 0 || q.Longitude != 0) {
		req.LocationBias = &google.LocationBias{Circle: google.Circle{
			Center: google.LatLng{Latitude: q.Latitude, Longitude: q.Longitude},
			Radius: q.RadiusMeters,
		}}
	}

	resp, err := p.client.TextSearch(ctx, req)
	if err != nil {
		return nil, err
	}

	leads := make([]model.Lead, 0, len(resp.Places))
	for _, place := range resp.Places {
		if place.BusinessStatus == closedPermanently {
			continue
		}
		leads = append(leads, placeToLead(place, p.Name()))
	}
	return leads, nil
}

func placeToLead(p google.Place, source string) model.Lead {
	l := model.Lead{
		ExternalID:      p.ID,
		Name:            p.DisplayName.Text,
		Website:         p.WebsiteURI,
		Address:         p.FormattedAddress,
		Phone:           p.NationalPhoneNumber,
		Latitude:        p.Location.Latitude,
		Longitude:       p.Location.Longitude,
		Rating:          p.Rating,
		UserRatingCount: p.UserRatingCount,
		Source:          source,
	}
	if len(p.Types) > 0 {
		l.Category = strings.ReplaceAll(p.Types[0], "_", " ")
	}
	return l
}
