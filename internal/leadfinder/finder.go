// Package leadfinder turns a category and location into leads.
package leadfinder

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/model"
)

// Query describes a business search.
type Query struct {
	Category     string  `json:"category"`
	Location     string  `json:"location"`
	RadiusMeters float64 `json:"radius_meters,omitempty"`

	// Latitude and Longitude center RadiusMeters; both zero means no bias.
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`

	MaxResults int `json:"max_results,omitempty"`
}

// SearchProvider returns raw business records for a query.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]model.Lead, error)
}

// Finder runs a search and normalizes the leads it returns.
type Finder struct {
	provider SearchProvider
}

// NewFinder returns a Finder backed by provider.
func NewFinder(provider SearchProvider) *Finder {
	return &Finder{provider: provider}
}

// Search returns de-duplicated leads with a cleaned Domain when the
// website parses.
func (f *Finder) Search(ctx context.Context, q Query) ([]model.Lead, error) {
	if strings.TrimSpace(q.Category) == "" || strings.TrimSpace(q.Location) == "" {
		return nil, eris.New("leadfinder: category and location are required")
	}

	raw, err := f.provider.Search(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "leadfinder: search %s", f.provider.Name())
	}

	seen := make(map[string]bool, len(raw))
	leads := make([]model.Lead, 0, len(raw))
	for _, l := range raw {
		key := l.ExternalID
		if key == "" {
			key = strings.ToLower(l.Name + "|" + l.Address)
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		if l.Domain == "" && l.Website != "" {
			if d, err := model.CleanDomain(l.Website); err == nil {
				l.Domain = d
			}
		}
		if l.Source == "" {
			l.Source = f.provider.Name()
		}
		leads = append(leads, l)
		if q.MaxResults > 0 && len(leads) >= q.MaxResults {
			break
		}
	}

	zap.L().Info("leadfinder: search complete",
		zap.String("provider", f.provider.Name()),
		zap.String("category", q.Category),
		zap.String("location", q.Location),
		zap.Int("raw", len(raw)),
		zap.Int("leads", len(leads)),
	)
	return leads, nil
}
