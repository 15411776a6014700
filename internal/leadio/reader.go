// Package leadio reads lead lists from JSON, CSV, and XLSX files and
// writes enriched leads back out.
package leadio

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadfinder/internal/model"
)

// Format names a file format understood by Import and Export.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", eris.Errorf("leadio: unsupported format %q", s)
}

// headerAliases maps normalized column headers to lead fields. The export
// headers are included so exported files can be fed back in.
var headerAliases = map[string]string{
	"name":            "name",
	"business name":   "name",
	"company":         "name",
	"company name":    "name",
	"website":         "website",
	"url":             "website",
	"domain":          "domain",
	"address":         "address",
	"phone":           "phone",
	"category":        "category",
	"google place id": "external_id",
	"place id":        "external_id",
	"external id":     "external_id",
	"external_id":     "external_id",
	"latitude":        "latitude",
	"lat":             "latitude",
	"longitude":       "longitude",
	"lng":             "longitude",
	"lon":             "longitude",
}

// importDomain cleans the given domain, falling back to one derived from
// website. Values that do not clean are dropped.
func importDomain(domain, website string) string {
	for _, raw := range []string{domain, website} {
		if raw == "" {
			continue
		}
		if d, err := model.CleanDomain(raw); err == nil {
			return d
		}
	}
	return ""
}

// Import reads leads from path, choosing the parser by extension. Domains
// are cleaned to a bare host, derived from Website when missing or
// unparseable; rows without a name are dropped.
func Import(ctx context.Context, path string) ([]model.Lead, error) {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	var leads []model.Lead
	switch format {
	case FormatJSON:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "leadio: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		leads, err = collect(decodeJSONArray[model.Lead](ctx, f))
		if err != nil {
			return nil, err
		}
	case FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "leadio: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err := collect(streamCSV(ctx, f))
		if err != nil {
			return nil, err
		}
		leads = rowsToLeads(rows)
	case FormatXLSX:
		rows, err := readXLSX(path)
		if err != nil {
			return nil, err
		}
		leads = rowsToLeads(rows)
	}

	out := leads[:0]
	for _, l := range leads {
		if strings.TrimSpace(l.Name) == "" {
			continue
		}
		l.Domain = importDomain(l.Domain, l.Website)
		if l.Source == "" {
			l.Source = "import"
		}
		out = append(out, l)
	}
	return out, nil
}

func collect[T any](itemCh <-chan T, errCh <-chan error) ([]T, error) {
	var items []T
	for item := range itemCh {
		items = append(items, item)
	}
	for err := range errCh {
		if err != nil {
			return items, err
		}
	}
	return items, nil
}

// rowsToLeads treats the first row as a header. Unknown columns are ignored.
func rowsToLeads(rows [][]string) []model.Lead {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		cols[i] = headerAliases[strings.ToLower(strings.TrimSpace(h))]
	}

	leads := make([]model.Lead, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var l model.Lead
		for i, v := range row {
			if i >= len(cols) {
				break
			}
			v = strings.TrimSpace(v)
			switch cols[i] {
			case "name":
				l.Name = v
			case "website":
				l.Website = v
			case "domain":
				l.Domain = v
			case "address":
				l.Address = v
			case "phone":
				l.Phone = v
			case "category":
				l.Category = v
			case "external_id":
				l.ExternalID = v
			case "latitude":
				l.Latitude, _ = strconv.ParseFloat(v, 64)
			case "longitude":
				l.Longitude, _ = strconv.ParseFloat(v, 64)
			}
		}
		leads = append(leads, l)
	}
	return leads
}
