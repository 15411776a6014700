package leadio

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadfinder/internal/model"
)

// ExportHeaders are the columns written by the CSV and XLSX exporters.
var ExportHeaders = []string{
	"Business Name",
	"Website",
	"Address",
	"Phone",
	"Category",
	"Email",
	"Email Type",
	"Email Confidence",
	"Google Place ID",
}

// exportRows flattens leads to one row per email, or one blank-email row
// for a lead without emails.
func exportRows(leads []model.EnrichedLead) [][]string {
	rows := [][]string{ExportHeaders}
	for _, l := range leads {
		base := []string{l.Name, l.Website, l.Address, l.Phone, l.Category}
		if len(l.Emails) == 0 {
			rows = append(rows, append(append([]string{}, base...), "", "", "", l.ExternalID))
			continue
		}
		for _, e := range l.Emails {
			rows = append(rows, append(append([]string{}, base...),
				e.Email, string(e.Type), strconv.Itoa(e.Confidence), l.ExternalID))
		}
	}
	return rows
}

// Export writes leads to w in format.
func Export(w io.Writer, format Format, leads []model.EnrichedLead) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(leads), "leadio: write json")

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(exportRows(leads)); err != nil {
			return eris.Wrap(err, "leadio: write csv")
		}
		return nil

	case FormatXLSX:
		f := xlsx.NewFile()
		sheet, err := f.AddSheet("Leads")
		if err != nil {
			return eris.Wrap(err, "leadio: add sheet")
		}
		for _, r := range exportRows(leads) {
			row := sheet.AddRow()
			for _, v := range r {
				row.AddCell().SetString(v)
			}
		}
		return eris.Wrap(f.Write(w), "leadio: write xlsx")
	}
	return eris.Errorf("leadio: unsupported format %q", format)
}

// ContentType returns the MIME type for format.
func ContentType(format Format) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}
