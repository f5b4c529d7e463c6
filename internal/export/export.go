// Package export writes the full retrieved set of a query to a tabular file.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Yates-Labs/reviewlens/internal/rag"
)

// Format represents supported export formats
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Columns is the header of an exported file, in order.
var Columns = []string{"id", "score", "brand", "product_name", "review_text", "rating"}

// Row is one exported match. Cluster information is not included.
type Row struct {
	ID          string  `json:"id"`
	Score       float32 `json:"score"`
	Brand       string  `json:"brand"`
	ProductName string  `json:"product_name"`
	ReviewText  string  `json:"review_text"`
	Rating      string  `json:"rating"`
}

// ParseFormat validates a user-supplied format name. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s (supported: csv, json)", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// Rows converts matches to export rows, one per match in ranked order.
// Matches without review text keep their row with an empty review_text.
func Rows(matches []rag.ReviewMatch) []Row {
	rows := make([]Row, len(matches))
	for i, m := range matches {
		rows[i] = Row{
			ID:          m.ID,
			Score:       m.Score,
			Brand:       m.Metadata.Brand,
			ProductName: m.Metadata.ProductName,
			ReviewText:  m.Metadata.ReviewText,
			Rating:      m.Metadata.Rating,
		}
	}
	return rows
}

// ExportMatches writes matches in the given format.
func ExportMatches(matches []rag.ReviewMatch, format string, writer io.Writer) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}

	rows := Rows(matches)
	if f == FormatJSON {
		return exportJSON(rows, writer)
	}
	return exportCSV(rows, writer)
}

// exportCSV writes rows with a header line
func exportCSV(rows []Row, writer io.Writer) error {
	w := csv.NewWriter(writer)
	if err := w.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.ID,
			strconv.FormatFloat(float64(r.Score), 'f', -1, 32),
			r.Brand,
			r.ProductName,
			r.ReviewText,
			r.Rating,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// exportJSON writes rows as an indented JSON array
func exportJSON(rows []Row, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}
