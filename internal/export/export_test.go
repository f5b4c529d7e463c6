package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/reviewlens/internal/rag"
)

func testMatches() []rag.ReviewMatch {
	return []rag.ReviewMatch{
		rag.NewMatch("v1", 0.91, map[string]any{"id": "r1", "brand": "Glow", "product_name": "Cream", "review_text": "Soft, rich", "rating": "5"}),
		rag.NewMatch("v2", 0.75, map[string]any{"id": "r2"}),
	}
}

func TestExportMatches_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportMatches(testMatches(), "", &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Columns, records[0])
	assert.Equal(t, []string{"v1", "0.91", "Glow", "Cream", "Soft, rich", "5"}, records[1])
	// missing review text keeps the row with an empty cell
	assert.Equal(t, []string{"v2", "0.75", rag.DefaultBrand, rag.DefaultProduct, "", ""}, records[2])
}

func TestExportMatches_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportMatches(testMatches(), "JSON", &buf))

	var rows []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "v1", rows[0].ID)
	assert.Equal(t, "", rows[1].ReviewText)
}

func TestExportMatches_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportMatches(nil, "csv", &buf))
	assert.Equal(t, "id,score,brand,product_name,review_text,rating\n", buf.String())
}

func TestExportMatches_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	err := ExportMatches(testMatches(), "xml", &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" Csv ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	assert.Equal(t, "text/csv", f.ContentType())
	assert.Equal(t, "application/json", FormatJSON.ContentType())
}
