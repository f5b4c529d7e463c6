package reference

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNormalizeClusterID(t *testing.T) {
	cases := map[string]string{
		"2":    "2",
		"2.0":  "2",
		" 5 ":  "5",
		"-1":   "-1",
		"":     Unassigned,
		"NaN":  Unassigned,
		"2.5":  "2.5",
		"skin": "skin",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeClusterID(in), "input %q", in)
	}
}

func TestLoadClusterSummaries_JSON(t *testing.T) {
	path := writeFile(t, "summaries.json", `{
  "2": {"summary": "Hydrating moisturizers", "size": 120},
  "5.0": {"summary": "Fragrance complaints"},
  "7": {"size": 3},
  "9": "not an object"
}`)

	got, err := LoadClusterSummaries(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"2": "Hydrating moisturizers",
		"5": "Fragrance complaints",
		"7": "",
		"9": "",
	}, got)
}

func TestLoadClusterSummaries_YAML(t *testing.T) {
	path := writeFile(t, "summaries.yaml", "3:\n  summary: Packaging issues\n")

	got, err := LoadClusterSummaries(path)
	require.NoError(t, err)
	assert.Equal(t, "Packaging issues", got["3"])
}

func TestLoadClusterSummaries_Errors(t *testing.T) {
	_, err := LoadClusterSummaries(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrReferenceData)

	_, err = LoadClusterSummaries(writeFile(t, "list.json", `["a", "b"]`))
	assert.ErrorIs(t, err, ErrReferenceData)

	_, err = LoadClusterSummaries(writeFile(t, "broken.json", `{"2": {`))
	assert.ErrorIs(t, err, ErrReferenceData)

	_, err = LoadClusterSummaries(writeFile(t, "empty.json", ``))
	assert.ErrorIs(t, err, ErrReferenceData)
}

func TestLoadClusterMap(t *testing.T) {
	path := writeFile(t, "map.csv", "review_text,id,cluster\nnice,r1,2\nmeh,r2,5.0\nblank,r3,\n,,4\n")

	got, err := LoadClusterMap(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"r1": "2", "r2": "5", "r3": Unassigned}, got)
}

func TestLoadClusterMap_Errors(t *testing.T) {
	_, err := LoadClusterMap(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrReferenceData)

	_, err = LoadClusterMap(writeFile(t, "nocluster.csv", "id,label\nr1,2\n"))
	require.ErrorIs(t, err, ErrReferenceData)
	assert.Contains(t, err.Error(), "cluster")

	_, err = LoadClusterMap(writeFile(t, "empty.csv", ""))
	assert.ErrorIs(t, err, ErrReferenceData)

	_, err = LoadClusterMap(writeFile(t, "short.csv", "id,x,cluster\nr1\n"))
	assert.ErrorIs(t, err, ErrReferenceData)
}

func TestTables_Lookups(t *testing.T) {
	tables := NewTables(
		map[string]string{"2.0": "Hydration", "5": "Scent"},
		map[string]string{"r1": "2", "r2": "5.0"},
	)

	assert.Equal(t, "2", tables.ClusterFor("r1"))
	assert.Equal(t, "5", tables.ClusterFor("r2"))
	assert.Equal(t, "Hydration", tables.SummaryFor("2"))
	assert.Equal(t, "Hydration", tables.SummaryFor("2.0"))
	assert.Equal(t, "", tables.SummaryFor("42"))

	s, a := tables.Len()
	assert.Equal(t, 2, s)
	assert.Equal(t, 2, a)
}

func TestTables_UnknownReviewIsStable(t *testing.T) {
	tables := NewTables(nil, map[string]string{"r1": "2"})
	for i := 0; i < 3; i++ {
		assert.Equal(t, Unassigned, tables.ClusterFor("ghost"))
	}

	var nilTables *Tables
	assert.Equal(t, Unassigned, nilTables.ClusterFor("r1"))
	assert.Equal(t, "", nilTables.SummaryFor("2"))
}

func TestTables_ConcurrentReads(t *testing.T) {
	tables := NewTables(map[string]string{"1": "a"}, map[string]string{"r": "1"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "a", tables.SummaryFor(tables.ClusterFor("r")))
		}()
	}
	wg.Wait()
}

func TestLoad(t *testing.T) {
	summaries := writeFile(t, "s.json", `{"1": {"summary": "Texture"}}`)
	clusters := writeFile(t, "m.csv", "id,cluster\nabc,1\n")

	tables, err := Load(summaries, clusters)
	require.NoError(t, err)
	assert.Equal(t, "Texture", tables.SummaryFor(tables.ClusterFor("abc")))

	_, err = Load(summaries, strings.TrimSuffix(clusters, ".csv")+".missing")
	assert.ErrorIs(t, err, ErrReferenceData)
}
