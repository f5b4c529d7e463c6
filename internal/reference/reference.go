// Package reference loads the static cluster tables produced by the offline
// clustering job: cluster summaries and the review-to-cluster map.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrReferenceData is returned when a reference file is missing or malformed.
var ErrReferenceData = errors.New("reference data error")

// Unassigned is the cluster id for reviews absent from the cluster map.
const Unassigned = "-1"

// Tables holds both reference tables. It is built once at startup and is
// safe for concurrent reads; nothing mutates it after construction.
type Tables struct {
	summaries map[string]string
	clusters  map[string]string
}

// NewTables builds Tables from in-memory maps, normalizing cluster ids.
// Inputs are copied.
func NewTables(summaries, clusterMap map[string]string) *Tables {
	t := &Tables{
		summaries: make(map[string]string, len(summaries)),
		clusters:  make(map[string]string, len(clusterMap)),
	}
	for cid, s := range summaries {
		t.summaries[NormalizeClusterID(cid)] = s
	}
	for id, cid := range clusterMap {
		t.clusters[strings.TrimSpace(id)] = NormalizeClusterID(cid)
	}
	return t
}

// Load reads both reference files.
func Load(summariesPath, clusterMapPath string) (*Tables, error) {
	summaries, err := LoadClusterSummaries(summariesPath)
	if err != nil {
		return nil, err
	}
	clusters, err := LoadClusterMap(clusterMapPath)
	if err != nil {
		return nil, err
	}
	return &Tables{summaries: summaries, clusters: clusters}, nil
}

// ClusterFor returns the cluster id assigned to a review, or Unassigned.
func (t *Tables) ClusterFor(reviewID string) string {
	if t == nil {
		return Unassigned
	}
	if cid, ok := t.clusters[strings.TrimSpace(reviewID)]; ok {
		return cid
	}
	return Unassigned
}

// SummaryFor returns the summary of a cluster, or "" when none is recorded.
func (t *Tables) SummaryFor(clusterID string) string {
	if t == nil {
		return ""
	}
	return t.summaries[NormalizeClusterID(clusterID)]
}

// Len reports the number of entries in the summary and cluster tables.
func (t *Tables) Len() (summaries, assignments int) {
	if t == nil {
		return 0, 0
	}
	return len(t.summaries), len(t.clusters)
}

// LoadClusterSummaries reads a mapping of cluster id to a record holding a
// "summary" field. JSON and YAML documents are both accepted. Records that
// lack the field, or are not objects, resolve to an empty summary.
func LoadClusterSummaries(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReferenceData, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrReferenceData, path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrReferenceData, path)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s must map cluster ids to records", ErrReferenceData, path)
	}

	summaries := make(map[string]string, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		summaries[NormalizeClusterID(key.Value)] = summaryField(val)
	}
	return summaries, nil
}

func summaryField(n *yaml.Node) string {
	if n.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == "summary" && n.Content[i+1].Kind == yaml.ScalarNode {
			return n.Content[i+1].Value
		}
	}
	return ""
}

// LoadClusterMap reads a CSV with at least "id" and "cluster" columns.
// Both columns are kept as strings; cluster ids are normalized.
func LoadClusterMap(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReferenceData, err)
	}
	defer f.Close()

	clusters, err := readClusterMap(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReferenceData, path, err)
	}
	return clusters, nil
}

func readClusterMap(r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header")
		}
		return nil, err
	}
	idCol, clusterCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "id":
			idCol = i
		case "cluster":
			clusterCol = i
		}
	}
	if idCol < 0 || clusterCol < 0 {
		return nil, errors.New(`header must contain "id" and "cluster" columns`)
	}

	clusters := make(map[string]string)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if idCol >= len(rec) || clusterCol >= len(rec) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: too few columns", line)
		}
		id := strings.TrimSpace(rec[idCol])
		if id == "" {
			continue
		}
		clusters[id] = NormalizeClusterID(rec[clusterCol])
	}
	return clusters, nil
}

// NormalizeClusterID makes numeric and textual cluster ids compare equal:
// "2", "2.0" and " 2 " all become "2". Empty and NaN values become Unassigned.
func NormalizeClusterID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return Unassigned
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}
