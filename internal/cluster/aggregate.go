// Package cluster resolves retrieved reviews to their precomputed topic
// clusters and summarizes how the retrieved set is distributed across them.
package cluster

import (
	"fmt"
	"sort"

	"github.com/Yates-Labs/reviewlens/internal/rag"
)

// OverviewSize is the number of clusters shown in the overview.
const OverviewSize = 3

// Lookup resolves reviews to clusters and clusters to summaries.
// *reference.Tables implements it.
type Lookup interface {
	ClusterFor(reviewID string) string
	SummaryFor(clusterID string) string
}

// Share is one cluster's presence in a retrieved set.
type Share struct {
	ClusterID string
	Summary   string

	// Count is the number of matches in the cluster, with or without text
	Count int

	// ShownCount is the number of matches with displayable text
	ShownCount int

	firstSeen int
}

// Summary is the per-query aggregation of a ranked match list.
type Summary struct {
	// Found is the number of matches; Shown the number with review text
	Found int
	Shown int

	// Clusters holds every cluster present, ranked by Count descending,
	// ties by first occurrence in the match list
	Clusters []Share

	// Assignments is the cluster id of each match, parallel to the input
	Assignments []string

	// Reviews holds one formatted block per match with text, in rank order
	Reviews []string

	// Overview holds one line per top cluster, at most OverviewSize
	Overview []string
}

// Aggregate resolves each match's cluster and builds the distribution,
// review blocks and overview lines. It never fails.
func Aggregate(matches []rag.ReviewMatch, lookup Lookup) Summary {
	s := Summary{
		Found:       len(matches),
		Assignments: make([]string, len(matches)),
		Reviews:     make([]string, 0, len(matches)),
	}

	index := make(map[string]int)
	for i, m := range matches {
		cid := lookup.ClusterFor(m.ReviewID)
		s.Assignments[i] = cid

		j, ok := index[cid]
		if !ok {
			j = len(s.Clusters)
			index[cid] = j
			s.Clusters = append(s.Clusters, Share{
				ClusterID: cid,
				Summary:   lookup.SummaryFor(cid),
				firstSeen: i,
			})
		}
		s.Clusters[j].Count++

		if !m.HasText() {
			continue
		}
		s.Clusters[j].ShownCount++
		s.Shown++
		s.Reviews = append(s.Reviews, FormatReview(cid, m))
	}

	sort.SliceStable(s.Clusters, func(a, b int) bool {
		if s.Clusters[a].Count != s.Clusters[b].Count {
			return s.Clusters[a].Count > s.Clusters[b].Count
		}
		return s.Clusters[a].firstSeen < s.Clusters[b].firstSeen
	})

	top := s.Top()
	s.Overview = make([]string, len(top))
	for i, c := range top {
		s.Overview[i] = FormatOverviewLine(c.ClusterID, c.Summary, s.PercentShown(c))
	}
	return s
}

// Empty reports whether there is nothing to ground an answer on.
func (s Summary) Empty() bool {
	return s.Shown == 0
}

// Top returns the highest-ranked clusters, at most OverviewSize.
func (s Summary) Top() []Share {
	if len(s.Clusters) > OverviewSize {
		return s.Clusters[:OverviewSize]
	}
	return s.Clusters
}

// Distribution maps cluster id to the number of matches in it.
func (s Summary) Distribution() map[string]int {
	d := make(map[string]int, len(s.Clusters))
	for _, c := range s.Clusters {
		d[c.ClusterID] = c.Count
	}
	return d
}

// PercentShown is the cluster's share of displayable results, in [0,100].
func (s Summary) PercentShown(c Share) float64 {
	return percent(c.ShownCount, s.Shown)
}

// PercentFound is the cluster's share of all retrieved results, in [0,100].
func (s Summary) PercentFound(c Share) float64 {
	return percent(c.Count, s.Found)
}

// FormatReview renders one review block for the prompt context.
func FormatReview(clusterID string, m rag.ReviewMatch) string {
	return fmt.Sprintf("Cluster %s | %s - %s: %s",
		clusterID, m.Metadata.Brand, m.Metadata.ProductName, m.Metadata.ReviewText)
}

// FormatOverviewLine renders one cluster overview line.
func FormatOverviewLine(clusterID, summary string, pct float64) string {
	return fmt.Sprintf("Cluster %s: %s (%.1f%% of results)", clusterID, summary, pct)
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
