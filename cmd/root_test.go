package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Yates-Labs/reviewlens/internal/cluster"
	"github.com/Yates-Labs/reviewlens/internal/export"
	"github.com/Yates-Labs/reviewlens/internal/narrative"
	"github.com/Yates-Labs/reviewlens/internal/orchestrator"
	"github.com/Yates-Labs/reviewlens/internal/rag"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"ask": false, "chat": false, "export": false, "index": false, "serve": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "verbose"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag --%s", name)
		}
	}
	if f := serveCmd.Flags().Lookup("addr"); f == nil || f.DefValue != ":8080" {
		t.Errorf("serve --addr default should be :8080")
	}
}

func TestRenderResult(t *testing.T) {
	res := &orchestrator.Result{
		Outcome: orchestrator.OutcomeAnswered,
		Answer:  &narrative.Answer{Text: "  Mostly positive.  "},
		Summary: cluster.Summary{
			Found: 4,
			Shown: 2,
			Clusters: []cluster.Share{
				{ClusterID: "2", Summary: "Hydrating", Count: 3, ShownCount: 1},
				{ClusterID: "5", Summary: "Heavy", Count: 1, ShownCount: 1},
			},
			Reviews:  []string{"Cluster 2 | Glow - Dew: Great", "Cluster 5 | Glow - Dew: Heavy"},
			Overview: []string{"Cluster 2: Hydrating (50.0% of results)"},
		},
	}

	out := renderResult(res, true)
	for _, s := range []string{
		"Mostly positive.", "Total reviews used: 2", "Cluster 2: Hydrating", "Heavy",
		"3 of 4 retrieved (75.0% found, 50.0% shown)",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
	if strings.Contains(renderResult(res, false), "Heavy") {
		t.Error("review blocks should be hidden without --reviews")
	}
}

func TestWriteExportFile(t *testing.T) {
	matches := []rag.ReviewMatch{
		rag.NewMatch("vec-1", 0.9, map[string]any{"id": "r1", "brand": "Glow", "review_text": "Great"}),
	}
	path := filepath.Join(t.TempDir(), "out.csv")

	if err := writeExportFile(path, matches, export.FormatCSV); err != nil {
		t.Fatalf("writeExportFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Great") {
		t.Errorf("exported file missing review text:\n%s", data)
	}

	if err := writeExportFile(filepath.Join(t.TempDir(), "missing", "out.csv"), matches, export.FormatCSV); err == nil {
		t.Error("expected an error for a path in a missing directory")
	}
}

func TestWriteExportFile_ReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	matches := []rag.ReviewMatch{
		rag.NewMatch("vec-1", 0.9, map[string]any{"id": "r1", "review_text": "Great"}),
	}
	if err := writeExportFile("/dev/full", matches, export.FormatCSV); err == nil {
		t.Error("expected the failed write to be reported")
	}
}
