package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/reviewlens/internal/export"
	"github.com/Yates-Labs/reviewlens/internal/rag"
)

var (
	exportOut    string
	exportAll    bool
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export [question]",
	Short: "Export the reviews retrieved for a question",
	Long: `Retrieve the reviews relevant to a question and write them to a file.

Columns: id, score, brand, product_name, review_text, rating, in ranked order.
Reviews without text are kept with an empty review_text cell. No answer is
generated.

Examples:
  reviewlens export "Is it good for dry skin?" --out dry_skin.csv
  reviewlens export "fragrance" --all --format json --out fragrance.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Rank every review in the index instead of the top-k")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Export format: csv or json")
}

func runExport(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	ctx := context.Background()

	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	app, err := buildApp(ctx)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer app.Close()

	matches, err := app.Pipeline.Retrieve(ctx, question, exportAll)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	if exportOut == "" {
		if err := export.ExportMatches(matches, string(format), cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("failed to export reviews: %w", err)
		}
		return nil
	}

	if err := writeExportFile(exportOut, matches, format); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf("✓ Exported %d reviews to %s", len(matches), exportOut)))
	return nil
}

// writeExportFile writes matches to path. A failed close is reported, since
// it can mean buffered rows never reached the disk.
func writeExportFile(path string, matches []rag.ReviewMatch, format export.Format) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if err := export.ExportMatches(matches, string(format), f); err != nil {
		return fmt.Errorf("failed to export reviews: %w", err)
	}
	return nil
}
