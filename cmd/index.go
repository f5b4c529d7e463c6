package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yates-Labs/reviewlens/internal/orchestrator"
	"github.com/Yates-Labs/reviewlens/internal/rag"
)

var (
	batchSize     int
	keepEmptyText bool
)

var indexCmd = &cobra.Command{
	Use:   "index [reviews.csv]",
	Short: "Embed a reviews CSV into the vector index",
	Long: `Read a reviews CSV (id, brand, product_name, review_text, rating), embed the
review text in batches and insert the vectors into the configured store.

The review id is stored in each vector's metadata so cluster lookups work.

Examples:
  reviewlens index reviews.csv
  reviewlens index reviews.csv --batch-size 128 --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().IntVar(&batchSize, "batch-size", rag.DefaultIndexOptions().BatchSize, "Number of reviews embedded per request")
	indexCmd.Flags().BoolVar(&keepEmptyText, "keep-empty", false, "Index reviews without text using brand and product name")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	secrets, err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open reviews: %w", err)
	}
	defer f.Close()

	rows, err := rag.ReadReviewsCSV(f)
	if err != nil {
		return err
	}

	embedder, store, err := orchestrator.Connect(ctx, cfg, secrets, logger)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer store.Close()

	opts := rag.DefaultIndexOptions()
	opts.BatchSize = batchSize
	opts.SkipEmptyText = !keepEmptyText

	logger.Info("indexing reviews", zap.String("file", args[0]), zap.Int("rows", len(rows)), zap.Int("batch_size", opts.BatchSize))
	stats, err := rag.IndexReviews(ctx, rows, embedder, store, opts)
	if err != nil {
		return fmt.Errorf("%s indexed %d of %d reviews: %w", errorStyle.Render("Error:"), stats.Indexed, stats.Read, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Indexed %d reviews (%d read, %d skipped)", stats.Indexed, stats.Read, stats.Skipped)))
	return nil
}
