package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yates-Labs/reviewlens/internal/config"
	"github.com/Yates-Labs/reviewlens/internal/logging"
	"github.com/Yates-Labs/reviewlens/internal/orchestrator"
)

var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reviewlens",
	Short: "ReviewLens - Ask questions about product reviews",
	Long: `ReviewLens answers natural-language questions about a corpus of product reviews.

It retrieves the most relevant reviews from a vector index, groups them by
their precomputed topic clusters and generates an answer grounded in those
reviews and cluster summaries.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load .env file if it exists
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		l, err := logging.New(verbose)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress and pipeline stages")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config.
func loadConfig() (*config.AppConfig, error) {
	return config.Load(configPath)
}

// buildApp loads the config and wires the full pipeline.
func buildApp(ctx context.Context) (*orchestrator.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return orchestrator.Build(ctx, cfg, logger)
}
