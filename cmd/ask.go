package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/reviewlens/internal/orchestrator"
)

var showReviews bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question about the reviews",
	Long: `Ask a natural language question about the indexed reviews using RAG (Retrieval-Augmented Generation).

This command:
1. Embeds your question
2. Retrieves the most relevant reviews from the vector index
3. Maps each review to its topic cluster and summarizes the distribution
4. Generates an answer grounded in the reviews using an LLM (OpenAI)

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key for embeddings and LLM
  MILVUS_ADDRESS     - Milvus server address (default: localhost:19530)
  MILVUS_COLLECTION  - Name of the review index

Examples:
  reviewlens ask "Is this moisturizer good for dry skin?"
  reviewlens ask "How does it smell?" --reviews
  reviewlens ask "Does it pill under makeup?" --verbose`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&showReviews, "reviews", false, "Print the review blocks the answer was grounded on")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	ctx := context.Background()

	app, err := buildApp(ctx)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("Question:"))
	fmt.Fprintln(out, questionStyle.Render(question))
	fmt.Fprintln(out)

	if verbose {
		fmt.Fprintln(out, contextStyle.Render("→ Retrieving relevant reviews and generating answer..."))
	}
	res, err := app.Pipeline.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	if res.Outcome == orchestrator.OutcomeNoResults {
		fmt.Fprintln(out, contextStyle.Render("No relevant reviews found"))
		return nil
	}
	if verbose {
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Used %d of %d reviews in the prompt", res.PromptReviews, len(res.Summary.Reviews))))
	}
	fmt.Fprintln(out, renderResult(res, showReviews))
	return nil
}
