package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/reviewlens/internal/logging"
	"github.com/Yates-Labs/reviewlens/internal/session"
	"github.com/Yates-Labs/reviewlens/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat over the reviews",
	Long: `Start an interactive terminal chat. The left pane shows the chat history,
newest first; the right pane shows the reviews and cluster distribution behind
the latest answer. History is kept in memory for the session only.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// stderr belongs to the full-screen UI
	logger = logging.Nop()

	app, err := buildApp(ctx)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer app.Close()

	history := session.NewHistory(app.Config.Session.MaxTurns)
	model := tui.New(app.Pipeline, history, app.Config.Service.Timeout()*4)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}
