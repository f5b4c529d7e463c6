package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Yates-Labs/reviewlens/internal/cluster"
	"github.com/Yates-Labs/reviewlens/internal/orchestrator"
)

var (
	headerColor   = lipgloss.Color("#F780FF") // Bright pink
	questionColor = lipgloss.Color("#8BE9FD") // Cyan
	answerColor   = lipgloss.Color("#E9E9F4") // Light purple/white
	contextColor  = lipgloss.Color("#6272A4") // Muted purple
	errorColor    = lipgloss.Color("#FF5555") // Red
	successColor  = lipgloss.Color("#50FA7B") // Green

	headerStyle   = lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	questionStyle = lipgloss.NewStyle().Foreground(questionColor).Italic(true)
	answerStyle   = lipgloss.NewStyle().Foreground(answerColor)
	contextStyle  = lipgloss.NewStyle().Foreground(contextColor).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	successStyle  = lipgloss.NewStyle().Foreground(successColor)
	reviewStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(contextColor).Padding(0, 1).Width(100)
)

// renderResult formats an answered question with its evidence.
func renderResult(res *orchestrator.Result, showReviews bool) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Answer:"))
	b.WriteString("\n\n")
	b.WriteString(answerStyle.Render(strings.TrimSpace(res.Answer.Text)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("Total reviews used: %d", len(res.Summary.Reviews))))
	b.WriteString("\n")
	b.WriteString(contextStyle.Render("Cluster distribution:"))
	b.WriteString("\n")
	top := res.Summary.Top()
	for i, line := range res.Summary.Overview {
		b.WriteString("  - " + line + "\n")
		if i < len(top) {
			b.WriteString(contextStyle.Render(shareDetail(res.Summary, top[i])))
			b.WriteString("\n")
		}
	}

	if showReviews {
		b.WriteString("\n")
		for _, r := range res.Summary.Reviews {
			b.WriteString(reviewStyle.Render(r))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// shareDetail reports a cluster's share of all retrieved matches next to its
// share of the displayed ones.
func shareDetail(s cluster.Summary, c cluster.Share) string {
	return fmt.Sprintf("      %d of %d retrieved (%.1f%% found, %.1f%% shown)",
		c.Count, s.Found, s.PercentFound(c), s.PercentShown(c))
}
