// Package tui is the interactive chat surface over the review pipeline.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Yates-Labs/reviewlens/internal/orchestrator"
	"github.com/Yates-Labs/reviewlens/internal/session"
)

// Asker is the TUI-facing subset of the pipeline.
type Asker interface {
	Ask(ctx context.Context, question string) (*orchestrator.Result, error)
}

// StatusNoResults is shown when a question retrieves nothing displayable.
const StatusNoResults = "No relevant reviews found"

// answerMsg carries a finished question back into Update.
type answerMsg struct {
	question string
	result   *orchestrator.Result
	err      error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	asker   Asker
	history *session.History
	timeout time.Duration

	input    textinput.Model
	chat     viewport.Model
	reviews  viewport.Model
	spinner  spinner.Model
	status   string
	pending  string
	ready    bool
	hasError bool
}

// New creates a chat model appending answered turns to history.
func New(asker Asker, history *session.History, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the product and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	if history == nil {
		history = session.NewHistory(session.DefaultMaxTurns)
	}
	return Model{
		asker:   asker,
		history: history,
		timeout: timeout,
		input:   ti,
		chat:    viewport.New(0, 0),
		reviews: viewport.New(0, 0),
		spinner: sp,
		status:  "Ready. Type a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending != "" {
				return m, nil
			}
			m.pending = q
			m.hasError = false
			m.status = fmt.Sprintf("Searching reviews for %q", q)
			m.input.SetValue("")
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.reviews, cmd = m.reviews.Update(msg)
			return m, cmd
		case "up", "down":
			var cmd tea.Cmd
			m.chat, cmd = m.chat.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.pending = ""
		m.handleAnswer(msg)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.pending == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleAnswer(msg answerMsg) {
	switch {
	case msg.err != nil:
		m.hasError = true
		if errors.Is(msg.err, orchestrator.ErrEmptyQuestion) {
			m.status = "Please enter a question."
			return
		}
		m.status = "Error: " + msg.err.Error()
	case msg.result == nil || msg.result.Outcome == orchestrator.OutcomeNoResults:
		m.status = StatusNoResults
	default:
		msg.result.Record(m.history)
		m.status = fmt.Sprintf("Answered %q from %d reviews", msg.question, msg.result.Summary.Shown)
	}
}

// ask runs the question off the UI loop.
func (m Model) ask(question string) tea.Cmd {
	asker, timeout := m.asker, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		res, err := asker.Ask(ctx, question)
		return answerMsg{question: question, result: res, err: err}
	}
}

func (m *Model) resize(width, height int) {
	_, bh := paneStyle.GetFrameSize()
	_, qh := queryBoxStyle.GetFrameSize()
	reserved := 1 + 1 + qh + 1 + bh // header, status, input, spacer, pane frame
	vh := max(3, height-reserved)

	leftW := max(20, width*2/3) - paneStyle.GetHorizontalFrameSize()
	rightW := max(20, width-width*2/3) - paneStyle.GetHorizontalFrameSize()
	m.chat.Width, m.chat.Height = max(10, leftW), vh
	m.reviews.Width, m.reviews.Height = max(10, rightW), vh
	m.input.Width = max(10, width-queryBoxStyle.GetHorizontalFrameSize()-3)
}

func (m *Model) refresh() {
	m.chat.SetContent(renderHistory(m.history, m.chat.Width))
	m.chat.GotoTop()
	m.reviews.SetContent(renderLatest(m.history, m.reviews.Width))
	m.reviews.GotoTop()
}

// View renders the two panes, the input box and the status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Review Chat with Clusters")
	left := paneStyle.Render(sectionStyle.Render("Chat history") + "\n" + m.chat.View())
	right := paneStyle.Render(sectionStyle.Render("Reviews & clusters") + "\n" + m.reviews.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	input := queryBoxStyle.Render(m.input.View())

	status := statusStyle.Render(m.status)
	if m.hasError {
		status = errorStyle.Render(m.status)
	}
	if m.pending != "" {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + body + "\n" + input + "\n" + status
}

// renderHistory lists turns newest-first as Q/A pairs.
func renderHistory(h *session.History, width int) string {
	turns := h.All()
	if len(turns) == 0 {
		return mutedStyle.Render("No questions yet.")
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Width(width).Render("Q: " + t.Question))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render("A: " + t.Answer))
		b.WriteString("\n")
	}
	return b.String()
}

// renderLatest shows the evidence behind the most recent answer.
func renderLatest(h *session.History, width int) string {
	last, ok := h.Latest()
	if !ok {
		return mutedStyle.Render("Reviews used for the latest answer appear here.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("Total reviews used:"), len(last.Reviews))
	b.WriteString(labelStyle.Render("Cluster distribution:"))
	b.WriteString("\n")
	for _, line := range last.Overview {
		b.WriteString(lipgloss.NewStyle().Width(width).Render("- " + line))
		b.WriteString("\n")
	}
	boxWidth := max(10, width-reviewBoxStyle.GetHorizontalFrameSize())
	for _, r := range last.Reviews {
		b.WriteString(reviewBoxStyle.Width(boxWidth).Render(r))
		b.WriteString("\n")
	}
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F780FF")).Bold(true)
	sectionStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE9FD")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4")).Italic(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F780FF"))
	paneStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	reviewBoxStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#6272A4")).Padding(0, 1)
)
