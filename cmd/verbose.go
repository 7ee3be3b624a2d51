// Live turn-by-turn progress view for --verbose, per SPEC_FULL.md §6.2.
// Grounded on the teacher's internal/tui/chat.Model: a bubbletea program
// fed by a channel-draining tea.Cmd (listenForStreamEvents /
// listenForStreamEventsSync), lipgloss styling, and internal/ui's chroma
// Highlighter for fragment previews — narrowed here to a read-only
// scrollback with no input handling.
package cmd

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rlm-runtime/rlm/internal/rlm/orchestrator"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmsession"
)

var (
	turnStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	feedbackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	finalStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

type turnMsg orchestrator.TurnEvent

type doneMsg struct {
	outcome orchestrator.Outcome
	err     error
}

type verboseModel struct {
	events chan orchestrator.TurnEvent
	lines  []string
	done   bool
	result doneMsg
}

func (m *verboseModel) Init() tea.Cmd {
	return m.listenForTurn()
}

func (m *verboseModel) listenForTurn() tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-m.events
		if !ok {
			return nil
		}
		return turnMsg(evt)
	}
}

func (m *verboseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case turnMsg:
		m.lines = append(m.lines, renderTurn(orchestrator.TurnEvent(msg)))
		return m, m.listenForTurn()
	case doneMsg:
		m.done = true
		m.result = msg
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *verboseModel) View() string {
	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.done && m.result.err == nil {
		b.WriteString(finalStyle.Render("final: " + m.result.outcome.Text))
		b.WriteString("\n")
	}
	return b.String()
}

func renderTurn(evt orchestrator.TurnEvent) string {
	var b strings.Builder
	b.WriteString(turnStyle.Render(fmt.Sprintf("turn %d", evt.Turn)))
	if evt.Fragment != "" {
		b.WriteString("\n")
		b.WriteString(highlightFragment(evt.Fragment))
	}
	if evt.ResultCount >= 0 {
		fmt.Fprintf(&b, "\n  -> %d result(s)", evt.ResultCount)
	}
	if evt.Feedback != "" {
		b.WriteString("\n")
		b.WriteString(feedbackStyle.Render("  feedback: " + evt.Feedback))
	}
	if evt.Err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("  error: " + evt.Err.Error()))
	}
	return b.String()
}

// runVerbose drives sess.Execute in the background while a bubbletea
// program renders each TurnEvent as it arrives on events.
func runVerbose(ctx context.Context, sess *rlmsession.Session, query string, events chan orchestrator.TurnEvent) (orchestrator.Outcome, error) {
	model := &verboseModel{events: events}
	program := tea.NewProgram(model)

	go func() {
		outcome, err := sess.Execute(ctx, query)
		close(events)
		program.Send(doneMsg{outcome: outcome, err: err})
	}()

	finalModel, err := program.Run()
	if err != nil {
		return orchestrator.Outcome{}, err
	}
	vm := finalModel.(*verboseModel)
	return vm.result.outcome, vm.result.err
}
