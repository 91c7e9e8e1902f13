// Package dashboard renders a terminal view of recent sessions served by
// the worker.
package dashboard

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Pamacea/claude-mem/internal/client"
	"github.com/Pamacea/claude-mem/internal/protocol"
)

const refreshInterval = 2 * time.Second

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	preparingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model is the bubbletea model for the sessions dashboard.
type Model struct {
	client   *client.Client
	sessions []protocol.SessionInfo
	cursor   int
	err      error
}

// NewModel creates a dashboard model over a worker client.
func NewModel(c *client.Client) *Model {
	return &Model{client: c}
}

type sessionsMsg struct {
	sessions []protocol.SessionInfo
}

type errMsg struct {
	err error
}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Init starts the first fetch and the refresh ticker.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh, tickCmd())
}

func (m *Model) refresh() tea.Msg {
	sessions, err := m.client.Sessions()
	if err != nil {
		return errMsg{err: err}
	}
	return sessionsMsg{sessions: sessions}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.moveCursor(-1)
		case "down", "j":
			m.moveCursor(1)
		case "r":
			return m, m.refresh
		}
	case sessionsMsg:
		m.sessions = msg.sessions
		m.err = nil
		if m.cursor >= len(m.sessions) && len(m.sessions) > 0 {
			m.cursor = len(m.sessions) - 1
		}
		return m, tickCmd()
	case errMsg:
		m.err = msg.err
		return m, tickCmd()
	case tickMsg:
		return m, m.refresh
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.sessions) && len(m.sessions) > 0 {
		m.cursor = len(m.sessions) - 1
	}
}

// SelectedSession returns the session under the cursor.
func (m *Model) SelectedSession() *protocol.SessionInfo {
	if m.cursor >= 0 && m.cursor < len(m.sessions) {
		return &m.sessions[m.cursor]
	}
	return nil
}

// View renders the dashboard.
func (m *Model) View() string {
	s := titleStyle.Render("claude-mem sessions") + "\n\n"

	if m.err != nil {
		s += errStyle.Render(fmt.Sprintf("worker unreachable: %v", m.err)) + "\n\n"
	}

	if len(m.sessions) == 0 {
		s += mutedStyle.Render("no sessions yet") + "\n"
	} else {
		s += headerStyle.Render(fmt.Sprintf("  %-12s %-20s %-10s %8s %8s", "STATUS", "PROJECT", "SESSION", "PROMPTS", "OBS")) + "\n"
		for i, sess := range m.sessions {
			cursor := "  "
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
			}
			line := fmt.Sprintf("%-12s %-20s %-10s %8d %8d",
				sess.Status, truncate(sess.Project, 20), truncate(sess.SessionID, 10),
				sess.Prompts, sess.Observations)
			s += cursor + statusStyle(sess.Status).Render(line) + "\n"
		}
	}

	s += "\n" + mutedStyle.Render("j/k move · r refresh · q quit") + "\n"
	return s
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case protocol.SessionActive:
		return activeStyle
	case protocol.SessionPreparing:
		return preparingStyle
	default:
		return mutedStyle
	}
}

// truncate shortens s to max display runes. Slicing by rune, not byte,
// keeps multi-byte project names from rendering as mojibake.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
