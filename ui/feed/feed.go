package feed

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"igate/gateway"
	"igate/report"
)

// Model scrolls the gateway's events, oldest at the top.
type Model struct {
	width  int
	height int
	lines  []line
}

type line struct {
	text  string
	style lipgloss.Style
}

var (
	gatedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	droppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	reasonStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

func New() Model {
	return Model{width: 60, height: 10}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Add appends an event, with its reason and detail on their own lines.
func (m *Model) Add(e gateway.Event) {
	head := e.Time.Format("15:04:05") + " [" + report.Tag(e) + "] " + e.Routing + e.Payload
	style := droppedStyle
	if e.Gated {
		style = gatedStyle
	}
	m.lines = append(m.lines, line{head, style})
	if e.Reason != "" {
		m.lines = append(m.lines, line{"         " + e.Reason, reasonStyle})
	}
	if e.Detail != "" {
		m.lines = append(m.lines, line{"         " + e.Detail, detailStyle})
	}
	m.trim()
}

func (m *Model) trim() {
	limit := m.height - 2
	if limit < 1 {
		limit = 1
	}
	if len(m.lines) > limit {
		m.lines = m.lines[len(m.lines)-limit:]
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trim()
	}
	return m, nil
}

func (m Model) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(m.width-2).
		Height(m.height-2).
		Padding(0, 1)

	contentWidth := m.width - 4
	if contentWidth < 0 {
		contentWidth = 0
	}

	rendered := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		text := l.text
		if len(text) > contentWidth {
			text = text[:contentWidth]
		}
		rendered = append(rendered, l.style.Render(text))
	}
	return style.Render(strings.Join(rendered, "\n"))
}
