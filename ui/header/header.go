package header

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the header's state
type Model struct {
	width int
	title string
	state string
}

// New creates a header showing title and the APRS-IS session state.
func New(title string) Model {
	return Model{
		width: 80,
		title: title,
		state: "disconnected",
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) SetState(state string) {
	m.state = state
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m Model) View() string {
	bg := lipgloss.Color("63")
	if m.state != "logged in" {
		bg = lipgloss.Color("124")
	}
	style := lipgloss.NewStyle().
		Bold(true).
		Background(bg).
		Foreground(lipgloss.Color("255")).
		Width(m.width).
		Align(lipgloss.Center)

	return style.Render(m.title + "  APRS-IS: " + m.state)
}
