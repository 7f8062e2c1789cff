package sidebar

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model lists the stations heard most recently, newest first.
type Model struct {
	width  int
	height int
	calls  []string
}

func New() Model {
	return Model{
		width:  20,
		height: 24,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// AddCall moves call to the top of the list.
func (m *Model) AddCall(call string) {
	if call == "" {
		return
	}
	for i, c := range m.calls {
		if c == call {
			m.calls = append(m.calls[:i], m.calls[i+1:]...)
			break
		}
	}
	m.calls = append([]string{call}, m.calls...)
	m.trim()
}

// Calls returns the list as shown.
func (m Model) Calls() []string {
	return m.calls
}

// trim keeps as many calls as fit inside the border below the title.
func (m *Model) trim() {
	limit := m.height - 3
	if limit < 1 {
		limit = 1
	}
	if len(m.calls) > limit {
		m.calls = m.calls[:limit]
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

	title := lipgloss.NewStyle().
		Bold(true).
		Underline(true).
		Width(m.width - 4).
		Render("Heard")

	var b strings.Builder
	b.WriteString(title)

	room := m.height - 3
	for i, call := range m.calls {
		if i >= room {
			break
		}
		b.WriteRune('\n')
		b.WriteString(fmt.Sprintf("%.*s", m.width-4, call))
	}
	return style.Render(b.String())
}
