package footer

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"igate/station"
)

// Model shows the gateway counters and uptime on one line.
type Model struct {
	width   int
	counts  station.Counts
	started time.Time
	now     time.Time
}

func New(started time.Time) Model {
	return Model{width: 80, started: started, now: started}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) SetCounts(c station.Counts) {
	m.counts = c
}

func (m *Model) SetNow(now time.Time) {
	m.now = now
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

// Text is the footer without styling.
func (m Model) Text() string {
	c := m.counts
	up := strings.TrimSpace(humanize.RelTime(m.started, m.now, "", ""))
	return fmt.Sprintf("rcvd %s | gated %s | not gated %s | invalid %s | %d stations | up %s | q to quit",
		humanize.Comma(int64(c.Received())), humanize.Comma(int64(c.Gated)),
		humanize.Comma(int64(c.NotGated)), humanize.Comma(int64(c.InvalidRouting)),
		c.Stations, up)
}

func (m Model) View() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Background(lipgloss.Color("236")).
		Width(m.width).
		Render(m.Text())
}
