package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"igate/aprs"
	"igate/gateway"
	"igate/station"
	"igate/ui/feed"
	"igate/ui/footer"
	"igate/ui/header"
	"igate/ui/sidebar"
)

const sidebarWidth = 20

// Events is a gateway.Reporter feeding the monitor. Events are dropped
// rather than stall the gateway when the screen falls behind.
type Events chan gateway.Event

func (c Events) Report(e gateway.Event) {
	select {
	case c <- e:
	default:
	}
}

type eventMsg gateway.Event

type tickMsg time.Time

// Model is the live monitor: header, heard stations beside the event
// feed, and a counters footer.
type Model struct {
	width  int
	height int

	headerModel  header.Model
	sidebarModel sidebar.Model
	feedModel    feed.Model
	footerModel  footer.Model

	events   <-chan gateway.Event
	stations *station.Registry
	state    func() string
}

// New creates the monitor. state reports the APRS-IS session state.
func New(title string, events <-chan gateway.Event, stations *station.Registry, state func() string) Model {
	return Model{
		width:        80,
		height:       24,
		headerModel:  header.New(title),
		sidebarModel: sidebar.New(),
		feedModel:    feed.New(),
		footerModel:  footer.New(stations.Started()),
		events:       events,
		stations:     stations,
		state:        state,
	}
}

func (m Model) listen() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			return tea.Quit()
		}
		return eventMsg(e)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case eventMsg:
		e := gateway.Event(msg)
		m.feedModel.Add(e)
		if e.Kind == gateway.EventPacket {
			m.sidebarModel.AddCall(aprs.SourceCall(e.Routing))
		}
		m.footerModel.SetCounts(m.stations.Snapshot())
		cmds = append(cmds, m.listen())

	case tickMsg:
		m.footerModel.SetNow(time.Time(msg))
		m.footerModel.SetCounts(m.stations.Snapshot())
		if m.state != nil {
			m.headerModel.SetState(m.state())
		}
		cmds = append(cmds, tick())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		mainHeight := m.height - 2
		if mainHeight < 3 {
			mainHeight = 3
		}
		var cmd tea.Cmd
		m.headerModel, cmd = m.headerModel.Update(tea.WindowSizeMsg{Width: m.width, Height: 1})
		cmds = append(cmds, cmd)
		m.sidebarModel, cmd = m.sidebarModel.Update(tea.WindowSizeMsg{Width: sidebarWidth, Height: mainHeight})
		cmds = append(cmds, cmd)
		m.feedModel, cmd = m.feedModel.Update(tea.WindowSizeMsg{Width: m.width - sidebarWidth, Height: mainHeight})
		cmds = append(cmds, cmd)
		m.footerModel, cmd = m.footerModel.Update(tea.WindowSizeMsg{Width: m.width, Height: 1})
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	middle := lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebarModel.View(),
		m.feedModel.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerModel.View(),
		middle,
		m.footerModel.View(),
	)
}
