package report

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/lestrrat-go/strftime"

	"igate/gateway"
	"igate/station"
)

// DefaultTimeFormat prefixes every console line.
const DefaultTimeFormat = "%H:%M:%S"

var escapedByte = regexp.MustCompile(`\\x[0-9a-f]{2}`)

// Console writes one line per event, with the reason and any decoded
// detail indented below it.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	clock *strftime.Strftime

	tag     lipgloss.Style
	gated   lipgloss.Style
	dropped lipgloss.Style
	reason  lipgloss.Style
	invalid lipgloss.Style
	detail  lipgloss.Style
	server  lipgloss.Style
}

// NewConsole creates a console writing to w. Colours are used only when
// w is a terminal.
func NewConsole(w io.Writer, timeFormat string) (*Console, error) {
	if timeFormat == "" {
		timeFormat = DefaultTimeFormat
	}
	clock, err := strftime.New(timeFormat)
	if err != nil {
		return nil, fmt.Errorf("bad time format %q: %w", timeFormat, err)
	}

	r := lipgloss.NewRenderer(w)
	return &Console{
		w:       w,
		clock:   clock,
		tag:     r.NewStyle().Bold(true),
		gated:   r.NewStyle().Foreground(lipgloss.Color("10")),
		dropped: r.NewStyle().Foreground(lipgloss.Color("250")),
		reason:  r.NewStyle().Foreground(lipgloss.Color("11")),
		invalid: r.NewStyle().Foreground(lipgloss.Color("9")),
		detail:  r.NewStyle().Foreground(lipgloss.Color("14")),
		server:  r.NewStyle().Foreground(lipgloss.Color("244")),
	}, nil
}

func (c *Console) Report(e gateway.Event) {
	out := c.Format(e)
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, out)
}

// Format renders an event without writing it.
func (c *Console) Format(e gateway.Event) string {
	var b strings.Builder
	b.WriteString(c.clock.FormatString(e.Time))
	b.WriteString(" [")
	b.WriteString(c.tag.Render(Tag(e)))
	b.WriteString("] ")

	body := c.highlight(e.Routing + e.Payload)
	switch {
	case e.Kind == gateway.EventServer:
		b.WriteString(c.server.Render(body))
	case e.Gated:
		b.WriteString(c.gated.Render(body))
	default:
		b.WriteString(c.dropped.Render(body))
	}

	indent := "\n" + strings.Repeat(" ", len(c.clock.FormatString(e.Time))+8)
	if e.Reason != "" {
		b.WriteString(indent)
		b.WriteString(c.reason.Render(e.Reason))
	}
	if e.Detail != "" {
		b.WriteString(indent)
		b.WriteString(c.detail.Render(e.Detail))
	}
	return b.String()
}

// highlight marks the \xNN escapes of non-ASCII bytes.
func (c *Console) highlight(s string) string {
	return escapedByte.ReplaceAllStringFunc(s, func(m string) string {
		return c.invalid.Render(m)
	})
}

// Tag is the four character label shown in brackets.
func Tag(e gateway.Event) string {
	switch e.Kind {
	case gateway.EventInvalid:
		return "INV "
	case gateway.EventBeacon:
		return "BCN "
	case gateway.EventStatus:
		return "BLN "
	case gateway.EventReply:
		return "RPLY"
	case gateway.EventServer:
		return "IS  "
	}
	if e.Own {
		return "MSG!"
	}
	return e.Type.String()
}

// WriteSummary prints the totals and the stations heard, as shown when
// the gateway stops.
func WriteSummary(w io.Writer, c station.Counts, calls []string, started, now time.Time) {
	fmt.Fprintf(w, "Up %s (since %s)\n", strings.TrimSpace(humanize.RelTime(started, now, "", "")), started.Format(time.DateTime))
	fmt.Fprintf(w, "Received:         %s\n", humanize.Comma(int64(c.Received())))
	fmt.Fprintf(w, "Gated:            %s (%s messages)\n", humanize.Comma(int64(c.Gated)), humanize.Comma(int64(c.MessagesGated)))
	fmt.Fprintf(w, "Not gated:        %s\n", humanize.Comma(int64(c.NotGated)))
	fmt.Fprintf(w, "Invalid routing:  %s\n", humanize.Comma(int64(c.InvalidRouting)))
	fmt.Fprintf(w, "Invalid encoding: %s\n", humanize.Comma(int64(c.InvalidEncoding)))
	fmt.Fprintf(w, "Stations heard:   %d\n", len(calls))
	if len(calls) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(calls, " "))
	}
}
