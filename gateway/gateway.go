package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang/geo/s2"

	"igate/aprs"
	"igate/packet"
	"igate/station"
)

// ToCall is the destination (software identifier) of packets this
// gateway originates.
const ToCall = "APZ090"

// Reasons the gateway itself adds to the classifier's.
const (
	ReasonNoNetwork       = "No network/internet, not gated"
	ReasonInvalidRouting  = "Invalid routing"
	ReasonInvalidEncoding = "Invalid encoding"
)

const earthRadiusKm = 6371.01

// Sender is the APRS-IS write path.
type Sender interface {
	Send(ctx context.Context, b []byte) error
}

// LineSource yields the radio's output one line at a time.
type LineSource interface {
	ReadLine() ([]byte, error)
}

// Config is the gateway's own identity and behaviour.
type Config struct {
	Callsign     string // with SSID
	Latitude     aprs.Coordinate
	Longitude    aprs.Coordinate
	Altitude     aprs.Altitude
	BeaconText   string
	BulletinText string

	BeaconPeriod time.Duration
	StatusPeriod time.Duration
	BeaconDelay  time.Duration

	DecodeMicE   bool
	ReplyQueries bool
}

// Gateway reads packets heard on the radio and passes the eligible ones
// to APRS-IS.
type Gateway struct {
	cfg      Config
	lines    LineSource
	session  Sender
	stations *station.Registry
	reporter Reporter
	log      *log.Logger

	position string
	home     s2.LatLng
	now      func() time.Time
}

// New creates a gateway. Nothing is read or sent until Run and Announce.
func New(cfg Config, lines LineSource, session Sender, stations *station.Registry, reporter Reporter, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	if reporter == nil {
		reporter = Reporters(nil)
	}
	return &Gateway{
		cfg:      cfg,
		lines:    lines,
		session:  session,
		stations: stations,
		reporter: reporter,
		log:      logger,
		position: aprs.CompressPosition(cfg.Latitude, cfg.Longitude, cfg.Altitude),
		home:     s2.LatLngFromDegrees(cfg.Latitude.Decimal(), cfg.Longitude.Decimal()),
		now:      time.Now,
	}
}

// Run processes serial input until the source is exhausted or fails, or
// ctx is done. Per-packet problems are counted and reported, never
// returned.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := g.lines.ReadLine()
		if err != nil {
			return g.readError(ctx, err)
		}
		if err := g.handleLine(ctx, line); err != nil {
			return g.readError(ctx, err)
		}
	}
}

func (g *Gateway) readError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("read serial: %w", err)
}

// handleLine treats line as a routing header and, if it is one, reads and
// dispatches the payload line that follows it.
func (g *Gateway) handleLine(ctx context.Context, line []byte) error {
	raw := aprs.TrimLineEnding(line)
	if len(raw) == 0 {
		return nil
	}

	routing, invalid := aprs.DecodeASCII(raw)
	if invalid > 0 {
		g.stations.InvalidEncoding()
		g.stations.InvalidRouting()
		g.report(Event{Kind: EventInvalid, Routing: routing, Invalid: invalid, Reason: ReasonInvalidEncoding})
		return nil
	}
	if !aprs.HasTNCMarker(routing) || !aprs.IsValidRouting(routing, g.stations) {
		g.stations.InvalidRouting()
		g.report(Event{Kind: EventInvalid, Routing: routing, Reason: ReasonInvalidRouting})
		return nil
	}

	next, err := g.lines.ReadLine()
	if err != nil {
		return err
	}
	g.dispatch(ctx, routing, aprs.TrimLineEnding(next))
	return nil
}

func (g *Gateway) dispatch(ctx context.Context, routing string, payload []byte) {
	text, invalid := aprs.DecodeASCII(payload)
	if invalid > 0 {
		g.stations.InvalidEncoding()
	}

	c := aprs.Classify(packet.Raw{Routing: routing, Payload: payload})
	own, isOwn := aprs.ParseOwnMessage(routing, payload, g.cfg.Callsign)
	ev := Event{
		Kind:    EventPacket,
		Type:    c.Type,
		Own:     isOwn,
		Payload: text,
		Invalid: invalid,
	}

	if c.Eligible {
		ev.Routing = aprs.RewriteForGating(routing, g.cfg.Callsign)
		out := make([]byte, 0, len(ev.Routing)+len(payload)+2)
		out = append(out, ev.Routing...)
		out = append(out, payload...)
		out = append(out, '\r', '\n')
		if err := g.session.Send(ctx, out); err != nil {
			g.log.Warn("packet not gated", "err", err)
			g.stations.NotGated()
			ev.Reason = ReasonNoNetwork
		} else {
			g.stations.Gated(aprs.IsMessage(payload))
			ev.Gated = true
		}
	} else {
		ev.Routing = aprs.StripMarker(routing)
		g.stations.NotGated()
		ev.Reason = c.Reason
	}

	if g.cfg.DecodeMicE && c.Type == packet.TypeMicE {
		ev.Detail = g.decodeMicE(routing, payload)
	}
	g.report(ev)

	if isOwn && own.Query != aprs.QueryNone && g.cfg.ReplyQueries {
		g.reply(ctx, own)
	}
}

// decodeMicE summarises a MIC-E packet, adding its distance from here.
func (g *Gateway) decodeMicE(routing string, payload []byte) string {
	r, err := aprs.DecodeMicE(routing, payload)
	if err != nil {
		return "MIC-E: " + err.Error()
	}
	summary := r.Summary()
	if r.Comment != "" {
		summary += ", " + r.Comment
	}
	there := s2.LatLngFromDegrees(r.Latitude.Decimal(), r.Longitude.Decimal())
	return fmt.Sprintf("%s, Dist: %.1f km", summary, DistanceKm(g.home, there))
}

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * earthRadiusKm
}

func (g *Gateway) reply(ctx context.Context, m aprs.OwnMessage) {
	c := g.stations.Snapshot()
	info := aprs.QueryInfo{
		MessageCount: c.MessagesGated,
		StationCount: c.Stations,
		Calls:        g.stations.Calls(),
		Position:     g.position,
		BeaconText:   g.cfg.BeaconText,
		Uptime:       g.stations.Uptime(g.now()),
	}
	body := aprs.BuildQueryReply(m, info)
	if body == "" {
		return
	}

	pkt := g.header() + body
	ev := Event{Kind: EventReply, Routing: g.header(), Payload: body, Detail: m.Query.String() + " from " + m.From}
	if err := g.session.Send(ctx, []byte(pkt+"\r\n")); err != nil {
		g.log.Warn("query reply not sent", "query", m.Query, "err", err)
		ev.Reason = ReasonNoNetwork
	} else {
		ev.Gated = true
	}
	g.report(ev)
}

// header starts every packet this gateway originates.
func (g *Gateway) header() string {
	return g.cfg.Callsign + ">" + ToCall + ",TCPIP*:"
}

func (g *Gateway) report(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = g.now()
	}
	g.reporter.Report(ev)
}
