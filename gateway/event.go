package gateway

import (
	"time"

	"igate/packet"
)

// EventKind says what an Event is about.
type EventKind int

const (
	EventPacket  EventKind = iota // a routing and payload pair from the radio
	EventInvalid                  // a serial line that is not a routing header
	EventBeacon                   // own position sent
	EventStatus                   // status bulletin sent
	EventReply                    // answer to a query addressed to us
	EventServer                   // line received from APRS-IS
)

func (k EventKind) String() string {
	switch k {
	case EventPacket:
		return "packet"
	case EventInvalid:
		return "invalid"
	case EventBeacon:
		return "beacon"
	case EventStatus:
		return "status"
	case EventReply:
		return "reply"
	case EventServer:
		return "server"
	}
	return "unknown"
}

// Event is one outcome worth showing to the operator.
type Event struct {
	Time    time.Time
	Kind    EventKind
	Type    packet.DataType
	Own     bool // message addressed to this gateway
	Routing string
	Payload string
	Invalid int // non-ASCII bytes found, rendered as \xNN
	Gated   bool
	Reason  string
	Detail  string // decoded MIC-E summary, reply text
}

// Reporter receives every Event. Report must not block for long; it runs
// on the gateway's goroutines.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Reporters fans an Event out to several reporters.
type Reporters []Reporter

func (rs Reporters) Report(e Event) {
	for _, r := range rs {
		r.Report(e)
	}
}
