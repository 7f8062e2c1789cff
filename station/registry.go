package station

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry keeps the callsigns heard on the radio and the gateway's
// packet counters for the lifetime of the process. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	started time.Time
	calls   []string
	seen    map[string]bool
	counts  Counts

	gated           prometheus.Counter
	notGated        prometheus.Counter
	invalidEncoding prometheus.Counter
	invalidRouting  prometheus.Counter
	messagesGated   prometheus.Counter
}

// Counts is a snapshot of the registry counters.
type Counts struct {
	Gated           int
	NotGated        int
	InvalidEncoding int
	InvalidRouting  int
	MessagesGated   int
	Stations        int
}

// Received is every routing line seen: gated, refused or malformed.
func (c Counts) Received() int {
	return c.Gated + c.NotGated + c.InvalidRouting
}

// New creates a registry. Metrics are registered with reg when it is
// not nil.
func New(started time.Time, reg prometheus.Registerer) *Registry {
	r := &Registry{
		started: started,
		seen:    make(map[string]bool),
		gated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "igate", Name: "packets_gated_total",
			Help: "Packets passed from the radio to APRS-IS.",
		}),
		notGated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "igate", Name: "packets_not_gated_total",
			Help: "Packets heard on the radio but not passed to APRS-IS.",
		}),
		invalidEncoding: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "igate", Name: "lines_invalid_encoding_total",
			Help: "Serial lines containing non-ASCII bytes.",
		}),
		invalidRouting: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "igate", Name: "lines_invalid_routing_total",
			Help: "Serial lines that are not a valid routing header.",
		}),
		messagesGated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "igate", Name: "messages_gated_total",
			Help: "APRS messages passed to APRS-IS.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.gated, r.notGated, r.invalidEncoding, r.invalidRouting, r.messagesGated,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "igate", Name: "stations_heard",
				Help: "Unique callsigns heard on the radio.",
			}, func() float64 { return float64(r.Snapshot().Stations) }),
		)
	}
	return r
}

// AddCall records call the first time it is heard and reports whether
// it was new.
func (r *Registry) AddCall(call string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[call] {
		return false
	}
	r.seen[call] = true
	r.calls = append(r.calls, call)
	return true
}

// Calls returns the heard callsigns in the order first heard.
func (r *Registry) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *Registry) Gated(message bool) {
	r.mu.Lock()
	r.counts.Gated++
	if message {
		r.counts.MessagesGated++
	}
	r.mu.Unlock()
	r.gated.Inc()
	if message {
		r.messagesGated.Inc()
	}
}

func (r *Registry) NotGated() {
	r.mu.Lock()
	r.counts.NotGated++
	r.mu.Unlock()
	r.notGated.Inc()
}

func (r *Registry) InvalidEncoding() {
	r.mu.Lock()
	r.counts.InvalidEncoding++
	r.mu.Unlock()
	r.invalidEncoding.Inc()
}

func (r *Registry) InvalidRouting() {
	r.mu.Lock()
	r.counts.InvalidRouting++
	r.mu.Unlock()
	r.invalidRouting.Inc()
}

// Snapshot returns the current counters.
func (r *Registry) Snapshot() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counts
	c.Stations = len(r.calls)
	return c
}

// Started is when the gateway came up.
func (r *Registry) Started() time.Time {
	return r.started
}

// Uptime renders the time since start as "IGate up D days H.H h".
func (r *Registry) Uptime(now time.Time) string {
	up := now.Sub(r.started)
	days := int(up.Hours()) / 24
	hours := up.Hours() - float64(days*24)
	return fmt.Sprintf("IGate up %d days %.1f h", days, hours)
}

// StatusText is the bulletin text once something has been gated;
// ok is false before that.
func (r *Registry) StatusText(now time.Time) (string, bool) {
	c := r.Snapshot()
	if c.Gated == 0 {
		return "", false
	}
	return fmt.Sprintf("%s - %d rcvd, %d gtd, %d unique calls",
		r.Uptime(now), c.Received(), c.Gated, c.Stations), true
}
