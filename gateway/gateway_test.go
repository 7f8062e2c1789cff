package gateway

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igate/aprs"
	"igate/device/aprsis"
	"igate/packet"
	"igate/station"
)

var start = time.Date(2020, 4, 14, 10, 0, 0, 0, time.UTC)

type fakeLines struct {
	lines []string
	err   error
}

func (f *fakeLines) ReadLine() ([]byte, error) {
	if len(f.lines) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return []byte(line), nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeSender) Send(_ context.Context, b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.sent = append(f.sent, string(b))
	return nil
}

func (f *fakeSender) packets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func testConfig() Config {
	return Config{
		Callsign:     "N0CALL-10",
		Latitude:     aprs.Coordinate{Degrees: 54.11, Minutes: 2.22, Hemisphere: 'N'},
		Longitude:    aprs.Coordinate{Degrees: 10.11, Minutes: 20.22, Hemisphere: 'E'},
		BeaconText:   "IGate test",
		BulletinText: "IGate JO54 ready",
		BeaconPeriod: time.Hour,
		StatusPeriod: time.Hour,
		BeaconDelay:  10 * time.Millisecond,
		ReplyQueries: true,
	}
}

func newTestGateway(cfg Config, lines ...string) (*Gateway, *fakeSender, *recorder, *station.Registry) {
	sender := &fakeSender{}
	rec := &recorder{}
	stations := station.New(start, nil)
	g := New(cfg, &fakeLines{lines: lines}, sender, stations, rec, log.New(io.Discard))
	g.now = func() time.Time { return start.Add(90 * time.Minute) }
	return g, sender, rec, stations
}

const posRouting = "DU1KG-9>APRS,WIDE1-1 [04/14/20 10:00:00] <UI>:\r\n"

func TestRunGatesEligiblePacket(t *testing.T) {
	g, sender, rec, stations := newTestGateway(testConfig(), posRouting, "=1407.09N/12058.07E#PHG2360\r\n")

	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, []string{"DU1KG-9>APRS,WIDE1-1,qAR,N0CALL-10:=1407.09N/12058.07E#PHG2360\r\n"}, sender.packets())
	c := stations.Snapshot()
	assert.Equal(t, 1, c.Gated)
	assert.Equal(t, 1, c.Received())
	assert.Equal(t, []string{"DU1KG"}, stations.Calls())

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventPacket, events[0].Kind)
	assert.Equal(t, packet.TypePosition, events[0].Type)
	assert.True(t, events[0].Gated)
	assert.Empty(t, events[0].Reason)
	assert.Equal(t, "DU1KG-9>APRS,WIDE1-1,qAR,N0CALL-10:", events[0].Routing)
	assert.Equal(t, start.Add(90*time.Minute), events[0].Time)
}

func TestRunSendFailure(t *testing.T) {
	g, sender, rec, stations := newTestGateway(testConfig(), posRouting, "=1407.09N/12058.07E#\r\n")
	sender.fail = true

	require.NoError(t, g.Run(context.Background()))

	c := stations.Snapshot()
	assert.Equal(t, 0, c.Gated)
	assert.Equal(t, 1, c.NotGated)
	events := rec.all()
	require.Len(t, events, 1)
	assert.False(t, events[0].Gated)
	assert.Equal(t, ReasonNoNetwork, events[0].Reason)
}

func TestRunIneligiblePacket(t *testing.T) {
	g, sender, rec, stations := newTestGateway(testConfig(),
		"N0CALL-5>APRS,RFONLY [04/14/20 10:00:00] <UI>:\r\n", ">local only\r\n")

	require.NoError(t, g.Run(context.Background()))

	assert.Empty(t, sender.packets())
	assert.Equal(t, 1, stations.Snapshot().NotGated)
	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "N0CALL-5>APRS,RFONLY:", events[0].Routing)
	assert.Equal(t, aprs.ReasonRFOnly, events[0].Reason)
	assert.Equal(t, packet.TypeStatus, events[0].Type)
}

func TestRunInvalidRouting(t *testing.T) {
	g, sender, rec, stations := newTestGateway(testConfig(),
		"hello world\r\n",
		"\r\n",
		"DU1KG-9>APRS no marker:\r\n",
		posRouting, "=1407.09N/12058.07E#\r\n",
	)

	require.NoError(t, g.Run(context.Background()))

	c := stations.Snapshot()
	assert.Equal(t, 2, c.InvalidRouting)
	assert.Equal(t, 1, c.Gated)
	assert.Equal(t, 3, c.Received())
	assert.Len(t, sender.packets(), 1)

	events := rec.all()
	require.Len(t, events, 3)
	assert.Equal(t, EventInvalid, events[0].Kind)
	assert.Equal(t, ReasonInvalidRouting, events[0].Reason)
	assert.Equal(t, "hello world", events[0].Routing)
}

func TestRunInvalidEncoding(t *testing.T) {
	g, sender, rec, stations := newTestGateway(testConfig(),
		"DU1KG\xff>APRS [04/14/20 10:00:00] <UI>:\r\n",
		posRouting, ">temp 21\xb0C\r\n",
	)

	require.NoError(t, g.Run(context.Background()))

	c := stations.Snapshot()
	assert.Equal(t, 2, c.InvalidEncoding)
	assert.Equal(t, 1, c.InvalidRouting)
	assert.Equal(t, 1, c.Gated, "a payload with stray bytes is still gated")

	assert.Equal(t, []string{"DU1KG-9>APRS,WIDE1-1,qAR,N0CALL-10:>temp 21\xb0C\r\n"}, sender.packets())

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, `DU1KG\xff>APRS [04/14/20 10:00:00] <UI>:`, events[0].Routing)
	assert.Equal(t, 1, events[0].Invalid)
	assert.Equal(t, `>temp 21\xb0C`, events[1].Payload)
	assert.Equal(t, 1, events[1].Invalid)
}

func TestRunDecodesMicE(t *testing.T) {
	cfg := testConfig()
	cfg.DecodeMicE = true
	cfg.Latitude = aprs.Coordinate{Degrees: 14, Minutes: 7.09, Hemisphere: 'N'}
	cfg.Longitude = aprs.Coordinate{Degrees: 120, Minutes: 58.07, Hemisphere: 'E'}
	g, _, rec, _ := newTestGateway(cfg,
		"DU1KG-1>Q4PWQ0,WIDE1-1 [14/04/2020 10:04:21] <UI>:\r\n",
		"`0V l\x1c-/`\":-}435.350MHz DU1KG home 73 Klaus_%\r\n",
		"DU1KG-1>Q4PWQ0,WIDE1-1 [14/04/2020 10:04:21] <UI>:\r\n",
		"`0V\r\n",
	)

	require.NoError(t, g.Run(context.Background()))

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, packet.TypeMicE, events[0].Type)
	assert.True(t, strings.HasPrefix(events[0].Detail,
		"Pos: 14 7.1'N, 120 58.04'E, In Service, Course: 17 deg, Alt: 568 m, Yaesu FTM-400DR, 435.350MHz DU1KG home 73 Klaus"),
		events[0].Detail)
	assert.Contains(t, events[0].Detail, "Dist: 0.1 km")

	assert.True(t, strings.HasPrefix(events[1].Detail, "MIC-E: "), events[1].Detail)
}

func TestRunMicEWithoutDecoding(t *testing.T) {
	g, _, rec, _ := newTestGateway(testConfig(),
		"DU1KG-1>Q4PWQ0,WIDE1-1 [14/04/2020 10:04:21] <UI>:\r\n",
		"`0V l\x1c-/`\":-}\r\n",
	)

	require.NoError(t, g.Run(context.Background()))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Detail)
}

func TestRunRepliesToQuery(t *testing.T) {
	g, sender, rec, _ := newTestGateway(testConfig(), posRouting, ":N0CALL   :?IGATE?\r\n")

	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, []string{
		"DU1KG-9>APRS,WIDE1-1,qAR,N0CALL-10::N0CALL   :?IGATE?\r\n",
		"N0CALL-10>APZ090,TCPIP*:<IGATE,MSG_CNT=1,LOC_CNT=1\r\n",
	}, sender.packets())

	events := rec.all()
	require.Len(t, events, 2)
	assert.True(t, events[0].Own)
	assert.Equal(t, EventReply, events[1].Kind)
	assert.Equal(t, "?IGATE? from DU1KG-9", events[1].Detail)
}

func TestRunStatusQuery(t *testing.T) {
	g, sender, _, _ := newTestGateway(testConfig(), posRouting, ":N0CALL-10:?APRSS\r\n")

	require.NoError(t, g.Run(context.Background()))

	packets := sender.packets()
	require.Len(t, packets, 2)
	assert.Equal(t, "N0CALL-10>APZ090,TCPIP*:>IGate up 0 days 1.5 h\r\n", packets[1])
}

func TestRunQueryRepliesDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.ReplyQueries = false
	g, sender, rec, _ := newTestGateway(cfg, posRouting, ":N0CALL   :?APRSP\r\n")

	require.NoError(t, g.Run(context.Background()))

	assert.Len(t, sender.packets(), 1)
	events := rec.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].Own)
}

func TestRunMessageToOthersIsNotOwn(t *testing.T) {
	g, sender, rec, stations := newTestGateway(testConfig(), posRouting, ":W1AW     :?IGATE?\r\n")

	require.NoError(t, g.Run(context.Background()))

	assert.Len(t, sender.packets(), 1)
	assert.False(t, rec.all()[0].Own)
	assert.Equal(t, 1, stations.Snapshot().MessagesGated)
}

func TestRunCountsThirdPartyMessage(t *testing.T) {
	g, sender, _, stations := newTestGateway(testConfig(),
		posRouting, "}W1AW>APRS,WIDE1-1::DU1KG    :hello{7\r\n",
		posRouting, "}W1AW>APRS,WIDE1-1:>just a status\r\n",
	)

	require.NoError(t, g.Run(context.Background()))

	assert.Len(t, sender.packets(), 2)
	c := stations.Snapshot()
	assert.Equal(t, 2, c.Gated)
	assert.Equal(t, 1, c.MessagesGated)
}

// dropFirstServer logs every client in, hangs up on the first one and
// passes on whatever later clients send after login.
func dropFirstServer(t *testing.T) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	lines := make(chan string, 16)
	go func() {
		for n := 0; ; n++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn, hangUp bool) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				io.WriteString(conn, "# aprsc 2.1.10-gd72a17c\r\n")
				if _, err := r.ReadString('\n'); err != nil {
					return
				}
				io.WriteString(conn, "# logresp N0CALL-10 verified, server T2TEST\r\n")
				if hangUp {
					return
				}
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					lines <- line
				}
			}(conn, n == 0)
		}
	}()
	return ln.Addr().String(), lines
}

func TestRunGatesAfterReconnect(t *testing.T) {
	addr, lines := dropFirstServer(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	session := aprsis.New(aprsis.Config{
		Host:           host,
		Port:           portNum,
		Callsign:       "N0CALL-10",
		Passcode:       13023,
		Software:       "igate test",
		RangeKm:        150,
		ConnectTimeout: time.Second,
		LoginTimeout:   time.Second,
		RetryDelay:     10 * time.Millisecond,
	}, aprsis.WithLogger(log.New(io.Discard)))
	t.Cleanup(session.Close)

	require.NoError(t, session.Connect(context.Background()))
	require.Eventually(t, func() bool { return session.State() == aprsis.Disconnected }, 2*time.Second, 5*time.Millisecond)

	rec := &recorder{}
	stations := station.New(start, nil)
	g := New(testConfig(), &fakeLines{lines: []string{posRouting, "=1407.09N/12058.07E#\r\n"}}, session, stations, rec, log.New(io.Discard))

	require.NoError(t, g.Run(context.Background()))

	select {
	case line := <-lines:
		assert.Equal(t, "DU1KG-9>APRS,WIDE1-1,qAR,N0CALL-10:=1407.09N/12058.07E#\r\n", line)
	case <-time.After(2 * time.Second):
		t.Fatal("packet never reached the server")
	}
	c := stations.Snapshot()
	assert.Equal(t, 1, c.Gated)
	assert.Equal(t, 0, c.NotGated)
	events := rec.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].Gated)
	assert.Empty(t, events[0].Reason)
	assert.Equal(t, aprsis.LoggedIn, session.State())
}

func TestRunEndsAtMissingPayload(t *testing.T) {
	g, sender, _, _ := newTestGateway(testConfig(), posRouting)

	require.NoError(t, g.Run(context.Background()))
	assert.Empty(t, sender.packets())
}

func TestRunReadError(t *testing.T) {
	sender := &fakeSender{}
	lines := &fakeLines{err: errors.New("device unplugged")}
	g := New(testConfig(), lines, sender, station.New(start, nil), nil, log.New(io.Discard))

	err := g.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestRunCancelled(t *testing.T) {
	g, _, _, _ := newTestGateway(testConfig(), posRouting, "=1407.09N/12058.07E#\r\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, g.Run(ctx), context.Canceled)
}

func TestBeaconAndStatusPackets(t *testing.T) {
	g, _, _, stations := newTestGateway(testConfig())
	now := start.Add(90 * time.Minute)

	assert.Equal(t, `N0CALL-10>APZ090,TCPIP*:=/3,6\Q-:T#   IGate test`, g.BeaconPacket())
	assert.Equal(t, "N0CALL-10>APZ090,TCPIP*::BLN1     :IGate JO54 ready", g.StatusPacket(now))

	stations.AddCall("DU1KG")
	stations.Gated(false)
	assert.Equal(t, "N0CALL-10>APZ090,TCPIP*::BLN1     :IGate up 0 days 1.5 h - 1 rcvd, 1 gtd, 1 unique calls",
		g.StatusPacket(now))
}

func TestAnnounce(t *testing.T) {
	g, sender, rec, _ := newTestGateway(testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		g.Announce(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sender.packets()) == 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.ElementsMatch(t, []string{
		"N0CALL-10>APZ090,TCPIP*::BLN1     :IGate JO54 ready\r\n",
		"N0CALL-10>APZ090,TCPIP*:=/3,6\\Q-:T#   IGate test\r\n",
	}, sender.packets())

	kinds := []EventKind{}
	for _, e := range rec.all() {
		assert.True(t, e.Gated)
		kinds = append(kinds, e.Kind)
	}
	assert.ElementsMatch(t, []EventKind{EventStatus, EventBeacon}, kinds)
}

func TestAnnounceFailure(t *testing.T) {
	g, sender, rec, _ := newTestGateway(testConfig())
	sender.fail = true
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		g.Announce(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	for _, e := range rec.all() {
		assert.False(t, e.Gated)
		assert.Equal(t, ReasonNoNetwork, e.Reason)
	}
}

func TestDistanceKm(t *testing.T) {
	a := s2.LatLngFromDegrees(0, 0)
	b := s2.LatLngFromDegrees(1, 0)
	assert.InDelta(t, 111.19, DistanceKm(a, b), 0.1)
	assert.InDelta(t, 0, DistanceKm(a, a), 1e-9)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "beacon", EventBeacon.String())
	assert.Equal(t, "server", EventServer.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}

func TestReporters(t *testing.T) {
	var got []EventKind
	fn := ReporterFunc(func(e Event) { got = append(got, e.Kind) })
	Reporters{fn, fn}.Report(Event{Kind: EventStatus})
	assert.Equal(t, []EventKind{EventStatus, EventStatus}, got)
}
