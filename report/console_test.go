package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igate/gateway"
	"igate/packet"
	"igate/station"
)

var at = time.Date(2020, 4, 14, 10, 4, 21, 0, time.UTC)

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewConsole(&buf, "")
	require.NoError(t, err)

	tests := []struct {
		name string
		ev   gateway.Event
		want string
	}{
		{
			name: "gated",
			ev: gateway.Event{Time: at, Kind: gateway.EventPacket, Type: packet.TypePosition, Gated: true,
				Routing: "DU1KG-9>APRS,qAR,N0CALL-10:", Payload: "=1407.09N/12058.07E#"},
			want: "10:04:21 [POS ] DU1KG-9>APRS,qAR,N0CALL-10:=1407.09N/12058.07E#",
		},
		{
			name: "not gated",
			ev: gateway.Event{Time: at, Kind: gateway.EventPacket, Type: packet.TypeStatus,
				Routing: "N0CALL-5>APRS,RFONLY:", Payload: ">x", Reason: "RFONLY, not gated"},
			want: "10:04:21 [STAT] N0CALL-5>APRS,RFONLY:>x\n                RFONLY, not gated",
		},
		{
			name: "own message",
			ev: gateway.Event{Time: at, Kind: gateway.EventPacket, Type: packet.TypeMessage, Own: true,
				Routing: "DU1KG-9>APRS,qAR,N0CALL-10:", Payload: ":N0CALL   :hi"},
			want: "10:04:21 [MSG!] DU1KG-9>APRS,qAR,N0CALL-10::N0CALL   :hi",
		},
		{
			name: "decoded",
			ev: gateway.Event{Time: at, Kind: gateway.EventPacket, Type: packet.TypeMicE, Gated: true,
				Routing: "DU1KG-1>Q4PWQ0,qAR,N0CALL-10:", Payload: "`0V", Detail: "MIC-E: invalid information field"},
			want: "10:04:21 [MICE] DU1KG-1>Q4PWQ0,qAR,N0CALL-10:`0V\n                MIC-E: invalid information field",
		},
		{
			name: "server",
			ev:   gateway.Event{Time: at, Kind: gateway.EventServer, Payload: "# aprsc 2.1.8"},
			want: "10:04:21 [IS  ] # aprsc 2.1.8",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Format(tt.ev))
		})
	}
}

func TestConsoleReport(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewConsole(&buf, "%Y-%m-%d %H:%M")
	require.NoError(t, err)

	c.Report(gateway.Event{Time: at, Kind: gateway.EventInvalid, Routing: `DU1KG\xff>APRS`, Invalid: 1, Reason: "Invalid encoding"})
	c.Report(gateway.Event{Time: at, Kind: gateway.EventBeacon, Gated: true, Routing: "N0CALL-10>APZ090,TCPIP*:", Payload: "=/3,6"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `2020-04-14 10:04 [INV ] DU1KG\xff>APRS`, lines[0])
	assert.Equal(t, strings.Repeat(" ", 24)+"Invalid encoding", lines[1])
	assert.Equal(t, "2020-04-14 10:04 [BCN ] N0CALL-10>APZ090,TCPIP*:=/3,6", lines[2])
}

func TestNewConsoleBadFormat(t *testing.T) {
	_, err := NewConsole(&bytes.Buffer{}, "%")
	assert.Error(t, err)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	started := time.Date(2020, 4, 14, 8, 0, 0, 0, time.UTC)
	c := station.Counts{Gated: 1200, NotGated: 5, InvalidRouting: 2, InvalidEncoding: 1, MessagesGated: 3}

	WriteSummary(&buf, c, []string{"DU1KG", "N0CALL"}, started, started.Add(90*time.Minute))

	out := buf.String()
	assert.Contains(t, out, "Up 1 hour (since 2020-04-14 08:00:00)\n")
	assert.Contains(t, out, "Received:         1,207\n")
	assert.Contains(t, out, "Gated:            1,200 (3 messages)\n")
	assert.Contains(t, out, "Stations heard:   2\n  DU1KG N0CALL\n")
}
