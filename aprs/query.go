package aprs

import (
	"fmt"
	"regexp"
	"strings"

	"igate/packet"
)

// Query is a directed query sent as a message to the gateway.
type Query int

const (
	QueryNone     Query = iota
	QueryIGate          // ?IGATE?
	QueryDirects        // ?APRSD
	QueryPosition       // ?APRSP
	QueryStatus         // ?APRSS
)

var queryPrefixes = []struct {
	prefix string
	query  Query
}{
	{"?IGATE?", QueryIGate},
	{"?APRSD", QueryDirects},
	{"?APRSP", QueryPosition},
	{"?APRSS", QueryStatus},
}

func (q Query) String() string {
	for _, p := range queryPrefixes {
		if p.query == q {
			return p.prefix
		}
	}
	return ""
}

// maxMessageText is the longest message text APRS allows.
const maxMessageText = 67

// ":CALL-SS   :" message addressing.
var addresseeRegex = regexp.MustCompile(`:\d?[A-Z]{1,2}\d{1,4}[A-Z]{1,4}-?\d{0,2} {0,6}:`)

// OwnMessage is a message addressed to the gateway's callsign.
type OwnMessage struct {
	From  string
	To    string
	Text  string
	ID    string
	Query Query
}

// ParseOwnMessage reports whether a message or third-party payload is
// addressed to ownCall, ignoring SSIDs on both sides.
func ParseOwnMessage(routing string, payload []byte, ownCall string) (OwnMessage, bool) {
	var from string
	switch ClassifyPayload(payload) {
	case packet.TypeMessage:
		from = SourceCall(routing)
	case packet.TypeThirdParty:
		from = SourceCall(string(payload[1:]))
	default:
		return OwnMessage{}, false
	}

	text := string(payload)
	loc := addresseeRegex.FindStringIndex(text)
	if loc == nil {
		return OwnMessage{}, false
	}
	to, body, id, err := parseMessage(text[loc[0]:])
	if err != nil || BaseCall(to) != BaseCall(ownCall) {
		return OwnMessage{}, false
	}

	m := OwnMessage{From: from, To: to, Text: body, ID: id}
	for _, p := range queryPrefixes {
		if strings.HasPrefix(body, p.prefix) {
			m.Query = p.query
			break
		}
	}
	return m, true
}

// parseMessage splits a message (data type ':').
// Format: :ADDRESSEE:message body{id where the addressee is padded to 9.
func parseMessage(s string) (to, body, id string, err error) {
	s = s[1:]
	sep := strings.IndexByte(s, ':')
	if sep == -1 {
		return "", "", "", fmt.Errorf("missing message body separator ':'")
	}

	to = strings.TrimSpace(s[:sep])
	if to == "" {
		return "", "", "", fmt.Errorf("message recipient is blank")
	}

	bodyPart := s[sep+1:]
	if idIndex := strings.LastIndex(bodyPart, "{"); idIndex > 0 {
		body = strings.TrimSpace(bodyPart[:idIndex])
		id = strings.TrimSpace(bodyPart[idIndex+1:])
	} else {
		body = strings.TrimSpace(bodyPart)
	}

	if body == "" {
		return "", "", "", fmt.Errorf("message body is blank")
	}
	return to, body, id, nil
}

// QueryInfo is what the gateway knows when it answers a query.
type QueryInfo struct {
	MessageCount int
	StationCount int
	Calls        []string
	Position     string // Compressed position, symbol included
	BeaconText   string
	Uptime       string
}

// BuildQueryReply composes the payload answering m.Query. It returns ""
// when m is not a query.
func BuildQueryReply(m OwnMessage, info QueryInfo) string {
	switch m.Query {
	case QueryIGate:
		return fmt.Sprintf("<IGATE,MSG_CNT=%d,LOC_CNT=%d", info.MessageCount, info.StationCount)
	case QueryDirects:
		text := "Directs="
		for _, call := range info.Calls {
			if len(text)+1+len(call) > maxMessageText {
				break
			}
			text += " " + call
		}
		return FormatMessage(m.From, text)
	case QueryPosition:
		return "=" + info.Position + info.BeaconText
	case QueryStatus:
		return ">" + info.Uptime
	}
	return ""
}

// FormatMessage renders a message payload to addressee.
func FormatMessage(addressee, text string) string {
	return fmt.Sprintf(":%-9s:%s", addressee, text)
}
