package aprs

import (
	"bytes"
	"regexp"
	"strings"

	"igate/packet"
)

// Reasons a packet is not gated.
const (
	ReasonNoPayload = "No Payload, not gated"
	ReasonTCP       = "TCP not gated"
	ReasonQuery     = "Query, not gated"
	ReasonRFOnly    = "RFONLY, not gated"
	ReasonNoGate    = "NOGATE, not gated"
)

var dataTypes = [256]packet.DataType{
	':':  packet.TypeMessage,
	';':  packet.TypeObject,
	'=':  packet.TypePosition,
	'!':  packet.TypePosition,
	'/':  packet.TypePosition,
	'@':  packet.TypePosition,
	'$':  packet.TypeNMEA,
	')':  packet.TypeItem,
	'}':  packet.TypeThirdParty,
	'`':  packet.TypeMicE,
	'\'': packet.TypeMicE,
	0x1c: packet.TypeMicE,
	0x1d: packet.TypeMicE,
	'?':  packet.TypeQuery,
	'>':  packet.TypeStatus,
	'<':  packet.TypeCapabilities,
	'T':  packet.TypeTelemetry,
	'#':  packet.TypeWeather,
	'*':  packet.TypeWeather,
	'_':  packet.TypeWeather,
	',':  packet.TypeTest,
	'{':  packet.TypeUser,
}

// Third-party packet whose inner header shows it came from the Internet.
var thirdPartyTCPRegex = regexp.MustCompile(`^}.*,TCP.*:`)

// ClassifyPayload maps the payload's data type identifier to a DataType.
func ClassifyPayload(payload []byte) packet.DataType {
	if len(payload) == 0 {
		return packet.TypeNone
	}
	return dataTypes[payload[0]]
}

// IsMessage reports whether payload is a message, either bare or carried
// inside a third-party header.
func IsMessage(payload []byte) bool {
	switch ClassifyPayload(payload) {
	case packet.TypeMessage:
		return true
	case packet.TypeThirdParty:
		i := bytes.IndexByte(payload, ':')
		return i >= 0 && ClassifyPayload(payload[i+1:]) == packet.TypeMessage
	}
	return false
}

// CheckGating decides whether a packet heard on the radio may be passed
// to APRS-IS. The first rule that matches gives the reason.
func CheckGating(routing string, payload []byte) (bool, string) {
	switch {
	case len(payload) == 0:
		return false, ReasonNoPayload
	case strings.Contains(routing, ",TCP"):
		return false, ReasonTCP
	case thirdPartyTCPRegex.Match(payload):
		return false, ReasonTCP
	case payload[0] == '?':
		return false, ReasonQuery
	case strings.Contains(routing, "RFONLY"):
		return false, ReasonRFOnly
	case strings.Contains(routing, "NOGATE"):
		return false, ReasonNoGate
	}
	return true, ""
}

// Classify combines ClassifyPayload and CheckGating. It has no side
// effects, so classifying the same packet twice gives the same result.
func Classify(raw packet.Raw) packet.Classified {
	eligible, reason := CheckGating(raw.Routing, raw.Payload)
	return packet.Classified{
		Raw:      raw,
		Type:     ClassifyPayload(raw.Payload),
		Eligible: eligible,
		Reason:   reason,
	}
}
