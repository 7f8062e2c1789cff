package aprs

import (
	"regexp"
	"strings"
)

var (
	// Amateur callsign at the start of a line: optional digit prefix,
	// one or two letters, up to four digits, up to four letters.
	callRegex = regexp.MustCompile(`^\d?[a-zA-Z]{1,2}\d{1,4}[a-zA-Z]{1,4}`)

	// " [date time] <UI ...>:" inserted by the radio after the path.
	markerRegex     = regexp.MustCompile(` \[.*\] <UI.*>:`)
	markerBodyRegex = regexp.MustCompile(` \[.*\] <UI.*>`)
)

// Station names that do not follow the callsign pattern but are heard
// on the air (satellites and their digipeaters).
var callAliases = []string{"USNAP1", "PCSAT", "PSAT", "AISAT"}

// CallRecorder remembers callsigns heard on the radio side.
type CallRecorder interface {
	AddCall(call string) bool
}

// RoutingCall returns the callsign or alias a routing line starts with,
// or "" when it starts with neither.
func RoutingCall(line string) string {
	if call := callRegex.FindString(line); call != "" {
		return call
	}
	for _, alias := range callAliases {
		if !strings.HasPrefix(line, alias) {
			continue
		}
		if rest := line[len(alias):]; rest == "" || !isAlnum(rest[0]) {
			return alias
		}
	}
	return ""
}

// IsValidRouting reports whether line starts with a valid callsign. A
// valid call is handed to calls, which may be nil.
func IsValidRouting(line string, calls CallRecorder) bool {
	call := RoutingCall(line)
	if call == "" {
		return false
	}
	if calls != nil {
		calls.AddCall(call)
	}
	return true
}

// HasTNCMarker reports whether the routing line carries the radio's
// " [date time] <UI>:" marker.
func HasTNCMarker(line string) bool {
	return markerRegex.MatchString(line)
}

// RewriteForGating replaces the radio's marker with the q-construct
// identifying gateCall as the gating station.
func RewriteForGating(routing, gateCall string) string {
	return markerRegex.ReplaceAllLiteralString(routing, ",qAR,"+gateCall+":")
}

// StripMarker removes the radio's marker, keeping the final ':'.
func StripMarker(routing string) string {
	return markerBodyRegex.ReplaceAllLiteralString(routing, "")
}

// SourceCall returns the full source (with SSID) of a TNC2 header.
func SourceCall(routing string) string {
	if i := strings.IndexByte(routing, '>'); i != -1 {
		return routing[:i]
	}
	return ""
}

// BaseCall strips the SSID from a callsign.
func BaseCall(call string) string {
	if i := strings.IndexByte(call, '-'); i != -1 {
		return call[:i]
	}
	return call
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
