package packet

// DataType is the APRS data type implied by the first byte of a payload.
type DataType int

const (
	TypeNone         DataType = iota // Missing or unrecognized identifier
	TypePosition                     // ! / = @
	TypeMessage                      // :
	TypeMicE                         // ` ' 0x1c 0x1d
	TypeObject                       // ;
	TypeItem                         // )
	TypeWeather                      // # * _
	TypeNMEA                         // $
	TypeQuery                        // ?
	TypeStatus                       // >
	TypeCapabilities                 // <
	TypeThirdParty                   // }
	TypeTelemetry                    // T
	TypeTest                         // ,
	TypeUser                         // {
)

var tags = [...]string{
	TypeNone:         "    ",
	TypePosition:     "POS ",
	TypeMessage:      "MSG ",
	TypeMicE:         "MICE",
	TypeObject:       "OBJ ",
	TypeItem:         "ITEM",
	TypeWeather:      "WX  ",
	TypeNMEA:         "NMEA",
	TypeQuery:        "QURY",
	TypeStatus:       "STAT",
	TypeCapabilities: "CAP ",
	TypeThirdParty:   "3PRT",
	TypeTelemetry:    "TEL ",
	TypeTest:         "TEST",
	TypeUser:         "USER",
}

// String returns the fixed four character tag shown in reports.
func (t DataType) String() string {
	if t < 0 || int(t) >= len(tags) {
		return tags[TypeNone]
	}
	return tags[t]
}

// Raw is one packet as it arrives from the radio: a routing line
// followed by a payload line.
type Raw struct {
	Routing string
	Payload []byte
}

// Classified is a Raw packet plus the decisions made about it.
type Classified struct {
	Raw
	Type     DataType
	Eligible bool
	Reason   string // Why the packet is not gated, empty when Eligible
}
