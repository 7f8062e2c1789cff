package aprs

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

var (
	// ErrInvalidDestination reports a destination field that cannot carry MIC-E data.
	ErrInvalidDestination = errors.New("invalid destination field")
	// ErrInvalidInformation reports an information field that is not MIC-E framed.
	ErrInvalidInformation = errors.New("invalid information field")
)

var (
	destFieldRegex = regexp.MustCompile(`^[0-9A-Z]{3}[0-9L-Z]{3,4}$`)
	miceInfoRegex  = regexp.MustCompile("^[\\x1c\\x1d`'][&-~\\x7f][&-a][\\x1c-~\\x7f]{5,}")
	altitudeRegex  = regexp.MustCompile(`(.{3})\}`)
)

// Message priority labels indexed by the three message bits.
var (
	standardMessages = [8]string{
		"Emergency", "Priority", "Special", "Committed",
		"Returning", "In Service", "En Route", "Off Duty",
	}
	customMessages = [8]string{
		"Emergency", "Custom-6", "Custom-5", "Custom-4",
		"Custom-3", "Custom-2", "Custom-1", "Custom-0",
	}
)

// MicEReport holds everything recovered from a MIC-E packet.
type MicEReport struct {
	Latitude  Coordinate
	Longitude Coordinate
	Ambiguity int // Number of blanked latitude digits, 0-4
	Message   string
	Speed     int // Knots
	Course    int // Degrees
	Altitude  int // Meters, may be negative; zero when absent
	Symbol    string
	Telemetry bool // Telemetry follows the symbol; not decoded
	Device    string
	Comment   string
}

// Summary renders the report on one line. Optional fields only appear
// when they carry something; altitude only when above sea level.
func (r MicEReport) Summary() string {
	parts := []string{
		fmt.Sprintf("Pos: %s, %s", r.Latitude, r.Longitude),
		r.Message,
	}
	if r.Ambiguity > 0 {
		parts = append(parts, fmt.Sprintf("Ambgty: %d digits", r.Ambiguity))
	}
	if r.Speed > 0 {
		parts = append(parts, fmt.Sprintf("Speed: %d knots", r.Speed))
	}
	if r.Course > 0 {
		parts = append(parts, fmt.Sprintf("Course: %d deg", r.Course))
	}
	if r.Altitude > 0 {
		parts = append(parts, fmt.Sprintf("Alt: %d m", r.Altitude))
	}
	if r.Telemetry {
		parts = append(parts, "Telemetry data")
	}
	if r.Device != "" {
		parts = append(parts, r.Device)
	}
	return strings.Join(parts, ", ")
}

// DestinationField extracts the destination call (SSID removed) from a
// routing line such as "DU1KG-1>Q4PWQ0,WIDE1-1 [...] <UI>:".
func DestinationField(routing string) string {
	i := strings.IndexByte(routing, '>')
	if i == -1 {
		return ""
	}
	dest := routing[i+1:]
	if j := strings.IndexAny(dest, ", :"); j != -1 {
		dest = dest[:j]
	}
	if j := strings.IndexByte(dest, '-'); j != -1 {
		dest = dest[:j]
	}
	return dest
}

// micEDigit maps a destination character to the latitude digit it carries.
func micEDigit(c byte) byte {
	switch {
	case c == 'K' || c == 'L' || c == 'Z':
		return '0'
	case c > 'O':
		return c - 32
	case c > '@':
		return c - 17
	}
	return c
}

// inZeroToL reports whether c lies in the '0'..'L' range of the
// destination alphabet, which selects S, no offset and E.
func inZeroToL(c byte) bool {
	return c >= '0' && c <= 'L'
}

// DecodeMicE decodes the MIC-E position carried by the routing line's
// destination field and the information field info.
func DecodeMicE(routing string, info []byte) (MicEReport, error) {
	dest := DestinationField(routing)
	if !destFieldRegex.MatchString(dest) {
		return MicEReport{}, fmt.Errorf("%w: %q", ErrInvalidDestination, dest)
	}
	if len(info) < 9 || !miceInfoRegex.Match(info) {
		return MicEReport{}, ErrInvalidInformation
	}

	var r MicEReport

	// Message bits from the first three destination characters.
	bits := 0
	custom := false
	for i := 0; i < 3; i++ {
		c := dest[i]
		if (c >= 'A' && c <= 'K') || (c >= 'P' && c <= 'Z') {
			bits += 4 >> i
		}
		if c >= 'A' && c <= 'K' {
			custom = true
		}
	}
	if custom {
		r.Message = customMessages[bits]
	} else {
		r.Message = standardMessages[bits]
	}

	latHemi := byte('N')
	if inZeroToL(dest[3]) {
		latHemi = 'S'
	}
	lonOffset := 100
	if inZeroToL(dest[4]) {
		lonOffset = 0
	}
	lonHemi := byte('W')
	if inZeroToL(dest[5]) {
		lonHemi = 'E'
	}

	digits := make([]byte, len(dest))
	for i := 0; i < len(dest); i++ {
		c := dest[i]
		if c == 'K' || c == 'L' || c == 'Z' {
			r.Ambiguity++
		}
		digits[i] = micEDigit(c)
		if digits[i] < '0' || digits[i] > '9' {
			return MicEReport{}, fmt.Errorf("%w: %q", ErrInvalidDestination, dest)
		}
	}
	latDeg := atoi(digits[0:2])
	latMin := round2(float64(atoi(digits[2:4])) + float64(atoi(digits[len(digits)-2:]))/100)
	r.Latitude = Coordinate{Degrees: float64(latDeg), Minutes: latMin, Hemisphere: latHemi}

	// Longitude, information field bytes 1-3.
	lonDeg := int(info[1]) - 28
	if lonOffset == 100 {
		lonDeg = int(info[1]) + 72
	}
	switch {
	case lonDeg >= 180 && lonDeg <= 189:
		lonDeg -= 80
	case lonDeg >= 190 && lonDeg <= 199:
		lonDeg -= 190
	}
	lonMin := int(info[2]) - 28
	if lonMin >= 60 {
		lonMin = int(info[2]) - 88
	}
	r.Longitude = Coordinate{
		Degrees:    float64(lonDeg),
		Minutes:    round2(float64(lonMin) + float64(int(info[3])-28)/100),
		Hemisphere: lonHemi,
	}

	// Speed and course, bytes 4-6.
	dc := int(info[5]) - 28
	spd := int(info[4]) - 28
	if spd >= 80 {
		spd = (spd - 80) * 10
	} else {
		spd = spd*10 + dc/10
	}
	if spd >= 800 {
		spd -= 800
	}
	crs := 100*(dc%10) + int(info[6]) - 28
	if crs >= 400 {
		crs -= 400
	}
	r.Speed = spd
	r.Course = crs

	r.Symbol = string(info[7:9])

	if len(info) > 9 {
		switch info[9] {
		case '\'', '`', 0x1d:
			r.Telemetry = true
		default:
			text, _ := DecodeASCII(info[9:])
			r.Altitude, text = altitude(text)
			r.Device, r.Comment = identifyMicE(text)
		}
	}

	return r, nil
}

// altitude looks for the "xxx}" altitude field and returns the height in
// meters with the field removed from the text.
func altitude(text string) (int, string) {
	loc := altitudeRegex.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, text
	}
	n, err := B91Decode(text[loc[2]:loc[3]])
	if err != nil {
		return 0, text
	}
	return n - 10000, text[:loc[0]] + text[loc[1]:]
}

func atoi(b []byte) int {
	n := 0
	for _, c := range b {
		n = n*10 + int(c-'0')
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
