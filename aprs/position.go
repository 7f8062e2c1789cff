package aprs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Gateway symbol: primary table, '#' (digipeater / IGate).
const (
	SymbolTable = '/'
	SymbolCode  = '#'
)

// InvalidPosition is returned by FormatPosition in place of a position
// that would not survive on the wire.
const InvalidPosition = "invalid position"

// compressedAltitudeType is the csT type byte sent after an altitude.
const compressedAltitudeType = 't'

// Coordinate is one axis of a position in APRS terms: whole degrees,
// decimal minutes and a hemisphere letter (N/S or E/W).
type Coordinate struct {
	Degrees    float64
	Minutes    float64
	Hemisphere byte
}

// Decimal returns the coordinate in signed decimal degrees.
func (c Coordinate) Decimal() float64 {
	d := c.Degrees + c.Minutes/60.0
	if c.Hemisphere == 'S' || c.Hemisphere == 'W' {
		return -d
	}
	return d
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s %s'%c", formatFloat(c.Degrees), formatFloat(c.Minutes), c.Hemisphere)
}

func (c Coordinate) validLatitude() bool {
	return (c.Hemisphere == 'N' || c.Hemisphere == 'S') && c.valid(90)
}

func (c Coordinate) validLongitude() bool {
	return (c.Hemisphere == 'E' || c.Hemisphere == 'W') && c.valid(180)
}

func (c Coordinate) valid(maxDegrees float64) bool {
	if c.Degrees < 0 || c.Degrees > maxDegrees || c.Minutes < 0 || c.Minutes >= 60 {
		return false
	}
	return c.Degrees < maxDegrees || c.Minutes == 0
}

// CoordinateFromDecimal converts signed decimal degrees back into
// degrees and minutes. pos and neg are the hemisphere letters to use.
func CoordinateFromDecimal(v float64, pos, neg byte) Coordinate {
	h := pos
	if v < 0 {
		h = neg
		v = -v
	}
	deg := math.Floor(v)
	return Coordinate{Degrees: deg, Minutes: (v - deg) * 60, Hemisphere: h}
}

// AltitudeUnit tags an Altitude value.
type AltitudeUnit int

const (
	Meters AltitudeUnit = iota
	Feet
)

// ParseAltitudeUnit accepts "m" or "ft" (case insensitive, empty means meters).
func ParseAltitudeUnit(s string) (AltitudeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "m", "meters", "metres":
		return Meters, nil
	case "ft", "feet":
		return Feet, nil
	}
	return Meters, fmt.Errorf("unknown altitude unit %q", s)
}

// Altitude is a height with its unit. The zero value means no altitude.
type Altitude struct {
	Value float64
	Unit  AltitudeUnit
}

// Feet returns the altitude converted to feet.
func (a Altitude) Feet() float64 {
	if a.Unit == Feet {
		return a.Value
	}
	return a.Value / 0.3048
}

var formattedPosRegex = regexp.MustCompile(`^\d{2}[0-5]\d\.\d{2}[NS]/\d{3}[0-5]\d\.\d{2}[EW]#$`)

// FormatPosition renders the uncompressed position DDMM.mmH/DDDMM.mmH#.
// InvalidPosition is returned for coordinates outside their range.
func FormatPosition(lat, lon Coordinate) string {
	if !lat.validLatitude() || !lon.validLongitude() {
		return InvalidPosition
	}
	pos := fmt.Sprintf("%02d%05.2f%c%c%03d%05.2f%c%c",
		int(lat.Degrees), lat.Minutes, lat.Hemisphere, SymbolTable,
		int(lon.Degrees), lon.Minutes, lon.Hemisphere, SymbolCode)
	if !formattedPosRegex.MatchString(pos) {
		return InvalidPosition
	}
	return pos
}

// CompressPosition renders the base-91 compressed position: symbol table,
// four latitude digits, four longitude digits, symbol, then either three
// blanks or the altitude csT bytes.
func CompressPosition(lat, lon Coordinate, alt Altitude) string {
	var b strings.Builder
	b.WriteByte(SymbolTable)
	b.WriteString(B91Encode(int(380926 * (90.0 - lat.Decimal()))))
	b.WriteString(B91Encode(int(190463 * (180.0 + lon.Decimal()))))
	b.WriteByte(SymbolCode)

	feet := alt.Feet()
	if feet < 1 {
		b.WriteString("   ")
		return b.String()
	}
	exp := int(math.Log(feet) / math.Log(1.002))
	if exp > 91*91-1 {
		exp = 91*91 - 1
	}
	b.WriteString(B91EncodeWidth(exp, 2))
	b.WriteByte(compressedAltitudeType)
	return b.String()
}

var (
	latRegex = regexp.MustCompile(`^(\d{2})([0-9 ]{2}\.[0-9 ]{2})([NnSs])$`)
	lonRegex = regexp.MustCompile(`^(\d{3})([0-9 ]{2}\.[0-9 ]{2})([EeWw])$`)
)

// ParseLatitude reads an APRS latitude such as "1407.09N". Ambiguity
// spaces are taken as the middle of the blanked range.
func ParseLatitude(s string) (Coordinate, error) {
	m := latRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Coordinate{}, fmt.Errorf("invalid latitude %q", s)
	}
	c, err := parseCoordinate(m[1], m[2], m[3])
	if err != nil {
		return Coordinate{}, err
	}
	if !c.validLatitude() {
		return Coordinate{}, fmt.Errorf("latitude out of range: %q", s)
	}
	return c, nil
}

// ParseLongitude reads an APRS longitude such as "12058.07E".
func ParseLongitude(s string) (Coordinate, error) {
	m := lonRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Coordinate{}, fmt.Errorf("invalid longitude %q", s)
	}
	c, err := parseCoordinate(m[1], m[2], m[3])
	if err != nil {
		return Coordinate{}, err
	}
	if !c.validLongitude() {
		return Coordinate{}, fmt.Errorf("longitude out of range: %q", s)
	}
	return c, nil
}

func parseCoordinate(degStr, minStr, hemStr string) (Coordinate, error) {
	minStr = strings.ReplaceAll(minStr, " ", "5")

	deg, err := strconv.ParseFloat(degStr, 64)
	if err != nil {
		return Coordinate{}, err
	}
	min, err := strconv.ParseFloat(minStr, 64)
	if err != nil {
		return Coordinate{}, err
	}
	return Coordinate{Degrees: deg, Minutes: min, Hemisphere: strings.ToUpper(hemStr)[0]}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
