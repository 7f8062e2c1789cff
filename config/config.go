package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"igate/aprs"
)

var (
	ErrMissingCallsign = errors.New("station callsign is required")
	ErrBadSSID         = errors.New("station ssid must be 0-15")
	ErrBadPosition     = errors.New("station position is invalid")
	ErrBadPeriod       = errors.New("periods must be positive")
)

// Duration is a time.Duration written as "20m" in the file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds all application configuration
type Config struct {
	Station StationConfig `toml:"station"`
	APRSIS  APRSISConfig  `toml:"aprsis"`
	Serial  SerialConfig  `toml:"serial"`
	Gateway GatewayConfig `toml:"gateway"`
	Report  ReportConfig  `toml:"report"`
	Metrics MetricsConfig `toml:"metrics"`
}

// StationConfig is the gateway's identity and position.
type StationConfig struct {
	Callsign     string  `toml:"callsign"`
	SSID         int     `toml:"ssid"`
	Passcode     int     `toml:"passcode"`
	Latitude     string  `toml:"latitude"`  // 1407.09N
	Longitude    string  `toml:"longitude"` // 12058.07E
	GridSquare   string  `toml:"gridsquare"`
	Altitude     float64 `toml:"altitude"`
	AltitudeUnit string  `toml:"altitude_unit"`
	BeaconText   string  `toml:"beacon_text"`
	BulletinText string  `toml:"bulletin_text"`
}

type APRSISConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	RangeKm        int      `toml:"range_km"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	LoginTimeout   Duration `toml:"login_timeout"`
	RetryDelay     Duration `toml:"retry_delay"`
	ProbeURL       string   `toml:"probe_url"`
	ProbeTimeout   Duration `toml:"probe_timeout"`
	ProbeCache     Duration `toml:"probe_cache"`
	Echo           bool     `toml:"echo"`
}

type SerialConfig struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

type GatewayConfig struct {
	BeaconPeriod Duration `toml:"beacon_period"`
	StatusPeriod Duration `toml:"status_period"`
	BeaconDelay  Duration `toml:"beacon_delay"`
	DecodeMicE   bool     `toml:"decode_mice"`
	ReplyQueries bool     `toml:"reply_queries"`
}

type ReportConfig struct {
	TimeFormat string `toml:"time_format"`
	LogLevel   string `toml:"log_level"`
	LogFile    string `toml:"log_file"`
}

type MetricsConfig struct {
	Listen string `toml:"listen"`
}

// Default returns the settings used for anything the file leaves out.
func Default() Config {
	return Config{
		Station: StationConfig{
			SSID:         10,
			AltitudeUnit: "m",
			BeaconText:   "Linux IGate",
		},
		APRSIS: APRSISConfig{
			Host:           "rotate.aprs2.net",
			Port:           14580,
			RangeKm:        150,
			ConnectTimeout: Duration{10 * time.Second},
			LoginTimeout:   Duration{30 * time.Second},
			RetryDelay:     Duration{2 * time.Second},
			ProbeURL:       "http://www.google.com/generate_204",
			ProbeTimeout:   Duration{5 * time.Second},
			ProbeCache:     Duration{time.Minute},
		},
		Serial: SerialConfig{
			Device: "/dev/ttyUSB0",
			Baud:   9600,
		},
		Gateway: GatewayConfig{
			BeaconPeriod: Duration{1200 * time.Second},
			StatusPeriod: Duration{3600 * time.Second},
			BeaconDelay:  Duration{5 * time.Second},
			ReplyQueries: true,
		},
		Report: ReportConfig{
			TimeFormat: "%H:%M:%S",
			LogLevel:   "info",
		},
	}
}

// Load reads the configuration at path on top of Default and validates it.
func Load(path string) (Config, error) {
	conf := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	if err := toml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("parse %s: %w", path, err)
	}
	conf.Station.Callsign = strings.ToUpper(strings.TrimSpace(conf.Station.Callsign))

	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("%s: %w", path, err)
	}
	return conf, nil
}

// Validate checks everything that would otherwise fail later at runtime.
func (c Config) Validate() error {
	if c.Station.Callsign == "" {
		return ErrMissingCallsign
	}
	if c.Station.SSID < 0 || c.Station.SSID > 15 {
		return ErrBadSSID
	}
	if _, _, err := c.Position(); err != nil {
		return err
	}
	if _, err := c.Altitude(); err != nil {
		return err
	}
	if c.Gateway.BeaconPeriod.Duration <= 0 || c.Gateway.StatusPeriod.Duration <= 0 {
		return ErrBadPeriod
	}
	if c.APRSIS.Port <= 0 || c.APRSIS.Port > 65535 {
		return fmt.Errorf("aprsis port %d out of range", c.APRSIS.Port)
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial baud %d must be positive", c.Serial.Baud)
	}
	return nil
}

// FullCall is the callsign with its SSID, as used on the air.
func (c Config) FullCall() string {
	if c.Station.SSID == 0 {
		return c.Station.Callsign
	}
	return fmt.Sprintf("%s-%d", c.Station.Callsign, c.Station.SSID)
}

// Position resolves the station position from latitude/longitude, or
// from the grid square when those are not set.
func (c Config) Position() (aprs.Coordinate, aprs.Coordinate, error) {
	s := c.Station
	if s.Latitude != "" || s.Longitude != "" {
		lat, err := aprs.ParseLatitude(s.Latitude)
		if err != nil {
			return lat, aprs.Coordinate{}, fmt.Errorf("%w: latitude %q: %v", ErrBadPosition, s.Latitude, err)
		}
		lon, err := aprs.ParseLongitude(s.Longitude)
		if err != nil {
			return lat, lon, fmt.Errorf("%w: longitude %q: %v", ErrBadPosition, s.Longitude, err)
		}
		return lat, lon, nil
	}
	if s.GridSquare != "" {
		lat, lon, err := aprs.GridSquareToLatLon(s.GridSquare)
		if err != nil {
			return aprs.Coordinate{}, aprs.Coordinate{}, fmt.Errorf("%w: gridsquare %q: %v", ErrBadPosition, s.GridSquare, err)
		}
		return aprs.CoordinateFromDecimal(lat, 'N', 'S'), aprs.CoordinateFromDecimal(lon, 'E', 'W'), nil
	}
	return aprs.Coordinate{}, aprs.Coordinate{}, fmt.Errorf("%w: set latitude and longitude, or gridsquare", ErrBadPosition)
}

func (c Config) Altitude() (aprs.Altitude, error) {
	unit, err := aprs.ParseAltitudeUnit(c.Station.AltitudeUnit)
	if err != nil {
		return aprs.Altitude{}, err
	}
	return aprs.Altitude{Value: c.Station.Altitude, Unit: unit}, nil
}

// PositionReport renders the station position in plain and compressed
// form, as shown at start-up.
func (c Config) PositionReport() (string, string, error) {
	lat, lon, err := c.Position()
	if err != nil {
		return "", "", err
	}
	alt, err := c.Altitude()
	if err != nil {
		return "", "", err
	}
	pos := aprs.FormatPosition(lat, lon)
	if pos == aprs.InvalidPosition {
		return pos, "", fmt.Errorf("%w: %s %s", ErrBadPosition, c.Station.Latitude, c.Station.Longitude)
	}
	return pos, aprs.CompressPosition(lat, lon, alt), nil
}

// Bulletin is the status text sent before anything has been gated.
func (c Config) Bulletin() string {
	if c.Station.BulletinText != "" {
		return c.Station.BulletinText
	}
	lat, lon, err := c.Position()
	if err != nil {
		return "IGate " + c.FullCall()
	}
	return fmt.Sprintf("IGate %s QRA %s", c.FullCall(), aprs.LatLonToGridSquare(lat.Decimal(), lon.Decimal()))
}

// CheckPasscode reports a passcode that the server will not verify.
func (c Config) CheckPasscode() error {
	want, err := aprs.CalculatePasscode(c.Station.Callsign)
	if err != nil {
		return err
	}
	if c.Station.Passcode != want {
		return fmt.Errorf("passcode %d does not match callsign %s", c.Station.Passcode, c.Station.Callsign)
	}
	return nil
}
