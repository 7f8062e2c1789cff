package aprs

import (
	"fmt"
	"strings"
)

// GridSquareToLatLon converts a Maidenhead locator (like "PK04" or "PK04lc")
// to the latitude and longitude of its center.
func GridSquareToLatLon(grid string) (float64, float64, error) {
	grid = strings.ToUpper(strings.TrimSpace(grid))
	if len(grid) != 4 && len(grid) != 6 {
		return 0, 0, fmt.Errorf("gridsquare must be 4 or 6 characters: %q", grid)
	}
	if grid[0] < 'A' || grid[0] > 'R' || grid[1] < 'A' || grid[1] > 'R' ||
		grid[2] < '0' || grid[2] > '9' || grid[3] < '0' || grid[3] > '9' {
		return 0, 0, fmt.Errorf("invalid gridsquare %q", grid)
	}

	// Field: 20° lon, 10° lat
	lon := (float64(grid[0]-'A') * 20.0) - 180.0
	lat := (float64(grid[1]-'A') * 10.0) - 90.0

	// Square: 2° lon, 1° lat
	lon += float64(grid[2]-'0') * 2.0
	lat += float64(grid[3] - '0')

	if len(grid) == 4 {
		return lat + 0.5, lon + 1.0, nil
	}

	if grid[4] < 'A' || grid[4] > 'X' || grid[5] < 'A' || grid[5] > 'X' {
		return 0, 0, fmt.Errorf("invalid gridsquare subsquare %q", grid)
	}
	// Subsquare: 5' lon, 2.5' lat
	lon += float64(grid[4]-'A') * (2.0 / 24.0)
	lat += float64(grid[5]-'A') * (1.0 / 24.0)

	return lat + 0.5/24.0, lon + 1.0/24.0, nil
}

// LatLonToGridSquare returns the six character locator containing the
// given decimal position, e.g. "PK04lc".
func LatLonToGridSquare(lat, lon float64) string {
	lon += 180.0
	lat += 90.0
	if lon >= 360 {
		lon = 359.9999
	}
	if lat >= 180 {
		lat = 179.9999
	}
	if lon < 0 || lat < 0 {
		return ""
	}

	b := make([]byte, 6)
	b[0] = 'A' + byte(lon/20)
	b[1] = 'A' + byte(lat/10)
	b[2] = '0' + byte(int(lon/2)%10)
	b[3] = '0' + byte(int(lat)%10)
	b[4] = 'a' + byte(int((lon-2*float64(int(lon/2)))*12))
	b[5] = 'a' + byte(int((lat-float64(int(lat)))*24))
	return string(b)
}
