package aprs

import (
	"fmt"
	"strings"
)

// CalculatePasscode returns the APRS-IS passcode for a callsign. The SSID
// does not take part in the hash.
func CalculatePasscode(callsign string) (int, error) {
	call := strings.ToUpper(BaseCall(callsign))
	if len(call) < 1 || len(call) > 6 {
		return 0, fmt.Errorf("invalid callsign for passcode: %q", callsign)
	}

	hash := 0x73e2
	for i := 0; i < len(call); i++ {
		if i%2 == 0 {
			hash ^= int(call[i]) << 8
		} else {
			hash ^= int(call[i])
		}
	}
	return hash & 0x7fff, nil
}
