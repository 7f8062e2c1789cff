package aprs

import (
	"errors"
	"fmt"
)

// Base-91 digits are the printable characters '!' (0) to '{' (90).
const (
	b91Min = '!'
	b91Max = '{'
)

// ErrInvalidBase91 is returned when a string contains a character
// outside the base-91 alphabet.
var ErrInvalidBase91 = errors.New("invalid base-91 digit")

// B91Encode encodes n as the fixed four character field used by
// compressed latitude and longitude. Leading zero digits are kept as '!'.
func B91Encode(n int) string {
	return B91EncodeWidth(n, 4)
}

// B91EncodeWidth encodes n in exactly width base-91 digits. Values that
// do not fit are reduced modulo 91^width, negative values encode as zero.
func B91EncodeWidth(n, width int) string {
	if n < 0 {
		n = 0
	}
	digits := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		digits[i] = byte(n%91) + b91Min
		n /= 91
	}
	return string(digits)
}

// B91Decode decodes s, treating its length as the field width.
func B91Decode(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty field", ErrInvalidBase91)
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < b91Min || c > b91Max {
			return 0, fmt.Errorf("%w: %q in %q", ErrInvalidBase91, c, s)
		}
		n = n*91 + int(c-b91Min)
	}
	return n, nil
}
