package aprs

import (
	"fmt"
	"strings"
)

// DecodeASCII renders b as text, escaping every byte outside 7-bit ASCII
// as \xNN. It also returns how many bytes had to be escaped.
func DecodeASCII(b []byte) (string, int) {
	var sb strings.Builder
	sb.Grow(len(b))
	invalid := 0
	for _, c := range b {
		if c < 0x80 {
			sb.WriteByte(c)
			continue
		}
		invalid++
		fmt.Fprintf(&sb, `\x%02x`, c)
	}
	return sb.String(), invalid
}

// TrimLineEnding removes any trailing CR and LF bytes.
func TrimLineEnding(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
