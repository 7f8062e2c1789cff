package serial

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	bugst "go.bug.st/serial"
)

// Port is the radio's data output.
type Port interface {
	io.ReadCloser
}

// Open connects to the radio. A device of the form host:port is dialed as
// a TCP serial bridge, anything else is opened as a local serial port at
// baud 8N1. Reads block until a byte arrives; Close unblocks them.
func Open(ctx context.Context, device string, baud int) (Port, error) {
	if device == "" {
		return nil, fmt.Errorf("no serial device (e.g. /dev/ttyUSB0, COM3 or host:port) configured")
	}

	if isNetworkAddress(device) {
		log.Info("connecting to serial bridge", "addr", device)
		d := net.Dialer{Timeout: 10 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", device)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to serial bridge at %s: %w", device, err)
		}
		return conn, nil
	}

	log.Info("opening serial port", "device", device, "baud", baud)
	port, err := bugst.Open(device, &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	return port, nil
}

// isNetworkAddress tells a host:port bridge from a device path. Windows
// port names (COM3) and paths never split into a host and a numeric port.
func isNetworkAddress(device string) bool {
	if strings.ContainsAny(device, `/\`) {
		return false
	}
	host, port, err := net.SplitHostPort(device)
	if err != nil || host == "" {
		return false
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
	}
	return port != ""
}

// Ports lists the serial ports present on this machine.
func Ports() ([]string, error) {
	return bugst.GetPortsList()
}
