package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// OpenSerial opens devicePath at the given baud rate, 8N1, and
// returns it as a Transport. A short read timeout is set so the
// reader's scan loop can periodically check for shutdown instead of
// blocking forever on an idle line.
func OpenSerial(devicePath string, baud int) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(devicePath, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %s: %w", devicePath, err)
	}

	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", devicePath, err)
	}

	return port, nil
}
