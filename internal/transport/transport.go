// Package transport provides the byte-stream carriers the reader and
// simulator speak Protocol V6 over: a physical/virtual serial port or
// a TCP socket. Both implementations satisfy the same Transport
// interface so the rest of the system never branches on which one is
// in use.
package transport

import "io"

// Transport is the minimal byte-stream contract the reader and
// simulator need: blocking reads and writes plus a way to tear the
// connection down. It deliberately mirrors io.ReadWriteCloser rather
// than introducing a parallel vocabulary, so a serial.Port or
// net.Conn satisfies it with no adapter beyond the constructors below.
type Transport interface {
	io.ReadWriteCloser
}

// Kind identifies which carrier a Transport was built from, mostly
// for logging.
type Kind string

const (
	KindSerial Kind = "serial"
	KindTCP    Kind = "tcp"
)
