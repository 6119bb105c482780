package transport

import (
	"fmt"
	"net"
)

// DialTCP connects to addr (host:port) and returns it as a Transport.
// Used by the reader when run in socket mode instead of against a
// real serial device.
func DialTCP(addr string) (Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return conn, nil
}

// ListenTCP opens a listener on addr. The simulator accepts
// connections on it, one Transport per accepted client, and drives a
// fresh device session on each.
func ListenTCP(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return ln, nil
}

// AcceptTCP blocks until a client connects, then returns it as a
// Transport.
func AcceptTCP(ln net.Listener) (Transport, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("transport: accept: %w", err)
	}
	return conn, nil
}
