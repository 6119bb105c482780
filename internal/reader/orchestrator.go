// Package reader implements the reader orchestrator (C7): the glue
// that owns a transport connection to the device, runs frames through
// the protocol codec and scanner, routes them to the shared ring or
// the IPC channel, and turns inbound IPC commands into outbound
// protocol frames.
package reader

import (
	"log"

	"github.com/librescoot/daq-bridge/internal/ipc"
	"github.com/librescoot/daq-bridge/internal/protocol"
	"github.com/librescoot/daq-bridge/internal/ring"
	"github.com/librescoot/daq-bridge/internal/transport"
)

// DeviceMirror is the reader's read-only view of the device's last
// known state, updated only by the orchestrator's own goroutine as it
// processes inbound frames (spec §5: "the main loop owns mutable
// state; the callback receives immutable snapshots").
type DeviceMirror struct {
	Connected bool
	UniqueID  uint64
	Mode      protocol.Mode
	Stream    protocol.StreamState
}

// Orchestrator owns a single device connection end to end.
type Orchestrator struct {
	tr       transport.Transport
	trKind   transport.Kind
	trTarget string
	reconnect Reconnector

	scanner *protocol.Scanner
	ring    *ring.Ring
	ipcChan *ipc.Channel

	outSeq byte

	mirror DeviceMirror

	stopCh chan struct{}
}

// New builds an orchestrator over an already-connected transport, an
// already-attached ring, and an already-listening IPC channel.
func New(tr transport.Transport, trKind transport.Kind, trTarget string, r *ring.Ring, ipcChan *ipc.Channel) *Orchestrator {
	return &Orchestrator{
		tr:       tr,
		trKind:   trKind,
		trTarget: trTarget,
		scanner:  protocol.NewScanner(),
		ring:     r,
		ipcChan:  ipcChan,
		stopCh:   make(chan struct{}),
	}
}

// nextSeq returns the orchestrator's next outbound sequence number,
// wrapping at 256 (spec §4.7: "maintains a monotonically increasing
// outbound sequence number").
func (o *Orchestrator) nextSeq() byte {
	seq := o.outSeq
	o.outSeq++
	return seq
}

// SendCommand builds and writes a Protocol V6 frame for cmd/payload.
// It does not retry on failure (spec §4.7: "does not retry protocol
// commands; it surfaces NACKs to the consumer").
func (o *Orchestrator) SendCommand(cmd protocol.CommandID, payload []byte) error {
	frame, err := protocol.BuildFrame(cmd, o.nextSeq(), payload)
	if err != nil {
		return err
	}
	_, err = o.tr.Write(frame)
	return err
}

// Run drives the orchestrator until Stop is called. It spawns one
// goroutine reading the transport (so a blocking read never starves
// IPC delivery) and processes both transport frames and inbound IPC
// messages on this goroutine, giving the orchestrator sole ownership
// of all mutable state (spec §5).
func (o *Orchestrator) Run() {
	chunks := make(chan []byte, 16)
	readErrs := make(chan error, 1)
	go o.readTransport(chunks, readErrs)

	for {
		select {
		case <-o.stopCh:
			return

		case err := <-readErrs:
			log.Printf("reader: transport read error: %v", err)
			return

		case data := <-chunks:
			o.scanner.Feed(data)
			o.scanner.TryExtract(func(f protocol.Frame) {
				o.handleFrame(f)
			})

		case msg := <-o.ipcChan.Incoming():
			o.handleIPCMessage(msg)
		}
	}
}

func (o *Orchestrator) readTransport(chunks chan<- []byte, errs chan<- error) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-o.stopCh:
			return
		default:
		}

		n, err := o.tr.Read(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			select {
			case errs <- err:
			case <-o.stopCh:
			}
			return
		}
		if n == 0 {
			continue
		}

		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case chunks <- cp:
		case <-o.stopCh:
			return
		}
	}
}

// Stop ends Run and releases the orchestrator's owned resources.
func (o *Orchestrator) Stop() {
	close(o.stopCh)
	o.tr.Close()
	o.ipcChan.Stop()
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
