package reader

import (
	"encoding/base64"
	"fmt"
	"log"

	sjson "github.com/segmentio/encoding/json"

	"github.com/librescoot/daq-bridge/internal/ipc"
	"github.com/librescoot/daq-bridge/internal/protocol"
	"github.com/librescoot/daq-bridge/internal/transport"
)

// Reconnector builds a fresh Transport for SET_READER_MODE. cmd/reader
// supplies the concrete implementation; the orchestrator only needs
// to know "given a kind and target, hand me a connected transport".
type Reconnector func(kind transport.Kind, target string) (transport.Transport, error)

// SetReconnector installs the reconnect strategy used by
// SET_READER_MODE. Must be called before Run if that command is ever
// expected to succeed.
func (o *Orchestrator) SetReconnector(r Reconnector) {
	o.reconnect = r
}

func (o *Orchestrator) handleIPCMessage(msg ipc.Message) {
	switch msg.Type {
	case ipc.TypeForwardToDevice:
		o.handleForwardToDevice(msg)
	case ipc.TypeSetReaderMode:
		o.handleSetReaderMode(msg)
	case ipc.TypeRequestReaderStatus:
		o.handleRequestReaderStatus()
	default:
		log.Printf("reader: ignoring unrecognized IPC message type %q", msg.Type)
	}
}

type forwardToDeviceRequest struct {
	CommandID byte   `json:"command_id"`
	Data      string `json:"data"` // base64-encoded payload bytes
}

func (o *Orchestrator) handleForwardToDevice(msg ipc.Message) {
	if msg.Payload == nil || msg.Payload.IsString {
		log.Printf("reader: FORWARD_TO_DEVICE missing object payload")
		return
	}

	var req forwardToDeviceRequest
	if err := sjson.Unmarshal(msg.Payload.Raw, &req); err != nil {
		log.Printf("reader: FORWARD_TO_DEVICE malformed payload: %v", err)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		log.Printf("reader: FORWARD_TO_DEVICE payload not valid base64: %v", err)
		return
	}

	if err := o.SendCommand(protocol.CommandID(req.CommandID), data); err != nil {
		log.Printf("reader: FORWARD_TO_DEVICE send failed: %v", err)
	}
}

type setReaderModeRequest struct {
	Mode   string `json:"mode"` // "serial" or "socket"
	Target string `json:"target"`
}

func (o *Orchestrator) handleSetReaderMode(msg ipc.Message) {
	if msg.Payload == nil || msg.Payload.IsString {
		log.Printf("reader: SET_READER_MODE missing object payload")
		return
	}

	var req setReaderModeRequest
	if err := sjson.Unmarshal(msg.Payload.Raw, &req); err != nil {
		log.Printf("reader: SET_READER_MODE malformed payload: %v", err)
		return
	}

	if o.reconnect == nil {
		log.Printf("reader: SET_READER_MODE requested but no reconnector is installed")
		return
	}

	var kind transport.Kind
	switch req.Mode {
	case "serial":
		kind = transport.KindSerial
	case "socket":
		kind = transport.KindTCP
	default:
		log.Printf("reader: SET_READER_MODE unknown mode %q", req.Mode)
		return
	}

	newTr, err := o.reconnect(kind, req.Target)
	if err != nil {
		log.Printf("reader: SET_READER_MODE reconnect failed: %v", err)
		return
	}

	old := o.tr
	o.tr = newTr
	o.trKind = kind
	o.trTarget = req.Target
	o.scanner = protocol.NewScanner()
	old.Close()

	// Run's read goroutine is bound to the old transport; SET_READER_MODE
	// is documented as "may be implemented as reconnect" (spec §4.7),
	// so the caller is expected to restart Run after a mode switch.
}

func (o *Orchestrator) handleRequestReaderStatus() {
	status := struct {
		TransportType   string `json:"transport_type"`
		TransportTarget string `json:"transport_target"`
		DeviceConnected bool   `json:"device_connected"`
		DeviceUniqueID  string `json:"device_unique_id"`
		StreamRunning   bool   `json:"stream_running"`
	}{
		TransportType:   string(o.trKind),
		TransportTarget: o.trTarget,
		DeviceConnected: o.mirror.Connected,
		DeviceUniqueID:  fmt.Sprintf("0x%016x", o.mirror.UniqueID),
		StreamRunning:   o.mirror.Stream == protocol.StreamRunning,
	}

	raw, err := sjson.Marshal(status)
	if err != nil {
		log.Printf("reader: failed to marshal READER_STATUS_UPDATE: %v", err)
		return
	}

	o.ipcChan.Send(ipc.Message{
		Type:    ipc.TypeReaderStatusUpdate,
		Payload: &ipc.Payload{Raw: raw},
	})
}
