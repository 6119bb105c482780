package reader

import (
	"encoding/base64"
	"log"
	"time"

	sjson "github.com/segmentio/encoding/json"

	"github.com/librescoot/daq-bridge/internal/ipc"
	"github.com/librescoot/daq-bridge/internal/protocol"
)

// handleFrame classifies one parsed frame and routes it, per the
// table in spec §4.7.
func (o *Orchestrator) handleFrame(f protocol.Frame) {
	switch f.Cmd {
	case protocol.CmdDataPacket:
		o.routeDataPacket(f)

	case protocol.CmdPong:
		o.routePong(f)

	case protocol.CmdInfo:
		o.forwardDeviceFrame("DEVICE_INFO_RESPONSE", f.Payload)

	case protocol.CmdStatus:
		o.routeStatus(f)

	case protocol.CmdEventTriggered:
		o.forwardDeviceFrame("EVENT_TRIGGERED", f.Payload)
		if err := o.SendCommand(protocol.CmdRequestBufferedData, nil); err != nil {
			log.Printf("reader: auto REQUEST_BUFFERED_DATA failed: %v", err)
		}

	case protocol.CmdBufferTransferComplete:
		o.forwardDeviceFrame("BUFFER_TRANSFER_COMPLETE", f.Payload)

	case protocol.CmdAck:
		o.forwardDeviceFrame("ACK", f.Payload)

	case protocol.CmdNack:
		o.forwardDeviceFrame("NACK", f.Payload)

	case protocol.CmdLogMessage:
		o.routeLogMessage(f)

	default:
		o.forwardDeviceFrame("RAW", f.Payload)
	}
}

// routeDataPacket never reaches the IPC channel: it goes only to the
// shared ring (spec §4.7 table).
func (o *Orchestrator) routeDataPacket(f protocol.Frame) {
	if o.ring == nil {
		return
	}
	if err := o.ring.Write(uint32(time.Now().UnixMilli()), uint16(f.Seq), f.Payload); err != nil {
		log.Printf("reader: shared ring write failed: %v", err)
	}
}

func (o *Orchestrator) routePong(f protocol.Frame) {
	id, err := protocol.DecodePong(f.Payload)
	if err != nil {
		log.Printf("reader: malformed PONG: %v", err)
		return
	}
	o.mirror.Connected = true
	o.mirror.UniqueID = id
	o.forwardDeviceFrame("DEVICE_FRAME_RECEIVED", f.Payload)
}

func (o *Orchestrator) routeStatus(f protocol.Frame) {
	mode, stream, _, _, err := protocol.DecodeStatus(f.Payload)
	if err != nil {
		log.Printf("reader: malformed STATUS_RESPONSE: %v", err)
		return
	}
	o.mirror.Mode = mode
	o.mirror.Stream = stream
	o.forwardDeviceFrame("STATUS_RESPONSE", f.Payload)
}

func (o *Orchestrator) routeLogMessage(f protocol.Frame) {
	level, message, err := protocol.DecodeLogMessage(f.Payload)
	if err != nil {
		log.Printf("reader: malformed LOG_MESSAGE: %v", err)
		return
	}
	o.ipcChan.Send(ipc.Message{
		Type: ipc.TypeDeviceLogReceived,
		Payload: &ipc.Payload{
			Raw: mustMarshalLog(level, message),
		},
	})
}

func mustMarshalLog(level byte, message string) sjson.RawMessage {
	raw, err := sjson.Marshal(struct {
		Level   byte   `json:"level"`
		Message string `json:"message"`
	}{level, message})
	if err != nil {
		return sjson.RawMessage(`{}`)
	}
	return raw
}

// forwardDeviceFrame relays a raw frame payload to the IPC consumer.
// The payload is real Base64 (RFC 4648), superseding the original's
// "Base64PlaceholderData" stand-in (spec §9).
func (o *Orchestrator) forwardDeviceFrame(kind string, payload []byte) {
	o.ipcChan.Send(ipc.Message{
		Type:    ipc.TypeDeviceFrameReceived,
		Payload: ipc.StringPayload(kind + ":" + base64.StdEncoding.EncodeToString(payload)),
	})
}
