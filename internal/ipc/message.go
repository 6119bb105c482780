// Package ipc implements the line-delimited JSON control channel
// (C6): a local named endpoint the reader uses to relay protocol
// events to a consumer process and accept commands back from it.
package ipc

import (
	"time"

	sjson "github.com/segmentio/encoding/json"
)

// MaxMessageSize is the payload size limit of the dialect (spec §3:
// IPC_MAX_MESSAGE_SIZE). DecodeLine and EncodeLine do not check it.
const MaxMessageSize = 4096

// BufferSize bounds the line scanner's accumulator (spec §3:
// IPC_BUFFER_SIZE).
const BufferSize = 8192

// Reader-to-consumer message types (spec §6).
const (
	TypeReaderStatusUpdate  = "READER_STATUS_UPDATE"
	TypeDeviceFrameReceived = "DEVICE_FRAME_RECEIVED"
	TypeDeviceLogReceived   = "DEVICE_LOG_RECEIVED"
	TypeCommandResponse     = "COMMAND_RESPONSE"
	// TypeRaw marks a line that did not parse as JSON; the whole line
	// is carried verbatim as its payload (spec §4.6: "fault-tolerance
	// to ease debugging").
	TypeRaw = "RAW"
)

// Consumer-to-reader message types (spec §6).
const (
	TypeForwardToDevice     = "FORWARD_TO_DEVICE"
	TypeSetReaderMode       = "SET_READER_MODE"
	TypeRequestReaderStatus = "REQUEST_READER_STATUS"
)

// Payload is the sum type spec §9 calls for: "payload can be a nested
// object or a string". Exactly one of Str/Raw is meaningful,
// discriminated by IsString.
type Payload struct {
	IsString bool
	Str      string
	Raw      sjson.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.IsString {
		return sjson.Marshal(p.Str)
	}
	if len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

// UnmarshalJSON implements json.Unmarshaler: a JSON string decodes to
// Str (a literal null also takes this branch, leaving Str empty);
// anything else (object, array, number, bool) is kept as opaque Raw
// bytes, exactly as spec §3 treats non-string payloads ("opaque to the
// framing layer").
func (p *Payload) UnmarshalJSON(data []byte) error {
	var asString string
	if err := sjson.Unmarshal(data, &asString); err == nil {
		p.IsString = true
		p.Str = asString
		return nil
	}
	p.IsString = false
	p.Raw = append(sjson.RawMessage(nil), data...)
	return nil
}

// StringPayload builds a Payload carrying a plain string.
func StringPayload(s string) *Payload {
	return &Payload{IsString: true, Str: s}
}

// Message is one line of the IPC dialect (spec §3/§6): a required
// type, and optional id/timestamp/payload.
type Message struct {
	Type      string   `json:"type"`
	ID        string   `json:"id,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Payload   *Payload `json:"payload,omitempty"`
}

// DecodeLine parses one LF-stripped line. It never fails: a line that
// doesn't parse as a JSON object with at least a "type" field is
// delivered as a TypeRaw message carrying the whole line as its
// payload, matching the permissive-dialect contract of spec §4.6/§6.
func DecodeLine(line []byte) Message {
	var msg Message
	if err := sjson.Unmarshal(line, &msg); err != nil || msg.Type == "" {
		return Message{Type: TypeRaw, Payload: StringPayload(string(line))}
	}
	return msg
}

// EncodeLine serializes msg as one LF-terminated JSON line, filling
// in Timestamp if it is empty.
func EncodeLine(msg Message) ([]byte, error) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	body, err := sjson.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return append(body, '\n'), nil
}
