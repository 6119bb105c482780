// Package device implements the simulated acquisition device: its
// command dispatcher (C3) and data-plane generator (C4). A Device
// value is owned by exactly one goroutine — the session loop that
// selects between inbound frames and the generator's ticker — so none
// of its fields are protected by a mutex; see the reader/simulator
// orchestration for how that single-owner discipline is kept.
package device

import (
	"math/rand"

	"github.com/librescoot/daq-bridge/internal/protocol"
)

// Channel mirrors one acquisition channel's capability and current
// configuration.
type Channel struct {
	ID                   byte
	MaxRateHz            uint32
	SupportedFormatsMask uint16
	Name                 string

	Enabled       bool
	CurrentRateHz uint32
	CurrentFormat byte
}

const (
	FormatInt16 = 0x01
	FormatInt32 = 0x02
)

// TriggerBufferSize is the capacity of the circular sample buffer kept
// around a trigger event.
const TriggerBufferSize = 4096

// TriggerContext holds the device's trigger-mode state. It is reset
// whenever the mode transitions into TRIGGER.
type TriggerContext struct {
	Armed       bool
	Threshold   float32
	PreSamples  uint32
	PostSamples uint32

	Buffer    [TriggerBufferSize]int16
	WriteHead int

	Occurred bool
}

// Outbound is one frame the dispatcher or generator wants sent. The
// session loop assigns it a sequence number (via Device.NextSeq) and
// builds the wire bytes with protocol.BuildFrame.
type Outbound struct {
	Cmd     protocol.CommandID
	Payload []byte
}

// Log levels used on LOG_MESSAGE frames.
const (
	LogInfo  byte = 1
	LogWarn  byte = 2
	LogError byte = 3
)

func logFrame(level byte, message string) Outbound {
	return Outbound{Cmd: protocol.CmdLogMessage, Payload: protocol.EncodeLogMessage(level, message)}
}

// Device is the full simulated acquisition device state.
type Device struct {
	UniqueID        uint64
	FirmwareVersion uint16

	Mode        protocol.Mode
	Stream      protocol.StreamState
	SeqCounter  byte
	TimestampMs uint32
	ErrorFlag   bool
	ErrorCode   byte

	Channels []Channel

	Trigger       TriggerContext
	TriggerSource TriggerSource

	Sampler SampleSource

	rand *rand.Rand
}

// NewDevice returns a device with the two default channels (spec
// defaults: id 0 "Voltage", id 1 "Current", both capped at 100 kHz,
// supporting int16 and int32), the given sample source, and the given
// trigger source.
func NewDevice(uniqueID uint64, fwVersion uint16, sampler SampleSource, trigger TriggerSource, seed int64) *Device {
	return &Device{
		UniqueID:        uniqueID,
		FirmwareVersion: fwVersion,
		Mode:            protocol.ModeContinuous,
		Stream:          protocol.StreamStopped,
		Channels: []Channel{
			{ID: 0, MaxRateHz: 100000, SupportedFormatsMask: FormatInt16 | FormatInt32, Name: "Voltage"},
			{ID: 1, MaxRateHz: 100000, SupportedFormatsMask: FormatInt16 | FormatInt32, Name: "Current"},
		},
		TriggerSource: trigger,
		Sampler:       sampler,
		rand:          rand.New(rand.NewSource(seed)),
	}
}

// NextSeq returns the next outbound sequence number, wrapping at 256.
func (d *Device) NextSeq() byte {
	seq := d.SeqCounter
	d.SeqCounter++
	return seq
}

// EnabledChannelMask returns the bitmask of currently enabled channels.
func (d *Device) EnabledChannelMask() uint16 {
	var mask uint16
	for _, ch := range d.Channels {
		if ch.Enabled {
			mask |= 1 << ch.ID
		}
	}
	return mask
}

// MinEnabledRateHz returns the lowest CurrentRateHz among enabled
// channels, or 0 if none are enabled.
func (d *Device) MinEnabledRateHz() uint32 {
	var min uint32
	first := true
	for _, ch := range d.Channels {
		if !ch.Enabled {
			continue
		}
		if first || ch.CurrentRateHz < min {
			min = ch.CurrentRateHz
			first = false
		}
	}
	return min
}

// channelByID returns a pointer to the channel with the given id, or
// nil if none exists.
func (d *Device) channelByID(id byte) *Channel {
	for i := range d.Channels {
		if d.Channels[i].ID == id {
			return &d.Channels[i]
		}
	}
	return nil
}
