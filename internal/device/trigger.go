package device

import (
	"math/rand"
	"time"

	"github.com/librescoot/daq-bridge/internal/protocol"
)

// TriggerTickResult is what a TriggerSource wants to happen on one
// generator tick while the device is armed in trigger mode.
type TriggerTickResult struct {
	// Events holds zero or more frames to send this tick, e.g.
	// EVENT_TRIGGERED or BUFFER_TRANSFER_COMPLETE, in send order.
	Events []Outbound
	// EmitDataPacket tells the generator to also build and send one
	// ordinary DATA_PACKET this tick, as part of the post-trigger
	// replay. The generator sends that packet ahead of Events, so a
	// BUFFER_TRANSFER_COMPLETE follows the last replayed packet.
	EmitDataPacket bool
}

// TriggerSource is the device's pluggable "something decided a
// trigger fired" strategy. TriggerScheduler and EdgeTrigger are the
// two alternatives named in the data-plane design; the device wires
// exactly one at a time (spec: "Either may be chosen — but only one
// fires per armed cycle").
type TriggerSource interface {
	// Arm resets the source's internal state for a fresh trigger cycle.
	Arm(d *Device, now time.Time)
	// Disarm stops the source, e.g. on leaving trigger mode.
	Disarm(d *Device)
	// Observe lets the source inspect a freshly generated sample. Only
	// the edge detector uses this; the scheduler ignores it.
	Observe(channel byte, value int16)
	// Tick runs once per generator tick while mode==TRIGGER and the
	// source is armed.
	Tick(d *Device, now time.Time) TriggerTickResult
}

// TriggerScheduler fires after a randomized delay regardless of the
// sample stream's content, then replays a randomized number of data
// packets. This is the scheduler variant of §4.4.
type TriggerScheduler struct {
	rnd *rand.Rand

	armedAt         time.Time
	triggerDelay    time.Duration
	packetsToSend   int
	packetsSent     int
	firedEventFrame bool
}

// NewTriggerScheduler returns a scheduler seeded with seed.
func NewTriggerScheduler(seed int64) *TriggerScheduler {
	return &TriggerScheduler{rnd: rand.New(rand.NewSource(seed))}
}

// Arm implements TriggerSource.
func (s *TriggerScheduler) Arm(d *Device, now time.Time) {
	d.Trigger.Occurred = false
	s.armedAt = now
	s.triggerDelay = time.Duration(10000+s.rnd.Intn(6000)) * time.Millisecond // uniform(10000, 15999) ms
	s.packetsToSend = 5 + s.rnd.Intn(6)                                       // uniform(5, 10)
	s.packetsSent = 0
	s.firedEventFrame = false
}

// Disarm implements TriggerSource.
func (s *TriggerScheduler) Disarm(d *Device) {
	d.Trigger.Occurred = false
}

// Observe implements TriggerSource; the scheduler ignores sample content.
func (s *TriggerScheduler) Observe(byte, int16) {}

// Tick implements TriggerSource.
func (s *TriggerScheduler) Tick(d *Device, now time.Time) TriggerTickResult {
	var result TriggerTickResult

	if now.Before(s.armedAt.Add(s.triggerDelay)) {
		return result
	}

	if !s.firedEventFrame {
		d.Trigger.Occurred = true
		s.firedEventFrame = true
		result.Events = append(result.Events, Outbound{
			Cmd: protocol.CmdEventTriggered,
			Payload: protocol.EncodeEventTriggered(protocol.EventTriggered{
				TimestampMs: d.TimestampMs,
				Channel:     0,
				PreSamples:  d.Trigger.PreSamples,
				PostSamples: d.Trigger.PostSamples,
			}),
		})
		result.Events = append(result.Events, logFrame(LogWarn, "Trigger event detected"))
		return result
	}

	if s.packetsSent < s.packetsToSend {
		s.packetsSent++
		result.EmitDataPacket = true
		if s.packetsSent == s.packetsToSend {
			result.Events = append(result.Events, Outbound{Cmd: protocol.CmdBufferTransferComplete})
			s.Arm(d, now) // reschedule for the next cycle
		}
	}
	return result
}

// EdgeTrigger fires the first time channel 0's live samples cross
// Threshold from below, rather than on a fixed delay. It is the
// "upper-crossing detector" alternative named in §4.4; a device wires
// either this or TriggerScheduler, never both.
type EdgeTrigger struct {
	rnd *rand.Rand

	threshold   int16
	lastSample  int16
	haveLast    bool
	crossed     bool

	packetsToSend int
	packetsSent   int
	fired         bool
}

// NewEdgeTrigger returns an edge detector that fires when channel 0
// rises past threshold.
func NewEdgeTrigger(threshold int16, seed int64) *EdgeTrigger {
	return &EdgeTrigger{rnd: rand.New(rand.NewSource(seed)), threshold: threshold}
}

// Arm implements TriggerSource.
func (e *EdgeTrigger) Arm(d *Device, now time.Time) {
	d.Trigger.Occurred = false
	e.haveLast = false
	e.crossed = false
	e.fired = false
	e.packetsSent = 0
	e.packetsToSend = 5 + e.rnd.Intn(6)
}

// Disarm implements TriggerSource.
func (e *EdgeTrigger) Disarm(d *Device) {
	d.Trigger.Occurred = false
}

// Observe implements TriggerSource: only channel 0 feeds the detector.
func (e *EdgeTrigger) Observe(channel byte, value int16) {
	if channel != 0 {
		return
	}
	if e.haveLast && e.lastSample < e.threshold && value >= e.threshold {
		e.crossed = true
	}
	e.lastSample = value
	e.haveLast = true
}

// Tick implements TriggerSource.
func (e *EdgeTrigger) Tick(d *Device, now time.Time) TriggerTickResult {
	var result TriggerTickResult

	if !e.crossed {
		return result
	}

	if !e.fired {
		d.Trigger.Occurred = true
		e.fired = true
		result.Events = append(result.Events, Outbound{
			Cmd: protocol.CmdEventTriggered,
			Payload: protocol.EncodeEventTriggered(protocol.EventTriggered{
				TimestampMs: d.TimestampMs,
				Channel:     0,
				PreSamples:  d.Trigger.PreSamples,
				PostSamples: d.Trigger.PostSamples,
			}),
		})
		result.Events = append(result.Events, logFrame(LogWarn, "Trigger event detected"))
		return result
	}

	if e.packetsSent < e.packetsToSend {
		e.packetsSent++
		result.EmitDataPacket = true
		if e.packetsSent == e.packetsToSend {
			result.Events = append(result.Events, Outbound{Cmd: protocol.CmdBufferTransferComplete})
			e.crossed = false
			e.fired = false
			e.packetsSent = 0
		}
	}
	return result
}
