package device

import (
	"time"

	"github.com/librescoot/daq-bridge/internal/protocol"
)

// DataSendInterval is the generator's pacing target (spec §4.4:
// DATA_SEND_INTERVAL_MS = 10).
const DataSendInterval = 10 * time.Millisecond

// Generator drives Device through one DATA_SEND_INTERVAL tick at a
// time, producing DATA_PACKET (and, in trigger mode, EVENT_TRIGGERED /
// BUFFER_TRANSFER_COMPLETE) frames. It owns the per-channel absolute
// sample counters the sample source needs.
type Generator struct {
	d *Device

	sampleIndex map[byte]uint64
}

// NewGenerator wraps d.
func NewGenerator(d *Device) *Generator {
	return &Generator{d: d, sampleIndex: make(map[byte]uint64)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// buildDataPacket samples every enabled channel for one tick and
// returns the DATA_PACKET frame for it. It advances the sample counter
// of every enabled channel and always advances d.TimestampMs, so even
// an empty-mask packet marks the tick's passage.
func (g *Generator) buildDataPacket() Outbound {
	d := g.d
	mask := d.EnabledChannelMask()
	sampleCount := uint16(clamp(int(d.MinEnabledRateHz())*10/1000, 1, 100))

	samplesByID := make(map[byte][]int16)
	for _, ch := range d.Channels {
		if !ch.Enabled {
			continue
		}
		samples := make([]int16, sampleCount)
		idx := g.sampleIndex[ch.ID]
		for i := range samples {
			v := d.Sampler.Sample(ch.ID, idx+uint64(i), ch.CurrentRateHz)
			samples[i] = v
			if edge, ok := d.TriggerSource.(*EdgeTrigger); ok {
				edge.Observe(ch.ID, v)
			}
		}
		samplesByID[ch.ID] = samples
		g.sampleIndex[ch.ID] = idx + uint64(sampleCount)
	}

	payload := protocol.EncodeDataPacket(d.TimestampMs, mask, sampleCount, samplesByID)
	d.TimestampMs += uint32(DataSendInterval / time.Millisecond)

	return Outbound{Cmd: protocol.CmdDataPacket, Payload: payload}
}

// Tick advances the generator by one DATA_SEND_INTERVAL and returns
// the frames produced, in send order. It is a no-op when the stream
// is stopped.
func (g *Generator) Tick(now time.Time) []Outbound {
	d := g.d
	if d.Stream != protocol.StreamRunning {
		return nil
	}

	if d.Mode == protocol.ModeTrigger {
		result := d.TriggerSource.Tick(d, now)
		var out []Outbound
		if result.EmitDataPacket {
			out = append(out, g.buildDataPacket())
		}
		return append(out, result.Events...)
	}

	if d.EnabledChannelMask() == 0 {
		return nil
	}
	return []Outbound{g.buildDataPacket()}
}
