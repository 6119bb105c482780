package device

import (
	"time"

	"github.com/librescoot/daq-bridge/internal/protocol"
)

func nack(category, detail byte) Outbound {
	return Outbound{Cmd: protocol.CmdNack, Payload: protocol.NackReason(category, detail)}
}

func ack() Outbound {
	return Outbound{Cmd: protocol.CmdAck}
}

// Dispatch processes one (cmd, payload) pair against d, mutating
// device state and returning the frames to send in response, in
// order. It never panics or returns a Go error: every failure mode is
// surfaced as a NACK, per spec §7's "the command dispatcher never
// throws" propagation policy.
func Dispatch(d *Device, cmd protocol.CommandID, payload []byte, now time.Time) []Outbound {
	switch cmd {
	case protocol.CmdPing:
		return []Outbound{{Cmd: protocol.CmdPong, Payload: protocol.EncodePong(d.UniqueID)}}

	case protocol.CmdGetStatus:
		status := protocol.EncodeStatus(d.Mode, d.Stream, d.ErrorFlag, d.ErrorCode)
		return []Outbound{{Cmd: protocol.CmdStatus, Payload: status}}

	case protocol.CmdGetInfo:
		channels := make([]protocol.ChannelInfo, len(d.Channels))
		for i, ch := range d.Channels {
			channels[i] = protocol.ChannelInfo{
				ID:                   ch.ID,
				MaxRateHz:            ch.MaxRateHz,
				SupportedFormatsMask: ch.SupportedFormatsMask,
				Name:                 ch.Name,
			}
		}
		info := protocol.EncodeDeviceInfo(d.FirmwareVersion, channels)
		return []Outbound{{Cmd: protocol.CmdInfo, Payload: info}}

	case protocol.CmdSetModeContinuous:
		d.Mode = protocol.ModeContinuous
		d.Trigger.Armed = false
		d.Trigger.Occurred = false
		d.TriggerSource.Disarm(d)
		return []Outbound{ack(), logFrame(LogInfo, "Switched to continuous mode")}

	case protocol.CmdSetModeTrigger:
		d.Mode = protocol.ModeTrigger
		d.Trigger.Armed = true
		d.Trigger.Occurred = false
		d.TriggerSource.Arm(d, now)
		return []Outbound{ack(), logFrame(LogInfo, "Switched to trigger mode")}

	case protocol.CmdStartStream:
		d.Stream = protocol.StreamRunning
		d.TimestampMs = 0
		return []Outbound{ack(), logFrame(LogInfo, "Stream started")}

	case protocol.CmdStopStream:
		d.Stream = protocol.StreamStopped
		return []Outbound{ack(), logFrame(LogInfo, "Stream stopped")}

	case protocol.CmdConfigureStream:
		return dispatchConfigureStream(d, payload)

	case protocol.CmdRequestBufferedData:
		if d.Mode != protocol.ModeTrigger {
			return []Outbound{nack(protocol.NackCategoryState, protocol.NackDetailNotTriggerMode)}
		}
		if !d.Trigger.Occurred {
			return []Outbound{nack(protocol.NackCategoryState, protocol.NackDetailNotTriggered)}
		}
		return []Outbound{ack()}

	default:
		return []Outbound{nack(protocol.NackCategoryUnsupported, protocol.NackDetailUnknownCommand)}
	}
}

func dispatchConfigureStream(d *Device, payload []byte) []Outbound {
	configs, err := protocol.DecodeConfigureStream(payload)
	if err != nil {
		return []Outbound{nack(protocol.NackCategoryParameter, protocol.NackDetailMalformedPayload)}
	}

	for _, cfg := range configs {
		ch := d.channelByID(cfg.ChannelID)
		if ch == nil {
			return []Outbound{nack(protocol.NackCategoryParameter, protocol.NackDetailInvalidChannel)}
		}
		if cfg.RateHz > ch.MaxRateHz {
			return []Outbound{nack(protocol.NackCategoryParameter, protocol.NackDetailInvalidChannel)}
		}
		if cfg.Format != 0 && cfg.Format&byte(ch.SupportedFormatsMask) == 0 {
			return []Outbound{nack(protocol.NackCategoryParameter, protocol.NackDetailInvalidChannel)}
		}
	}

	// All entries validated: apply atomically.
	for _, cfg := range configs {
		ch := d.channelByID(cfg.ChannelID)
		ch.Enabled = cfg.RateHz > 0
		ch.CurrentRateHz = cfg.RateHz
		ch.CurrentFormat = cfg.Format
	}

	return []Outbound{ack(), logFrame(LogInfo, "Stream configured")}
}
