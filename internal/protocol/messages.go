package protocol

import (
	"encoding/binary"
	"fmt"
)

// ChannelInfo describes one channel's capabilities, as carried by
// DEVICE_INFO_RESPONSE.
type ChannelInfo struct {
	ID                   byte
	MaxRateHz            uint32
	SupportedFormatsMask uint16
	Name                 string
}

// ChannelConfigRequest is one entry of a CONFIGURE_STREAM request.
type ChannelConfigRequest struct {
	ChannelID byte
	RateHz    uint32
	Format    byte
}

// EncodeStatus builds the 8-byte STATUS_RESPONSE payload.
func EncodeStatus(mode Mode, stream StreamState, errFlag bool, errCode byte) []byte {
	payload := make([]byte, 8)
	payload[0] = byte(mode)
	payload[1] = byte(stream)
	if errFlag {
		payload[2] = 1
	}
	payload[3] = errCode
	return payload
}

// DecodeStatus parses a STATUS_RESPONSE payload.
func DecodeStatus(payload []byte) (mode Mode, stream StreamState, errFlag bool, errCode byte, err error) {
	if len(payload) < 4 {
		return 0, 0, false, 0, fmt.Errorf("protocol: status payload too short: %d bytes", len(payload))
	}
	return Mode(payload[0]), StreamState(payload[1]), payload[2] != 0, payload[3], nil
}

// EncodePong builds the 8-byte PONG payload.
func EncodePong(deviceUniqueID uint64) []byte {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint64(payload, deviceUniqueID)
	return payload
}

// DecodePong parses a PONG payload.
func DecodePong(payload []byte) (uint64, error) {
	if len(payload) < 8 {
		return 0, fmt.Errorf("protocol: pong payload too short: %d bytes", len(payload))
	}
	return binary.LittleEndian.Uint64(payload), nil
}

// EncodeDeviceInfo builds the DEVICE_INFO_RESPONSE payload.
func EncodeDeviceInfo(fwVersion uint16, channels []ChannelInfo) []byte {
	out := make([]byte, 0, 4+len(channels)*16)
	out = append(out, 6) // protocol_version
	fw := make([]byte, 2)
	binary.LittleEndian.PutUint16(fw, fwVersion)
	out = append(out, fw...)
	out = append(out, byte(len(channels)))

	for _, ch := range channels {
		out = append(out, ch.ID)
		rate := make([]byte, 4)
		binary.LittleEndian.PutUint32(rate, ch.MaxRateHz)
		out = append(out, rate...)
		formats := make([]byte, 2)
		binary.LittleEndian.PutUint16(formats, ch.SupportedFormatsMask)
		out = append(out, formats...)
		name := []byte(ch.Name)
		if len(name) > 255 {
			name = name[:255]
		}
		out = append(out, byte(len(name)))
		out = append(out, name...)
	}
	return out
}

// DecodeDeviceInfo parses a DEVICE_INFO_RESPONSE payload.
func DecodeDeviceInfo(payload []byte) (protocolVersion byte, fwVersion uint16, channels []ChannelInfo, err error) {
	if len(payload) < 4 {
		return 0, 0, nil, fmt.Errorf("protocol: device-info payload too short: %d bytes", len(payload))
	}
	protocolVersion = payload[0]
	fwVersion = binary.LittleEndian.Uint16(payload[1:3])
	numChannels := int(payload[3])

	offset := 4
	for i := 0; i < numChannels; i++ {
		if offset+8 > len(payload) {
			return 0, 0, nil, fmt.Errorf("protocol: device-info truncated at channel %d", i)
		}
		id := payload[offset]
		rate := binary.LittleEndian.Uint32(payload[offset+1 : offset+5])
		formats := binary.LittleEndian.Uint16(payload[offset+5 : offset+7])
		nameLen := int(payload[offset+7])
		offset += 8
		if offset+nameLen > len(payload) {
			return 0, 0, nil, fmt.Errorf("protocol: device-info truncated channel name at %d", i)
		}
		name := string(payload[offset : offset+nameLen])
		offset += nameLen

		channels = append(channels, ChannelInfo{
			ID:                   id,
			MaxRateHz:            rate,
			SupportedFormatsMask: formats,
			Name:                 name,
		})
	}
	return protocolVersion, fwVersion, channels, nil
}

// EncodeConfigureStream builds a CONFIGURE_STREAM request payload.
func EncodeConfigureStream(configs []ChannelConfigRequest) []byte {
	out := make([]byte, 1, 1+len(configs)*6)
	out[0] = byte(len(configs))
	for _, c := range configs {
		rate := make([]byte, 4)
		binary.LittleEndian.PutUint32(rate, c.RateHz)
		out = append(out, c.ChannelID)
		out = append(out, rate...)
		out = append(out, c.Format)
	}
	return out
}

// DecodeConfigureStream parses a CONFIGURE_STREAM request payload. It
// returns a malformed-payload error if the count byte is missing or an
// entry is truncated; it does not validate channel semantics, which is
// the dispatcher's job.
func DecodeConfigureStream(payload []byte) ([]ChannelConfigRequest, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("protocol: configure-stream payload empty")
	}
	n := int(payload[0])
	configs := make([]ChannelConfigRequest, 0, n)
	offset := 1
	for i := 0; i < n; i++ {
		if offset+6 > len(payload) {
			return nil, fmt.Errorf("protocol: configure-stream truncated at entry %d", i)
		}
		configs = append(configs, ChannelConfigRequest{
			ChannelID: payload[offset],
			RateHz:    binary.LittleEndian.Uint32(payload[offset+1 : offset+5]),
			Format:    payload[offset+5],
		})
		offset += 6
	}
	return configs, nil
}

// DataPacket is a decoded DATA_PACKET payload: one slice of i16
// samples per enabled channel, indexed by ascending channel id.
type DataPacket struct {
	TimestampMs  uint32
	ChannelMask  uint16
	SampleCount  uint16
	SamplesByID  map[byte][]int16
}

// EncodeDataPacket builds a DATA_PACKET payload. samplesByID must
// contain exactly the channels set in channelMask; channels are
// emitted in ascending id order, non-interleaved.
func EncodeDataPacket(timestampMs uint32, channelMask uint16, sampleCount uint16, samplesByID map[byte][]int16) []byte {
	out := make([]byte, 8, 8+int(sampleCount)*2*popcount16(channelMask))
	binary.LittleEndian.PutUint32(out[0:4], timestampMs)
	binary.LittleEndian.PutUint16(out[4:6], channelMask)
	binary.LittleEndian.PutUint16(out[6:8], sampleCount)

	for id := byte(0); id < MaxChannels; id++ {
		if channelMask&(1<<id) == 0 {
			continue
		}
		samples := samplesByID[id]
		for _, s := range samples {
			b := make([]byte, 2)
			binary.LittleEndian.PutUint16(b, uint16(s))
			out = append(out, b...)
		}
	}
	return out
}

// DecodeDataPacket parses a DATA_PACKET payload.
func DecodeDataPacket(payload []byte) (DataPacket, error) {
	if len(payload) < 8 {
		return DataPacket{}, fmt.Errorf("protocol: data-packet payload too short: %d bytes", len(payload))
	}
	dp := DataPacket{
		TimestampMs: binary.LittleEndian.Uint32(payload[0:4]),
		ChannelMask: binary.LittleEndian.Uint16(payload[4:6]),
		SampleCount: binary.LittleEndian.Uint16(payload[6:8]),
		SamplesByID: make(map[byte][]int16),
	}

	offset := 8
	for id := byte(0); id < MaxChannels; id++ {
		if dp.ChannelMask&(1<<id) == 0 {
			continue
		}
		need := int(dp.SampleCount) * 2
		if offset+need > len(payload) {
			return DataPacket{}, fmt.Errorf("protocol: data-packet truncated at channel %d", id)
		}
		samples := make([]int16, dp.SampleCount)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(payload[offset+i*2 : offset+i*2+2]))
		}
		dp.SamplesByID[id] = samples
		offset += need
	}
	return dp, nil
}

// EventTriggered is a decoded EVENT_TRIGGERED payload.
type EventTriggered struct {
	TimestampMs uint32
	Channel     uint16
	PreSamples  uint32
	PostSamples uint32
}

// EncodeEventTriggered builds an EVENT_TRIGGERED payload.
func EncodeEventTriggered(e EventTriggered) []byte {
	out := make([]byte, 14)
	binary.LittleEndian.PutUint32(out[0:4], e.TimestampMs)
	binary.LittleEndian.PutUint16(out[4:6], e.Channel)
	binary.LittleEndian.PutUint32(out[6:10], e.PreSamples)
	binary.LittleEndian.PutUint32(out[10:14], e.PostSamples)
	return out
}

// DecodeEventTriggered parses an EVENT_TRIGGERED payload.
func DecodeEventTriggered(payload []byte) (EventTriggered, error) {
	if len(payload) < 14 {
		return EventTriggered{}, fmt.Errorf("protocol: event-triggered payload too short: %d bytes", len(payload))
	}
	return EventTriggered{
		TimestampMs: binary.LittleEndian.Uint32(payload[0:4]),
		Channel:     binary.LittleEndian.Uint16(payload[4:6]),
		PreSamples:  binary.LittleEndian.Uint32(payload[6:10]),
		PostSamples: binary.LittleEndian.Uint32(payload[10:14]),
	}, nil
}

// EncodeLogMessage builds a LOG_MESSAGE payload: level byte, then a
// length-prefixed message string (message is truncated to 253 bytes,
// matching the device's fixed 256-byte log buffer).
func EncodeLogMessage(level byte, message string) []byte {
	msg := []byte(message)
	if len(msg) > 253 {
		msg = msg[:253]
	}
	out := make([]byte, 2+len(msg))
	out[0] = level
	out[1] = byte(len(msg))
	copy(out[2:], msg)
	return out
}

// DecodeLogMessage parses a LOG_MESSAGE payload.
func DecodeLogMessage(payload []byte) (level byte, message string, err error) {
	if len(payload) < 2 {
		return 0, "", fmt.Errorf("protocol: log-message payload too short: %d bytes", len(payload))
	}
	level = payload[0]
	msgLen := int(payload[1])
	if 2+msgLen > len(payload) {
		return 0, "", fmt.Errorf("protocol: log-message truncated")
	}
	return level, string(payload[2 : 2+msgLen]), nil
}

func popcount16(v uint16) int {
	count := 0
	for v != 0 {
		count++
		v &= v - 1
	}
	return count
}
