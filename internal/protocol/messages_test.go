package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRoundTrip(t *testing.T) {
	payload := EncodeStatus(ModeTrigger, StreamRunning, true, 0x07)
	mode, stream, errFlag, errCode, err := DecodeStatus(payload)
	require.NoError(t, err)
	assert.Equal(t, ModeTrigger, mode)
	assert.Equal(t, StreamRunning, stream)
	assert.True(t, errFlag)
	assert.Equal(t, byte(0x07), errCode)
}

func TestDeviceInfoRoundTrip(t *testing.T) {
	channels := []ChannelInfo{
		{ID: 0, MaxRateHz: 100000, SupportedFormatsMask: 0x01, Name: "ch0"},
		{ID: 1, MaxRateHz: 50000, SupportedFormatsMask: 0x03, Name: "ch1"},
	}
	payload := EncodeDeviceInfo(42, channels)
	version, fw, got, err := DecodeDeviceInfo(payload)
	require.NoError(t, err)
	assert.Equal(t, byte(6), version)
	assert.Equal(t, uint16(42), fw)
	assert.Equal(t, channels, got)
}

func TestConfigureStreamRoundTrip(t *testing.T) {
	configs := []ChannelConfigRequest{
		{ChannelID: 0, RateHz: 1000, Format: 1},
		{ChannelID: 1, RateHz: 2000, Format: 2},
	}
	payload := EncodeConfigureStream(configs)
	got, err := DecodeConfigureStream(payload)
	require.NoError(t, err)
	assert.Equal(t, configs, got)
}

func TestConfigureStreamTruncatedEntry(t *testing.T) {
	_, err := DecodeConfigureStream([]byte{0x02, 0x00})
	assert.Error(t, err)
}

func TestDataPacketRoundTripNonInterleaved(t *testing.T) {
	samples := map[byte][]int16{
		0: {100, -100, 200},
		2: {5, -5, 9},
	}
	mask := uint16(1<<0 | 1<<2)
	payload := EncodeDataPacket(1234, mask, 3, samples)

	dp, err := DecodeDataPacket(payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), dp.TimestampMs)
	assert.Equal(t, mask, dp.ChannelMask)
	assert.Equal(t, uint16(3), dp.SampleCount)
	assert.Equal(t, samples[0], dp.SamplesByID[0])
	assert.Equal(t, samples[2], dp.SamplesByID[2])
	_, hasCh1 := dp.SamplesByID[1]
	assert.False(t, hasCh1)
}

func TestEventTriggeredRoundTrip(t *testing.T) {
	e := EventTriggered{TimestampMs: 9001, Channel: 2, PreSamples: 50, PostSamples: 150}
	payload := EncodeEventTriggered(e)
	got, err := DecodeEventTriggered(payload)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestLogMessageRoundTrip(t *testing.T) {
	payload := EncodeLogMessage(2, "channel 1 overrange")
	level, msg, err := DecodeLogMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, byte(2), level)
	assert.Equal(t, "channel 1 overrange", msg)
}

func TestLogMessageTruncatesOversizedMessage(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	payload := EncodeLogMessage(1, string(long))
	_, msg, err := DecodeLogMessage(payload)
	require.NoError(t, err)
	assert.Len(t, msg, 253)
}

func TestPongRoundTrip(t *testing.T) {
	payload := EncodePong(0x1122334455667788)
	id, err := DecodePong(payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), id)
}
