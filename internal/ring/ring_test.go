package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRing(t *testing.T) *Ring {
	mem := make([]byte, Size)
	r, err := Attach(mem, true)
	require.NoError(t, err)
	return r
}

func TestAttachCreateInitializesHeader(t *testing.T) {
	r := newTestRing(t)
	assert.Equal(t, Magic, r.header.Magic)
	assert.Equal(t, Version, r.header.Version)
	assert.Zero(t, r.WriteIndex())
	assert.Zero(t, r.PacketCount())
}

func TestAttachValidatesExistingSegment(t *testing.T) {
	mem := make([]byte, Size)
	_, err := Attach(mem, true)
	require.NoError(t, err)

	r2, err := Attach(mem, false)
	require.NoError(t, err)
	assert.Equal(t, Magic, r2.header.Magic)
}

func TestAttachRejectsIncompatibleSegment(t *testing.T) {
	mem := make([]byte, Size)
	_, err := Attach(mem, true)
	require.NoError(t, err)

	mem[0] ^= 0xFF // corrupt the magic

	_, err = Attach(mem, false)
	assert.ErrorIs(t, err, ErrIncompatibleSharedMemory)
}

func TestAttachRejectsUndersizedSegment(t *testing.T) {
	_, err := Attach(make([]byte, 16), true)
	assert.Error(t, err)
}

func TestWriteReadRoundTrip(t *testing.T) {
	r := newTestRing(t)
	payload := []byte{0x01, 0x02, 0x03}

	require.NoError(t, r.Write(1000, 7, payload))
	assert.Equal(t, uint32(1), r.WriteIndex())
	assert.Equal(t, uint32(1), r.PacketCount())

	pkt := r.ReadSlot(0)
	assert.Equal(t, uint32(1000), pkt.TimestampMs)
	assert.Equal(t, uint16(7), pkt.Sequence)
	assert.Equal(t, payload, pkt.Payload)
}

func TestWriteOrderingPreservedAcrossSlots(t *testing.T) {
	r := newTestRing(t)
	for i := uint16(0); i < 10; i++ {
		require.NoError(t, r.Write(uint32(i)*10, i, []byte{byte(i)}))
	}

	for i := uint32(0); i < 10; i++ {
		pkt := r.ReadSlot(i)
		assert.Equal(t, uint16(i), pkt.Sequence)
	}
}

func TestWriteRejectsOversizedPayload(t *testing.T) {
	r := newTestRing(t)
	err := r.Write(0, 0, make([]byte, MaxPayloadLen+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestWriteWrapsAroundBufferSize(t *testing.T) {
	r := newTestRing(t)
	for i := 0; i < BufferSize+5; i++ {
		require.NoError(t, r.Write(0, uint16(i), nil))
	}
	assert.Equal(t, uint32(BufferSize+5), r.WriteIndex())

	// The slot at index 0 (mod BufferSize) has been overwritten by
	// write number BufferSize; this is the documented lossy-overwrite
	// contract, not a bug.
	pkt := r.ReadSlot(uint32(BufferSize))
	assert.Equal(t, uint16(BufferSize), pkt.Sequence)
}
