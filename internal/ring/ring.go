// Package ring implements the single-producer/single-consumer shared
// sample-packet ring (C5): a fixed-capacity circular buffer living in
// a named memory segment, shared byte-for-byte between the reader
// process (producer) and whatever consumer process attaches to it.
package ring

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

const (
	// Magic identifies a correctly initialized segment.
	Magic uint32 = 0xADC12345
	// Version is the only layout version this package understands.
	Version uint32 = 1
	// BufferSize is the fixed slot count of the ring.
	BufferSize = 1024
	// MaxPayloadLen bounds a single sample packet's payload.
	MaxPayloadLen = 4096

	headerSize = 32
	slotSize   = 4 + 2 + 2 + MaxPayloadLen // timestamp + sequence + payload_len + payload
	// Size is the total byte size a backing segment must provide.
	Size = headerSize + BufferSize*slotSize
)

// ErrIncompatibleSharedMemory is returned by Attach when an existing
// segment's magic or version does not match what this package writes.
var ErrIncompatibleSharedMemory = errors.New("ring: incompatible shared memory segment")

// ErrPayloadTooLarge is returned by Write when the payload exceeds
// MaxPayloadLen.
var ErrPayloadTooLarge = errors.New("ring: payload exceeds maximum length")

// header mirrors SharedMemHeader byte-for-byte: four uint32 counters,
// a status byte, and 7 reserved bytes, with no padding. WriteIndex,
// ReadIndex, and PacketCount are mutated only through sync/atomic so
// concurrent attachers observe consistent values without a lock.
type header struct {
	Magic       uint32
	Version     uint32
	WriteIndex  uint32
	ReadIndex   uint32
	BufferSize  uint32
	PacketCount uint32
	Status      uint8
	Reserved    [7]uint8
}

// Ring is a handle onto a backing byte segment laid out as one header
// followed by BufferSize fixed-size slots. The segment itself (an
// anonymous slice for tests, or an mmap'd /dev/shm file for real
// cross-process use — see posix.go) is supplied by the caller.
type Ring struct {
	mem    []byte
	header *header
}

// Attach wraps mem (which must be at least Size bytes) as a Ring. If
// create is true, the header is (re)initialized with Magic/Version
// and zeroed counters; otherwise the existing header is validated and
// ErrIncompatibleSharedMemory is returned on mismatch.
func Attach(mem []byte, create bool) (*Ring, error) {
	if len(mem) < Size {
		return nil, fmt.Errorf("ring: segment too small: have %d bytes, need %d", len(mem), Size)
	}

	r := &Ring{
		mem:    mem,
		header: (*header)(unsafe.Pointer(&mem[0])),
	}

	if create {
		r.header.Magic = Magic
		r.header.Version = Version
		atomic.StoreUint32(&r.header.WriteIndex, 0)
		atomic.StoreUint32(&r.header.ReadIndex, 0)
		r.header.BufferSize = BufferSize
		atomic.StoreUint32(&r.header.PacketCount, 0)
		r.header.Status = 1
		return r, nil
	}

	if r.header.Magic != Magic || r.header.Version != Version {
		return nil, ErrIncompatibleSharedMemory
	}
	return r, nil
}

// WriteIndex returns the current write cursor.
func (r *Ring) WriteIndex() uint32 { return atomic.LoadUint32(&r.header.WriteIndex) }

// PacketCount returns the total number of packets ever written.
func (r *Ring) PacketCount() uint32 { return atomic.LoadUint32(&r.header.PacketCount) }

func (r *Ring) slotOffset(index uint32) int {
	return headerSize + int(index%BufferSize)*slotSize
}

// Write copies timestampMs/sequence/payload into the next slot and
// publishes it: the slot's bytes are written first, then WriteIndex
// and PacketCount are incremented, so an acquire-ordered reader that
// observes the new WriteIndex is guaranteed to see the slot contents
// that go with it. There is no back-pressure: once the ring is full
// the oldest unread slot is silently overwritten (spec §4.5, "the
// reader is a lossy observer").
func (r *Ring) Write(timestampMs uint32, sequence uint16, payload []byte) error {
	if len(payload) > MaxPayloadLen {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	index := atomic.LoadUint32(&r.header.WriteIndex)
	off := r.slotOffset(index)
	slot := r.mem[off : off+slotSize]

	binary.LittleEndian.PutUint32(slot[0:4], timestampMs)
	binary.LittleEndian.PutUint16(slot[4:6], sequence)
	binary.LittleEndian.PutUint16(slot[6:8], uint16(len(payload)))
	zeroBytes(slot[8 : 8+MaxPayloadLen])
	copy(slot[8:8+len(payload)], payload)

	atomic.AddUint32(&r.header.WriteIndex, 1)
	atomic.AddUint32(&r.header.PacketCount, 1)
	return nil
}

// Packet is a decoded copy of one slot.
type Packet struct {
	TimestampMs uint32
	Sequence    uint16
	Payload     []byte
}

// ReadSlot decodes the slot at the given absolute write index (i.e.
// index, not index%BufferSize) into a Packet. Callers implementing
// the lossy-consumer contract (spec §4.5) should resync to
// WriteIndex()-BufferSize+1 whenever the writer has lapped them by
// more than BufferSize slots since their last snapshot.
func (r *Ring) ReadSlot(index uint32) Packet {
	off := r.slotOffset(index)
	slot := r.mem[off : off+slotSize]

	payloadLen := binary.LittleEndian.Uint16(slot[6:8])
	payload := make([]byte, payloadLen)
	copy(payload, slot[8:8+int(payloadLen)])

	return Packet{
		TimestampMs: binary.LittleEndian.Uint32(slot[0:4]),
		Sequence:    binary.LittleEndian.Uint16(slot[4:6]),
		Payload:     payload,
	}
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
