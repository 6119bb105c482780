//go:build linux

package ring

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Segment is an mmap'd /dev/shm-backed file: Linux's POSIX shared
// memory segments are plain tmpfs files, so "shm_open" is just
// O_CREAT|O_RDWR against /dev/shm/<name>. This mirrors what
// original_source's CreateFileMapping/MapViewOfFile pair does on
// Windows, ported to the POSIX equivalent the reference repo itself
// targets on Linux.
type Segment struct {
	file *os.File
	mem  []byte
}

// OpenSegment opens (creating if needed) /dev/shm/<name>, sized to
// hold exactly one Ring, and mmaps it read-write shared.
func OpenSegment(name string) (*Segment, error) {
	path := "/dev/shm/" + name

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("ring: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("ring: stat %s: %w", path, err)
	}
	if info.Size() < Size {
		if err := file.Truncate(Size); err != nil {
			file.Close()
			return nil, fmt.Errorf("ring: truncate %s to %d bytes: %w", path, Size, err)
		}
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("ring: mmap %s: %w", path, err)
	}

	return &Segment{file: file, mem: mem}, nil
}

// Bytes returns the mapped region backing the segment, for Attach.
func (s *Segment) Bytes() []byte { return s.mem }

// Close unmaps and closes the backing file. The segment itself
// remains in /dev/shm until explicitly removed or the system reboots,
// matching the named-shared-memory lifetime model of spec §3.
func (s *Segment) Close() error {
	if err := unix.Munmap(s.mem); err != nil {
		s.file.Close()
		return fmt.Errorf("ring: munmap: %w", err)
	}
	return s.file.Close()
}

// RemoveSegment deletes the backing /dev/shm file. Call this from the
// process that owns the segment's lifetime once no attacher remains.
func RemoveSegment(name string) error {
	return os.Remove("/dev/shm/" + name)
}

// DefaultSegmentName is the logical shared-memory name from spec §3/§6.
const DefaultSegmentName = "ADC_DATA_SHARED_MEM"
