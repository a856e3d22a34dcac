package camera

import (
	"fmt"
	"syscall"
)

// Mapping is a process-visible view of a hardware buffer, valid from
// MapBuffer until Close. The data is kernel-shared memory; anything
// that must outlive the mapping has to be copied out first.
type Mapping struct {
	data  []byte
	unmap func([]byte) error
}

// mmap and munmap are swapped out in tests.
var (
	mmap = func(fd int, offset int64, length int) ([]byte, error) {
		return syscall.Mmap(fd, offset, length, syscall.PROT_READ, syscall.MAP_SHARED)
	}
	munmap = syscall.Munmap
)

// MapBuffer maps all planes of a buffer as one readable span. Planes
// must share a descriptor and be contiguous in mapping space, which is
// how the kernel lays out single-descriptor multi-plane buffers.
func MapBuffer(buf HardwareBuffer) (*Mapping, error) {
	if len(buf.Planes) == 0 {
		return nil, fmt.Errorf("buffer %d has no planes", buf.Index)
	}

	first := buf.Planes[0]
	expected := first.Offset
	for i, p := range buf.Planes {
		if p.FD != first.FD {
			return nil, fmt.Errorf("buffer %d plane %d on different descriptor", buf.Index, i)
		}
		if p.Offset != expected {
			return nil, fmt.Errorf("buffer %d plane %d not contiguous", buf.Index, i)
		}
		expected += int64(p.Length)
	}

	data, err := mmap(first.FD, first.Offset, buf.TotalLength())
	if err != nil {
		return nil, fmt.Errorf("failed to map buffer %d: %w", buf.Index, err)
	}

	return &Mapping{data: data, unmap: munmap}, nil
}

// Data returns the mapped bytes. Invalid after Close.
func (m *Mapping) Data() []byte {
	return m.data
}

// Close unmaps the buffer. Safe to call more than once.
func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return m.unmap(data)
}
