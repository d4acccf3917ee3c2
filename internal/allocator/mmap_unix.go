//go:build unix

package allocator

import "golang.org/x/sys/unix"

// mapping is a real anonymous memory mapping backing a region's byte
// budget. It is never dereferenced by internal/heap — it exists so the
// region's capacity accounting corresponds to real, committed address
// space, matching the teacher's own comment in region_alloc.go that
// production code "would use mmap() on Unix or VirtualAlloc() on Windows."
type mapping struct {
	data   []byte
	mapped bool // true when data came from unix.Mmap and must be unmapped
}

func newMapping(capacity uintptr, enabled bool) (*mapping, error) {
	if !enabled {
		return &mapping{data: make([]byte, capacity)}, nil
	}

	data, err := unix.Mmap(-1, 0, int(capacity), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}

	return &mapping{data: data, mapped: true}, nil
}

func (m *mapping) close() error {
	if !m.mapped || m.data == nil {
		return nil
	}

	err := unix.Munmap(m.data)
	m.data = nil

	return err
}
