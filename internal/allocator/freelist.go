package allocator

import (
	"fmt"
	"sync"
)

// block is one entry in the free-list allocator's byte ledger: a span of
// the tenure region's capacity that is either free or in use. It carries
// no payload — the tenured Object that "lives" at a given block is tracked
// by internal/heap, which records the block's index back on the object so
// compaction can relocate it (see DESIGN.md OQ-1).
type block struct {
	offset uintptr
	size   uintptr
	used   bool
}

// FreeListAllocator is a first-fit allocator over a fixed-capacity byte
// ledger, used for the tenure region. It packs each block's "used" state
// as a flag alongside its size rather than stealing the low bit of an
// actual size_t word (spec.md describes the C source's bit-packed size
// word; Go has no equivalent pointer-arithmetic hazard to avoid, so the
// flag is a plain bool field with the same semantics). Blocks are walked
// linearly for first-fit and are never split in the base allocator — see
// DESIGN.md OQ-2. A freed block at the tail is not coalesced until Compact
// runs, matching spec.md section 4.2.
type FreeListAllocator struct {
	config    *Config
	backing   *mapping
	capacity  uintptr
	blocks    []block // ordered by offset; mirrors the teacher's FreeBlock/AllocBlock walk
	highWater uintptr
	allocs    uint64
	frees     uint64
	mu        sync.Mutex
}

// NewFreeListAllocator creates a free-list allocator over capacity bytes.
func NewFreeListAllocator(capacity uintptr, config *Config) (*FreeListAllocator, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("allocator: tenure capacity must be greater than 0")
	}
	if config == nil {
		config = DefaultConfig()
	}

	m, err := newMapping(capacity, config.EnableMmap)
	if err != nil {
		return nil, fmt.Errorf("allocator: failed to reserve tenure backing: %w", err)
	}

	return &FreeListAllocator{
		config:   config,
		backing:  m,
		capacity: capacity,
	}, nil
}

// Alloc walks the block list for the first free block able to hold n
// bytes. It returns the block's index (stable until the next Compact) and
// true on success. On failure the caller should run mark-sweep, then
// Compact, then retry, per spec.md section 4.3's retry schedule.
func (f *FreeListAllocator) Alloc(n uintptr) (index int, ok bool) {
	if n == 0 {
		return -1, false
	}

	aligned := alignUp(n, f.config.AlignmentSize)

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.blocks {
		b := &f.blocks[i]
		if b.used || b.size < aligned {
			continue
		}

		// First-fit, no split: the whole block is handed out even if it
		// is larger than requested. A splitting variant would shrink b
		// here and insert a new free block for the remainder.
		b.used = true
		f.allocs++

		return i, true
	}

	if f.highWater+aligned > f.capacity {
		return -1, false
	}

	f.blocks = append(f.blocks, block{offset: f.highWater, size: aligned, used: true})
	f.highWater += aligned
	f.allocs++

	return len(f.blocks) - 1, true
}

// Free releases the block at index back to the ledger.
func (f *FreeListAllocator) Free(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if index < 0 || index >= len(f.blocks) {
		return
	}

	f.blocks[index].used = false
	f.frees++
}

// BlockSize returns the size in bytes of the block at index.
func (f *FreeListAllocator) BlockSize(index int) uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()

	if index < 0 || index >= len(f.blocks) {
		return 0
	}

	return f.blocks[index].size
}

// Compact defragments the ledger: every used block is slid down to
// eliminate gaps left by freed blocks, and the freed space is merged into
// a single trailing free span. It returns a remap table (old index ->
// new index) so internal/heap's compacting collector can update each
// surviving Object's recorded block index; no byte-level memmove of
// application data happens here because Object identity is a stable Go
// pointer, not an address (DESIGN.md OQ-1) — this call only changes which
// ledger index a still-used block answers to.
func (f *FreeListAllocator) Compact() (remap map[int]int, reclaimed uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()

	remap = make(map[int]int, len(f.blocks))
	newBlocks := make([]block, 0, len(f.blocks))
	var cursor uintptr

	for oldIdx, b := range f.blocks {
		if !b.used {
			continue
		}

		remap[oldIdx] = len(newBlocks)
		newBlocks = append(newBlocks, block{offset: cursor, size: b.size, used: true})
		cursor += b.size
	}

	reclaimed = f.highWater - cursor
	f.blocks = newBlocks
	f.highWater = cursor

	return remap, reclaimed
}

// Used returns the number of bytes currently allocated (used blocks only).
func (f *FreeListAllocator) Used() uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()

	var used uintptr
	for _, b := range f.blocks {
		if b.used {
			used += b.size
		}
	}

	return used
}

// Available returns the bytes still reachable by a future Alloc: either a
// free block big enough to reuse, or unclaimed high-water space. This is
// a coarse upper bound (sum of all free bytes), used for statistics, not
// for an actual allocation decision (a fragmented ledger can fail an
// Alloc despite Available() being large — that's the whole point of
// scenario S7).
func (f *FreeListAllocator) Available() uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()

	avail := f.capacity - f.highWater
	for _, b := range f.blocks {
		if !b.used {
			avail += b.size
		}
	}

	return avail
}

// FragmentationRatio estimates fragmentation as the fraction of free bytes
// that are not part of the trailing unclaimed span.
func (f *FreeListAllocator) FragmentationRatio() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	var scattered uintptr
	for _, b := range f.blocks {
		if !b.used {
			scattered += b.size
		}
	}

	total := scattered + (f.capacity - f.highWater)
	if total == 0 {
		return 0
	}

	return float64(scattered) / float64(total)
}

// Stats snapshots the allocator's accounting.
func (f *FreeListAllocator) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	var used, free uintptr
	for _, b := range f.blocks {
		if b.used {
			used += b.size
		} else {
			free += b.size
		}
	}

	return Stats{
		Capacity:        f.capacity,
		Used:            used,
		Allocations:     f.allocs,
		Frees:           f.frees,
		FragmentedBytes: free,
	}
}

// Close releases any real OS-level backing the allocator holds.
func (f *FreeListAllocator) Close() error {
	if f.backing == nil {
		return nil
	}

	return f.backing.close()
}
