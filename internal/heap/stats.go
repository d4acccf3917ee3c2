package heap

import "sync"

// RegionStats is the per-region accounting SPEC_FULL.md section 4.10
// asks for, grounded in the teacher's RegionStats/AllocatorStats field
// set.
type RegionStats struct {
	LiveObjects uint64
	BytesInUse  uintptr
	Allocations uint64
	Frees       uint64
}

// Stats is the memory manager's overall statistics ledger: one
// RegionStats per region plus GC-cycle and remembered-set counters,
// mirroring the teacher's CompactionStatistics shape.
type Stats struct {
	mu sync.Mutex

	Nursery  RegionStats
	Graduate RegionStats
	Tenure   RegionStats

	YoungGCCount   uint64
	OldGCCount     uint64
	CompactGCCount uint64

	PromotedObjects uint64

	RememberedSetSize uint64

	CompactionBytesReclaimed uint64
}

// Snapshot returns a copy of the statistics safe for a caller to read
// without racing further mutation.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *s
	cp.mu = sync.Mutex{}

	return cp
}

func (s *Stats) recordAlloc(region RegionKind, size uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.regionLocked(region)
	rs.LiveObjects++
	rs.BytesInUse += size
	rs.Allocations++
}

func (s *Stats) recordFree(region RegionKind, size uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.regionLocked(region)
	if rs.LiveObjects > 0 {
		rs.LiveObjects--
	}
	if rs.BytesInUse >= size {
		rs.BytesInUse -= size
	}
	rs.Frees++
}

func (s *Stats) regionLocked(region RegionKind) *RegionStats {
	switch region {
	case RegionNursery:
		return &s.Nursery
	case RegionGraduate:
		return &s.Graduate
	default:
		return &s.Tenure
	}
}

func (s *Stats) recordRememberedSetSize(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.RememberedSetSize = n
}

func (s *Stats) recordPromotion() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PromotedObjects++
}

func (s *Stats) recordCompaction(reclaimed uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CompactGCCount++
	s.CompactionBytesReclaimed += uint64(reclaimed)
}
