package heap

import "go.uber.org/zap"

// runCompactGC executes spec.md section 4.6's slide-compaction pass. Per
// SPEC_FULL.md section 9 (OQ-1), a tenured Object's Go-level identity
// never moves, so this does not need the source's heap-wide reference
// rewrite: it only defragments the tenure FreeListAllocator's byte
// ledger and updates each surviving object's blockIndex bookkeeping to
// match its new ledger slot, the Go-level analogue of "the object's
// address changed."
func (vm *VM) runCompactGC(env *Env) {
	if !vm.stopTheWorld(env) {
		return
	}
	defer vm.resumeTheWorld(env)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	logger := vm.config.Logger
	logger.Debug("compact_gc_start")

	remap, reclaimed := vm.tenureAlloc.Compact()

	for o := vm.tenureList; o != nil; o = o.next {
		vm.checkObjectIntegrity(o)

		if o.blockIndex < 0 {
			continue
		}

		if newIdx, ok := remap[o.blockIndex]; ok {
			o.blockIndex = newIdx
		}
	}

	vm.stats.recordCompaction(reclaimed)

	logger.Debug("compact_gc_reclaimed", zap.Uint64("bytes_reclaimed", uint64(reclaimed)))
}
