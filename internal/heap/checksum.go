package heap

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// computeChecksum folds an object's stable header fields (type, region,
// size) into a single xxhash digest, the Go-native replacement for the
// teacher's calculateHeaderChecksum XOR-fold (see SPEC_FULL.md section
// 4.11). It is recomputed whenever region or size changes and verified
// by the sweep/compaction passes when Config.EnableIntegrityChecks is
// set, catching a corrupted header before it reaches a type switch.
func computeChecksum(o *Object) uint64 {
	var buf [10]byte
	buf[0] = byte(o.typ)
	buf[1] = byte(o.region)
	binary.LittleEndian.PutUint64(buf[2:], uint64(o.size))

	return xxhash.Sum64(buf[:])
}

// refreshChecksum recomputes and stores o's header checksum.
func refreshChecksum(o *Object) {
	o.checksum = computeChecksum(o)
}

// verifyChecksum reports whether o's stored checksum still matches its
// current header fields.
func verifyChecksum(o *Object) bool {
	return o.checksum == computeChecksum(o)
}

// checkObjectIntegrity runs the debug-build checks spec.md section 7
// calls "invariants violated internally... may abort the process in
// debug builds": a corrupted header checksum (Config.EnableIntegrityChecks)
// or an object type the sweeper doesn't recognize (Config.EnableInvariantChecks)
// both panic rather than silently corrupting the region list. Both are
// opt-in; a production VM pays nothing for them. Caller must hold vm.mu.
func (vm *VM) checkObjectIntegrity(o *Object) {
	if vm.config.EnableInvariantChecks {
		switch o.typ {
		case TypeString, TypeArray, TypeDict:
		default:
			panic("heap: unknown object type reached sweep")
		}
	}

	if vm.config.EnableIntegrityChecks && !verifyChecksum(o) {
		panic("heap: object header checksum mismatch")
	}
}
