package heap

import "github.com/noctlang/noctrt/internal/errors"

// approxValueSize is the byte cost charged per Value slot when computing
// an array/dict's accounted size for threshold routing and arena
// bookkeeping. Like headerSize (vm.go), it has no Go-memory
// representation; it exists purely so the byte-budget arithmetic tracks
// the shape the source's inline value-table layout would have produced.
const approxValueSize uintptr = 24

func stringAllocSize(length int) uintptr { return headerSize + uintptr(length) }

func arrayAllocSize(capacity int) uintptr {
	return headerSize + uintptr(capacity)*approxValueSize
}

func dictAllocSize(capacity int) uintptr {
	return headerSize + uintptr(capacity)*approxValueSize*2
}

// buildFunc constructs a fresh Object for the region/blockIndex the
// allocator settled on. blockIndex is -1 for nursery/graduate objects.
type buildFunc func(region RegionKind, blockIndex int) *Object

// allocObject implements spec.md section 4.3's dispatch: large objects
// (size >= LOPThreshold) route directly to tenure with the
// old-GC/compact-GC retry schedule; everything else attempts a nursery
// bump allocation, retries once after a young GC, and reports
// OutOfMemory if that also fails.
func (vm *VM) allocObject(env *Env, size uintptr, build buildFunc) (*Object, error) {
	if size >= vm.config.LOPThreshold {
		return vm.allocTenureWithRetry(env, size, build)
	}

	if o, ok := vm.tryNurseryAlloc(size, build); ok {
		return o, nil
	}

	vm.runYoungGC(env)

	if o, ok := vm.tryNurseryAlloc(size, build); ok {
		return o, nil
	}

	return nil, env.raise(errors.OutOfMemory("nursery", size))
}

func (vm *VM) tryNurseryAlloc(size uintptr, build buildFunc) (*Object, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if !vm.nurseryArena.Alloc(size) {
		return nil, false
	}

	o := build(RegionNursery, -1)
	listInsertHead(&vm.nurseryList, o)
	vm.stats.recordAlloc(RegionNursery, size)

	return o, true
}

// allocTenureWithRetry implements the large-object / tenure-exhaustion
// retry schedule: attempt, old GC, attempt, compact GC, attempt, fail.
func (vm *VM) allocTenureWithRetry(env *Env, size uintptr, build buildFunc) (*Object, error) {
	if o, ok := vm.tryTenureAlloc(size, build); ok {
		return o, nil
	}

	vm.runOldGC(env)

	if o, ok := vm.tryTenureAlloc(size, build); ok {
		return o, nil
	}

	vm.runCompactGC(env)

	if o, ok := vm.tryTenureAlloc(size, build); ok {
		return o, nil
	}

	return nil, env.raise(errors.OutOfMemory("tenure", size))
}

func (vm *VM) tryTenureAlloc(size uintptr, build buildFunc) (*Object, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	idx, ok := vm.tenureAlloc.Alloc(size)
	if !ok {
		return nil, false
	}

	o := build(RegionTenure, idx)
	listInsertHead(&vm.tenureList, o)
	vm.stats.recordAlloc(RegionTenure, size)

	return o, true
}

// MakeString allocates an immutable string object copying data inline,
// per spec.md section 6's make_string. The hash is left at the 0
// sentinel and materialised lazily (hash.go).
func (env *Env) MakeString(data []byte) (Value, error) {
	vm := env.vm
	vm.enterMutator()
	defer vm.exitMutator()

	size := stringAllocSize(len(data))
	payload := append([]byte(nil), data...)

	o, err := vm.allocObject(env, size, func(region RegionKind, blockIndex int) *Object {
		obj := &Object{
			typ:        TypeString,
			region:     region,
			size:       size,
			blockIndex: blockIndex,
			strBytes:   payload,
		}
		refreshChecksum(obj)

		return obj
	})
	if err != nil {
		return Value{}, err
	}

	return stringValue(o), nil
}

// MakeEmptyArray allocates a zero-length, zero-capacity array, per
// spec.md section 6's make_empty_array.
func (env *Env) MakeEmptyArray() (Value, error) {
	vm := env.vm
	vm.enterMutator()
	defer vm.exitMutator()

	size := arrayAllocSize(0)

	o, err := vm.allocObject(env, size, func(region RegionKind, blockIndex int) *Object {
		obj := &Object{typ: TypeArray, region: region, size: size, blockIndex: blockIndex}
		refreshChecksum(obj)

		return obj
	})
	if err != nil {
		return Value{}, err
	}

	return arrayValue(o), nil
}

// MakeEmptyDict allocates a dict with the minimum legal capacity of 2
// (invariant 4), per spec.md section 6's make_empty_dict.
func (env *Env) MakeEmptyDict() (Value, error) {
	vm := env.vm
	vm.enterMutator()
	defer vm.exitMutator()

	const initialCap = 2

	size := dictAllocSize(initialCap)

	o, err := vm.allocObject(env, size, func(region RegionKind, blockIndex int) *Object {
		keys := make([]Value, initialCap)
		for i := range keys {
			keys[i] = emptyKeySlot()
		}

		obj := &Object{
			typ:        TypeDict,
			region:     region,
			size:       size,
			blockIndex: blockIndex,
			dictKeys:   keys,
			dictVals:   make([]Value, initialCap),
		}
		refreshChecksum(obj)

		return obj
	})
	if err != nil {
		return Value{}, err
	}

	return dictValue(o), nil
}
