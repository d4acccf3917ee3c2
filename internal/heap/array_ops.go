package heap

import "github.com/noctlang/noctrt/internal/errors"

// nextArrayCapacity implements spec.md section 4.8's doubling growth
// policy: start from a small default when the array has no capacity
// yet, then double until minNeeded fits. Scenario S4 (alloc_size 16,
// set_elem(20, _) -> alloc_size 32) falls directly out of this loop.
func nextArrayCapacity(oldCap, minNeeded int) int {
	cap := oldCap
	if cap == 0 {
		cap = 4
	}

	for cap < minNeeded {
		cap *= 2
	}

	return cap
}

// ArrayLen returns the array's used length (get_size).
func (env *Env) ArrayLen(v Value) uint32 {
	vm := env.vm

	o := vm.acquireRef(v.object())
	defer vm.releaseRef(o)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	return o.arrSize
}

// ArrayGet returns the element at index i (get_elem), raising
// OutOfRange if i is beyond the used length.
func (env *Env) ArrayGet(v Value, i uint32) (Value, error) {
	vm := env.vm

	o := vm.acquireRef(v.object())
	defer vm.releaseRef(o)

	if i >= o.arrSize {
		return Value{}, env.raise(errors.OutOfRange(i, o.arrSize))
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	return o.arrItems[i], nil
}

// ArraySet stores val at index i (set_elem), growing the container via
// forwarding if i is beyond the current capacity, per spec.md section
// 4.8. It returns the current (possibly newly published) Array value;
// callers must use the returned value for subsequent operations, the Go
// analogue of the source's caller-supplied **container publish slot.
func (env *Env) ArraySet(v Value, i uint32, val Value) (Value, error) {
	vm := env.vm
	vm.enterMutator()
	defer vm.exitMutator()

	cur := resolve(v.object())

	if int(i) >= len(cur.arrItems) {
		grown, err := vm.growArray(env, cur, i+1)
		if err != nil {
			return Value{}, err
		}

		cur = grown
	}

	vm.mu.Lock()
	if i+1 > cur.arrSize {
		cur.arrSize = i + 1
	}
	cur.arrItems[i] = val
	vm.mu.Unlock()

	vm.arrayWriteBarrier(cur, val)

	return arrayValue(cur), nil
}

// ArrayResize sets the array's used length (resize), growing capacity
// via forwarding if newSize exceeds it.
func (env *Env) ArrayResize(v Value, newSize uint32) (Value, error) {
	vm := env.vm
	vm.enterMutator()
	defer vm.exitMutator()

	cur := resolve(v.object())

	if int(newSize) > len(cur.arrItems) {
		grown, err := vm.growArray(env, cur, newSize)
		if err != nil {
			return Value{}, err
		}

		cur = grown
	}

	vm.mu.Lock()
	cur.arrSize = newSize
	vm.mu.Unlock()

	return arrayValue(cur), nil
}

// ArrayShallowCopy allocates a new array of exactly src's used length
// holding the same element references (shallow_copy), emitting write
// barriers for each copied reference.
func (env *Env) ArrayShallowCopy(v Value) (Value, error) {
	vm := env.vm
	vm.enterMutator()
	defer vm.exitMutator()

	src := vm.acquireRef(v.object())
	vm.mu.Lock()
	items := append([]Value(nil), src.arrItems[:src.arrSize]...)
	n := src.arrSize
	vm.mu.Unlock()
	vm.releaseRef(src)

	size := arrayAllocSize(int(n))

	o, err := vm.allocObject(env, size, func(region RegionKind, blockIndex int) *Object {
		obj := &Object{
			typ:        TypeArray,
			region:     region,
			size:       size,
			blockIndex: blockIndex,
			arrItems:   items,
			arrSize:    n,
		}
		refreshChecksum(obj)

		return obj
	})
	if err != nil {
		return Value{}, err
	}

	for i := uint32(0); i < n; i++ {
		vm.arrayWriteBarrier(o, items[i])
	}

	return arrayValue(o), nil
}

// growArray allocates a new, larger array, copies old's live slots into
// it with write barriers, and publishes it via old.newer, per spec.md
// section 4.8's forwarding protocol.
func (vm *VM) growArray(env *Env, old *Object, minCapacity uint32) (*Object, error) {
	newCap := nextArrayCapacity(len(old.arrItems), int(minCapacity))
	size := arrayAllocSize(newCap)

	vm.mu.Lock()
	oldItems := append([]Value(nil), old.arrItems[:old.arrSize]...)
	oldSize := old.arrSize
	vm.mu.Unlock()

	newObj, err := vm.allocObject(env, size, func(region RegionKind, blockIndex int) *Object {
		items := make([]Value, newCap)
		copy(items, oldItems)

		obj := &Object{
			typ:        TypeArray,
			region:     region,
			size:       size,
			blockIndex: blockIndex,
			arrItems:   items,
			arrSize:    oldSize,
		}
		refreshChecksum(obj)

		return obj
	})
	if err != nil {
		return nil, err
	}

	for _, item := range oldItems {
		vm.arrayWriteBarrier(newObj, item)
	}

	old.newer.Store(newObj)

	return newObj, nil
}
