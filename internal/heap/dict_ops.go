package heap

import (
	"bytes"

	"github.com/noctlang/noctrt/internal/errors"
)

// dictCapacityFor returns the smallest power-of-two capacity (at least
// 2, invariant 4) that keeps n occupied entries within the ¾-occupancy
// bound of invariant 5.
func dictCapacityFor(n int) int {
	cap := 2
	for n*4 > cap*3 {
		cap *= 2
	}

	return cap
}

// dictFind locates key's slot in o's table via open addressing with
// linear probing. If found is false, idx is the first empty-or-tombstone
// slot on the probe sequence, suitable for insertion. Probing always
// terminates because size < alloc_size is maintained (invariant 5).
func dictFind(o *Object, key Value) (idx int, found bool) {
	h := stringHash(key.object())
	mask := uint32(len(o.dictKeys) - 1)
	start := h & mask

	firstTombstone := -1

	for i := uint32(0); i < uint32(len(o.dictKeys)); i++ {
		probe := (start + i) & mask
		slot := o.dictKeys[probe]

		switch slot.Kind() {
		case kindDictEmpty:
			if firstTombstone >= 0 {
				return firstTombstone, false
			}

			return int(probe), false
		case kindDictRemoved:
			if firstTombstone < 0 {
				firstTombstone = int(probe)
			}
		case KindString:
			if bytes.Equal(slot.object().strBytes, key.object().strBytes) {
				return int(probe), true
			}
		}
	}

	return firstTombstone, false
}

// DictLen returns the dict's occupied entry count (get_size).
func (env *Env) DictLen(v Value) uint32 {
	vm := env.vm

	o := vm.acquireRef(v.object())
	defer vm.releaseRef(o)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	return o.dictSize
}

// DictHasKey reports whether key is present (has_key).
func (env *Env) DictHasKey(v, key Value) bool {
	vm := env.vm

	o := vm.acquireRef(v.object())
	defer vm.releaseRef(o)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	_, found := dictFind(o, key)

	return found
}

// DictGet returns the value bound to key (get_elem), raising
// KeyNotFound if key is absent.
func (env *Env) DictGet(v, key Value) (Value, error) {
	vm := env.vm

	o := vm.acquireRef(v.object())
	defer vm.releaseRef(o)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	idx, found := dictFind(o, key)
	if !found {
		return Value{}, env.raise(errors.KeyNotFound(string(key.object().strBytes)))
	}

	return o.dictVals[idx], nil
}

// DictGetKeyByIndex returns the i-th occupied key in table order
// (get_key_by_index).
func (env *Env) DictGetKeyByIndex(v Value, i uint32) Value {
	vm := env.vm

	o := vm.acquireRef(v.object())
	defer vm.releaseRef(o)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	var count uint32

	for idx := range o.dictKeys {
		if o.dictKeys[idx].Kind() != KindString {
			continue
		}

		if count == i {
			return o.dictKeys[idx]
		}

		count++
	}

	return Value{}
}

// DictGetValueByIndex returns the i-th occupied value in table order
// (get_value_by_index).
func (env *Env) DictGetValueByIndex(v Value, i uint32) Value {
	vm := env.vm

	o := vm.acquireRef(v.object())
	defer vm.releaseRef(o)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	var count uint32

	for idx := range o.dictKeys {
		if o.dictKeys[idx].Kind() != KindString {
			continue
		}

		if count == i {
			return o.dictVals[idx]
		}

		count++
	}

	return Value{}
}

// DictSet replaces key's value if present, else inserts it, growing the
// container via forwarding when the insertion would exceed ¾ occupancy
// (spec.md section 4.8, invariant 5). It returns the current (possibly
// newly published) Dict value; callers must use the returned value for
// subsequent operations.
func (env *Env) DictSet(v, key, val Value) (Value, error) {
	vm := env.vm
	vm.enterMutator()
	defer vm.exitMutator()

	cur := resolve(v.object())

	vm.mu.Lock()
	if idx, found := dictFind(cur, key); found {
		cur.dictVals[idx] = val
		vm.mu.Unlock()

		vm.dictWriteBarrier(cur, key)
		vm.dictWriteBarrier(cur, val)

		return dictValue(cur), nil
	}

	needsGrow := (int(cur.dictSize)+1)*4 > len(cur.dictKeys)*3
	vm.mu.Unlock()

	if needsGrow {
		grown, err := vm.growDict(env, cur)
		if err != nil {
			return Value{}, err
		}

		cur = grown
	}

	vm.mu.Lock()
	idx, _ := dictFind(cur, key)
	cur.dictKeys[idx] = key
	cur.dictVals[idx] = val
	cur.dictSize++
	vm.mu.Unlock()

	vm.dictWriteBarrier(cur, key)
	vm.dictWriteBarrier(cur, val)

	return dictValue(cur), nil
}

// DictRemove tombstones key's slot (remove_elem), raising KeyNotFound if
// key is absent. Removal never shrinks or reallocates the table.
func (env *Env) DictRemove(v, key Value) error {
	vm := env.vm

	o := resolve(v.object())

	vm.mu.Lock()
	defer vm.mu.Unlock()

	idx, found := dictFind(o, key)
	if !found {
		return env.raise(errors.KeyNotFound(string(key.object().strBytes)))
	}

	o.dictKeys[idx] = removedKeySlot()
	o.dictVals[idx] = Value{}
	o.dictSize--

	return nil
}

// DictShallowCopy allocates a new dict of the same capacity holding the
// same key/value references (shallow_copy), emitting write barriers for
// each copied reference.
func (env *Env) DictShallowCopy(v Value) (Value, error) {
	vm := env.vm
	vm.enterMutator()
	defer vm.exitMutator()

	src := vm.acquireRef(v.object())
	vm.mu.Lock()
	keys := append([]Value(nil), src.dictKeys...)
	vals := append([]Value(nil), src.dictVals...)
	size := src.dictSize
	vm.mu.Unlock()
	vm.releaseRef(src)

	allocSize := dictAllocSize(len(keys))

	o, err := vm.allocObject(env, allocSize, func(region RegionKind, blockIndex int) *Object {
		obj := &Object{
			typ:        TypeDict,
			region:     region,
			size:       allocSize,
			blockIndex: blockIndex,
			dictKeys:   keys,
			dictVals:   vals,
			dictSize:   size,
		}
		refreshChecksum(obj)

		return obj
	})
	if err != nil {
		return Value{}, err
	}

	for i := range keys {
		if keys[i].Kind() != KindString {
			continue
		}

		vm.dictWriteBarrier(o, keys[i])
		vm.dictWriteBarrier(o, vals[i])
	}

	return dictValue(o), nil
}

// growDict allocates a dict of double the capacity, rehashes old's live
// entries into it with write barriers, and publishes it via old.newer.
func (vm *VM) growDict(env *Env, old *Object) (*Object, error) {
	newCap := len(old.dictKeys) * 2
	size := dictAllocSize(newCap)

	vm.mu.Lock()
	oldKeys := append([]Value(nil), old.dictKeys...)
	oldVals := append([]Value(nil), old.dictVals...)
	vm.mu.Unlock()

	newObj, err := vm.allocObject(env, size, func(region RegionKind, blockIndex int) *Object {
		keys := make([]Value, newCap)
		for i := range keys {
			keys[i] = emptyKeySlot()
		}

		obj := &Object{
			typ:        TypeDict,
			region:     region,
			size:       size,
			blockIndex: blockIndex,
			dictKeys:   keys,
			dictVals:   make([]Value, newCap),
		}
		refreshChecksum(obj)

		return obj
	})
	if err != nil {
		return nil, err
	}

	var liveCount uint32

	for i := range oldKeys {
		if oldKeys[i].Kind() != KindString {
			continue
		}

		idx, _ := dictFind(newObj, oldKeys[i])
		newObj.dictKeys[idx] = oldKeys[i]
		newObj.dictVals[idx] = oldVals[i]
		liveCount++
	}

	newObj.dictSize = liveCount

	for i := range newObj.dictKeys {
		if newObj.dictKeys[i].Kind() != KindString {
			continue
		}

		vm.dictWriteBarrier(newObj, newObj.dictKeys[i])
		vm.dictWriteBarrier(newObj, newObj.dictVals[i])
	}

	old.newer.Store(newObj)

	return newObj, nil
}
