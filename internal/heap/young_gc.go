package heap

import "go.uber.org/zap"

// rewrapValue rebuilds a Value of the given kind pointing at obj, used
// when a reference is rewritten to its forwarding target.
func rewrapValue(kind ValueKind, obj *Object) Value {
	return Value{kind: kind, obj: obj}
}

// containerReferencesYoung reports whether any of container's children
// currently points at a non-tenure object.
func containerReferencesYoung(container *Object) bool {
	found := false

	walkChildren(container, func(ref *Value) {
		if found || !ref.IsHeapRef() {
			return
		}

		o := ref.object()
		if o != nil && o.region != RegionTenure {
			found = true
		}
	})

	return found
}

// runYoungGC executes spec.md section 4.4's five-phase copying
// collection over the nursery and the graduate from-space. It is a
// no-op (beyond retrying the caller's allocation) when another env's
// collection wins the race to run it.
func (vm *VM) runYoungGC(env *Env) {
	if !vm.stopTheWorld(env) {
		return
	}
	defer vm.resumeTheWorld(env)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	logger := vm.config.Logger
	logger.Debug("young_gc_start")

	// Phase 1: clear marks & forwards across all three region lists.
	for _, head := range [3]*Object{vm.nurseryList, vm.graduateList, vm.tenureList} {
		for o := head; o != nil; o = o.next {
			o.marked = false
			o.forward = nil
		}
	}

	var graduateNewList *Object

	promoted, evacuated := 0, 0

	var copyYoung func(o *Object) *Object

	copyYoung = func(o *Object) *Object {
		if o.typ == TypeArray || o.typ == TypeDict {
			o = resolve(o)
		}

		if o.region == RegionTenure {
			return o
		}

		if o.marked && o.forward != nil {
			return o.forward
		}

		var newObj *Object

		promote := o.promotionCount >= vm.config.PromotionThreshold
		if !promote {
			newObj = vm.copyToGraduate(o)
			promote = newObj == nil // graduate full: fall back to tenure
		}

		if promote {
			newObj = vm.copyToTenure(o)
			promoted++
		} else {
			evacuated++
		}

		o.forward = newObj
		o.marked = true

		if newObj.region == RegionGraduate {
			listInsertHead(&graduateNewList, newObj)
		} else {
			listInsertHead(&vm.tenureList, newObj)
		}

		walkChildren(newObj, func(ref *Value) {
			if !ref.IsHeapRef() {
				return
			}

			child := ref.object()
			if child == nil {
				return
			}

			*ref = rewrapValue(ref.Kind(), copyYoung(child))
		})

		// A freshly promoted object may still reference a young child
		// (it was copied to graduate rather than promoted); re-check
		// after the recursive copy above and remember it if so.
		if newObj.region == RegionTenure && containerReferencesYoung(newObj) {
			vm.rememberObject(newObj)
		}

		return newObj
	}

	// Phase 2 + 3: evacuate roots, including every remembered-set
	// container (spec.md section 4.9 point 5), which simultaneously
	// rewrites each container's child slots to their forward targets.
	vm.walkRoots(true, func(ref *Value) {
		if !ref.IsHeapRef() {
			return
		}

		o := ref.object()
		if o == nil {
			return
		}

		*ref = rewrapValue(ref.Kind(), copyYoung(o))
	})

	// Phase 4: filter remembered set.
	for c := vm.rememberedSet; c != nil; {
		next := c.remNext

		if !containerReferencesYoung(c) {
			vm.forgetObject(c)
		}

		c = next
	}

	// Phase 5: finalize. Every object on the old nursery and graduate
	// lists leaves its region here (survivors were re-recorded in their
	// new region by copyToGraduate/copyToTenure).
	for o := vm.nurseryList; o != nil; o = o.next {
		vm.stats.recordFree(RegionNursery, o.size)
	}
	for o := vm.graduateList; o != nil; o = o.next {
		vm.stats.recordFree(RegionGraduate, o.size)
	}

	vm.nurseryArena.Reset()
	vm.graduateFromArena().Reset()
	vm.graduateFrom = vm.graduateToIndex()
	vm.graduateList = graduateNewList
	vm.nurseryList = nil

	var rsSize uint64
	for c := vm.rememberedSet; c != nil; c = c.remNext {
		rsSize++
	}
	vm.stats.recordRememberedSetSize(rsSize)
	vm.stats.YoungGCCount++

	logger.Debug("young_gc_done",
		zap.Int("promoted", promoted),
		zap.Int("evacuated", evacuated),
	)
}

// copyToGraduate copies o into the graduate to-space. It returns nil if
// the to-space cannot accommodate o, signaling the caller to promote o
// to tenure instead.
func (vm *VM) copyToGraduate(o *Object) *Object {
	if !vm.graduateToArena().Alloc(o.size) {
		return nil
	}

	n := &Object{
		typ:            o.typ,
		region:         RegionGraduate,
		size:           o.size,
		blockIndex:     -1,
		promotionCount: o.promotionCount + 1,
	}
	copyPayload(o, n)
	refreshChecksum(n)
	vm.stats.recordAlloc(RegionGraduate, o.size)

	return n
}

// copyToTenure promotes o into the tenure region.
func (vm *VM) copyToTenure(o *Object) *Object {
	idx, ok := vm.tenureAlloc.Alloc(o.size)
	if !ok {
		// The tenure region has no room even for a surviving object
		// mid-evacuation. Young GC must never itself trigger another
		// young GC (spec.md section 4.3), and objects already
		// forwarded this cycle cannot be safely revisited by an
		// old/compact pass run partway through evacuation, so this is
		// a fatal misconfiguration (tenure sized too small for the
		// live set) rather than a recoverable allocation failure.
		panic("heap: tenure exhausted while promoting a young-GC survivor")
	}

	n := &Object{
		typ:            o.typ,
		region:         RegionTenure,
		size:           o.size,
		blockIndex:     idx,
		promotionCount: o.promotionCount + 1,
	}
	copyPayload(o, n)
	refreshChecksum(n)
	vm.stats.recordAlloc(RegionTenure, o.size)
	vm.stats.recordPromotion()

	return n
}

// copyPayload copies src's kind-specific payload into dst. Arrays copy
// only their used length (spec.md section 4.4: "arrays copy size
// slots"); dicts rehash into a freshly sized table, dropping tombstones
// ("dicts rehash into the new table").
func copyPayload(src, dst *Object) {
	switch src.typ {
	case TypeString:
		dst.strBytes = append([]byte(nil), src.strBytes...)
		dst.strHash = src.strHash
	case TypeArray:
		dst.arrItems = append([]Value(nil), src.arrItems[:src.arrSize]...)
		dst.arrSize = src.arrSize
	case TypeDict:
		dst.dictKeys, dst.dictVals, dst.dictSize = rehashDict(src)
	}
}

// rehashDict builds a freshly sized, tombstone-free key/value table from
// src's occupied slots.
func rehashDict(src *Object) (keys, vals []Value, size uint32) {
	cap := dictCapacityFor(int(src.dictSize))
	keys = make([]Value, cap)
	vals = make([]Value, cap)

	for i := range keys {
		keys[i] = emptyKeySlot()
	}

	mask := uint32(cap - 1)

	for i := range src.dictKeys {
		if src.dictKeys[i].Kind() != KindString {
			continue
		}

		h := stringHash(src.dictKeys[i].object())
		idx := h & mask

		for keys[idx].Kind() == KindString {
			idx = (idx + 1) & mask
		}

		keys[idx] = src.dictKeys[i]
		vals[idx] = src.dictVals[i]
		size++
	}

	return keys, vals, size
}
