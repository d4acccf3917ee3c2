package heap

import "go.uber.org/zap"

// runOldGC executes spec.md section 4.5's mark-sweep pass over the
// tenure region. It is a no-op (beyond retrying the caller's
// allocation) when another env's collection wins the race to run it.
func (vm *VM) runOldGC(env *Env) {
	if !vm.stopTheWorld(env) {
		return
	}
	defer vm.resumeTheWorld(env)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	logger := vm.config.Logger
	logger.Debug("old_gc_start")

	// Clear is_marked on all three region lists. Clearing it on
	// nursery/graduate objects is redundant (they are never swept
	// here), but kept for parity with the source — see DESIGN.md OQ-3.
	for _, head := range [3]*Object{vm.nurseryList, vm.graduateList, vm.tenureList} {
		for o := head; o != nil; o = o.next {
			o.marked = false
		}
	}

	var mark func(o *Object)

	mark = func(o *Object) {
		if o.typ == TypeArray || o.typ == TypeDict {
			o = resolve(o)
		}

		if o.marked {
			return
		}

		o.marked = true

		walkChildren(o, func(ref *Value) {
			if !ref.IsHeapRef() {
				return
			}

			child := ref.object()
			if child != nil {
				mark(child)
			}
		})
	}

	vm.walkRoots(false, func(ref *Value) {
		if !ref.IsHeapRef() {
			return
		}

		if o := ref.object(); o != nil {
			mark(o)
		}
	})

	var swept uint64

	for c := vm.tenureList; c != nil; {
		next := c.next

		vm.checkObjectIntegrity(c)

		if !c.marked {
			listUnlink(&vm.tenureList, c)
			vm.forgetObject(c)
			vm.tenureAlloc.Free(c.blockIndex)
			vm.stats.recordFree(RegionTenure, c.size)
			swept++
		}

		c = next
	}

	vm.stats.OldGCCount++

	logger.Debug("old_gc_swept", zap.Uint64("count", swept))
}
