package heap

// rememberObject inserts container at the head of the remembered set if
// it is not already linked, per spec.md section 4.7. Caller must hold
// vm.mu.
func (vm *VM) rememberObject(container *Object) {
	if container.remFlag {
		return
	}

	container.remFlag = true
	listInsertHead(&vm.rememberedSet, container)
}

// forgetObject unlinks container from the remembered set. Caller must
// hold vm.mu.
func (vm *VM) forgetObject(container *Object) {
	if !container.remFlag {
		return
	}

	listUnlink(&vm.rememberedSet, container)
	container.remFlag = false
}

// barrier implements spec.md section 4.7's write barrier: invoked on
// every store that replaces or inserts a reference value into a
// container. It is a no-op for Int/Float/Func values. container must be
// the resolved (newer-chased) current object.
func (vm *VM) barrier(container *Object, val Value) {
	if !val.IsHeapRef() {
		return
	}

	target := val.object()
	if target == nil {
		return
	}

	if container.region != RegionTenure {
		return
	}

	if target.region == RegionTenure {
		return
	}

	vm.mu.Lock()
	vm.rememberObject(container)
	vm.mu.Unlock()
}

// arrayWriteBarrier is array_write_barrier from spec.md section 4.7.
func (vm *VM) arrayWriteBarrier(arr *Object, val Value) { vm.barrier(arr, val) }

// dictWriteBarrier is dict_write_barrier from spec.md section 4.7.
func (vm *VM) dictWriteBarrier(dict *Object, val Value) { vm.barrier(dict, val) }
