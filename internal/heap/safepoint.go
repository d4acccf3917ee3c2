package heap

import "runtime"

// enterMutator registers the calling goroutine as an active mutator. A
// no-op in single-threaded mode, matching spec.md section 5 ("no atomic
// operations are required").
func (vm *VM) enterMutator() {
	if vm.config.Threading == SingleThreaded {
		return
	}

	vm.inFlight.Add(1)
}

// exitMutator unregisters the calling goroutine as an active mutator.
func (vm *VM) exitMutator() {
	if vm.config.Threading == SingleThreaded {
		return
	}

	vm.inFlight.Add(-1)
}

// safepoint is the cooperative safepoint spec.md section 5 requires "on
// entry to a thread environment, on every call boundary, and at the top
// of every blocking read/write on a shared container." If a collection
// is in progress the calling mutator steps out of in-flight, spins
// until the collector clears the STW counter, then rejoins.
func (vm *VM) safepoint() {
	if vm.config.Threading == SingleThreaded {
		return
	}

	if vm.stwCounter.Load() == 0 {
		return
	}

	vm.inFlight.Add(-1)
	for vm.stwCounter.Load() > 0 {
		runtime.Gosched()
	}
	vm.inFlight.Add(1)
}

// stopTheWorld begins a GC entry for env. shouldRun reports whether the
// caller must execute the collection algorithm: true for an outermost
// acquire or for a recursive (nested) entry on the same env — per
// spec.md section 5, "recursive GC entries on the same thread bump a
// per-thread gc_in_progress_counter and do not re-synchronise," meaning
// they skip the STW handshake but still run. shouldRun is false only
// when a different env's collector won the race: this call already
// waited for that collection to finish, so the caller should skip the
// algorithm and simply retry its allocation. Every call must be paired
// with a following resumeTheWorld(env).
func (vm *VM) stopTheWorld(env *Env) (shouldRun bool) {
	if vm.config.Threading == SingleThreaded {
		env.gcInProgress++

		return true
	}

	if env.gcInProgress > 0 {
		env.gcInProgress++

		return true
	}

	vm.inFlight.Add(-1)

	if !vm.stwCounter.CompareAndSwap(0, 1) {
		for vm.stwCounter.Load() > 0 {
			runtime.Gosched()
		}

		vm.inFlight.Add(1)

		return false
	}

	for vm.inFlight.Load() != 0 {
		runtime.Gosched()
	}

	env.gcInProgress++

	return true
}

// resumeTheWorld ends the calling env's participation in a GC entry
// started by stopTheWorld. It is a no-op if that call returned
// shouldRun=false, since no entry was recorded.
func (vm *VM) resumeTheWorld(env *Env) {
	if env.gcInProgress == 0 {
		return
	}

	env.gcInProgress--
	if env.gcInProgress > 0 {
		return
	}

	if vm.config.Threading == SingleThreaded {
		return
	}

	vm.stwCounter.Store(0)
	vm.inFlight.Add(1)
}

// acquireRef resolves o's newer chain and, in multi-threaded mode,
// acquires a stable reader reference by incrementing the resolved
// object's counter. If a resize publishes a newer forwarder between the
// resolve and the increment, the reader releases and retries, yielding
// to any pending STW (spec.md section 5). Callers must pair a successful
// acquireRef with releaseRef.
func (vm *VM) acquireRef(o *Object) *Object {
	if vm.config.Threading == SingleThreaded {
		return resolve(o)
	}

	for {
		cur := resolve(o)
		cur.counter.Add(1)

		if cur.newer.Load() == nil {
			return cur
		}

		cur.counter.Add(-1)
		vm.safepoint()
	}
}

// releaseRef releases a reference acquired by acquireRef.
func (vm *VM) releaseRef(o *Object) {
	if vm.config.Threading == SingleThreaded {
		return
	}

	o.counter.Add(-1)
}
