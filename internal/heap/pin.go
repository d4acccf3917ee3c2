package heap

import "github.com/noctlang/noctrt/internal/errors"

// PinLocal registers ref (a pointer to a Value slot owned by the FFI
// caller, typically a C-stack local) as a GC root for as long as it
// stays pinned. Per spec.md section 6, an unpinned value whose only
// owner was the caller's stack is not a root and may be collected.
func (env *Env) PinLocal(ref *Value) error {
	vm := env.vm

	vm.mu.Lock()
	defer vm.mu.Unlock()

	if env.pinnedLocals == nil {
		env.pinnedLocals = make([]*Value, vm.config.MaxPinnedLocals)
	}

	for i, p := range env.pinnedLocals {
		if p == nil {
			env.pinnedLocals[i] = ref

			return nil
		}
	}

	return env.raise(errors.PinOverflow("local", vm.config.MaxPinnedLocals))
}

// UnpinLocal releases a pin registered by PinLocal. Unpinning a
// reference that was never pinned is a no-op.
func (env *Env) UnpinLocal(ref *Value) {
	env.vm.mu.Lock()
	defer env.vm.mu.Unlock()

	for i, p := range env.pinnedLocals {
		if p == ref {
			env.pinnedLocals[i] = nil

			return
		}
	}
}

// PinGlobal registers ref as a VM-wide GC root, bounded by
// Config.MaxPinnedGlobals.
func (env *Env) PinGlobal(ref *Value) error {
	vm := env.vm

	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.pinnedGlobals == nil {
		vm.pinnedGlobals = make([]*Value, vm.config.MaxPinnedGlobals)
	}

	for i, p := range vm.pinnedGlobals {
		if p == nil {
			vm.pinnedGlobals[i] = ref

			return nil
		}
	}

	return env.raise(errors.PinOverflow("global", vm.config.MaxPinnedGlobals))
}

// UnpinGlobal releases a pin registered by PinGlobal.
func (env *Env) UnpinGlobal(ref *Value) {
	vm := env.vm

	vm.mu.Lock()
	defer vm.mu.Unlock()

	for i, p := range vm.pinnedGlobals {
		if p == ref {
			vm.pinnedGlobals[i] = nil

			return
		}
	}
}
