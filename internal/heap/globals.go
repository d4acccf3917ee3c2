package heap

import (
	"github.com/noctlang/noctrt/internal/errors"
)

// globalSlot is one entry of the VM's global symbol table.
type globalSlot struct {
	name string
	val  Value
	used bool
}

// globalTable is the VM-wide global symbol table of spec.md section 6.
// Unlike Dict, its keys are plain Go strings (interpreter symbol names),
// not heap String values, and it never needs a remove operation, so it
// is implemented as a simpler open-addressed table than dict_ops.go's:
// same power-of-two capacity and ¾-occupancy growth policy, no
// tombstones, and no forwarding/newer chain — it is VM-singleton state
// already serialized by vm.mu, not a user-visible container that a
// stale pointer can outlive.
type globalTable struct {
	slots []globalSlot
	size  int
}

func newGlobalTable() *globalTable {
	return &globalTable{slots: make([]globalSlot, 8)}
}

// find locates name's slot. If found is false, idx is the first empty
// slot on the probe sequence, suitable for insertion.
func (g *globalTable) find(name string) (idx int, found bool) {
	mask := len(g.slots) - 1
	start := int(fnv1a32([]byte(name))) & mask

	for i := 0; i < len(g.slots); i++ {
		probe := (start + i) & mask
		slot := &g.slots[probe]

		if !slot.used {
			return probe, false
		}

		if slot.name == name {
			return probe, true
		}
	}

	// Unreachable under the ¾-occupancy growth invariant: size is
	// always < len(slots), so a free slot is always found above.
	return -1, false
}

func (g *globalTable) check(name string) bool {
	_, found := g.find(name)

	return found
}

func (g *globalTable) get(name string) (Value, bool) {
	idx, found := g.find(name)
	if !found {
		return Value{}, false
	}

	return g.slots[idx].val, true
}

func (g *globalTable) set(name string, val Value) {
	if idx, found := g.find(name); found {
		g.slots[idx].val = val

		return
	}

	if (g.size+1)*4 > len(g.slots)*3 {
		g.grow()
	}

	idx, _ := g.find(name)
	g.slots[idx] = globalSlot{name: name, val: val, used: true}
	g.size++
}

func (g *globalTable) grow() {
	old := g.slots
	g.slots = make([]globalSlot, len(old)*2)
	g.size = 0

	for _, s := range old {
		if !s.used {
			continue
		}

		idx, _ := g.find(s.name)
		g.slots[idx] = globalSlot{name: s.name, val: s.val, used: true}
		g.size++
	}
}

func (g *globalTable) walk(visit rootVisitor) {
	for i := range g.slots {
		if g.slots[i].used {
			visit(&g.slots[i].val)
		}
	}
}

// CheckGlobal reports whether name is bound in env's VM.
func (env *Env) CheckGlobal(name string) bool {
	env.vm.mu.Lock()
	defer env.vm.mu.Unlock()

	return env.vm.globals.check(name)
}

// GetGlobal returns the value bound to name, raising KeyNotFound if
// name is unbound.
func (env *Env) GetGlobal(name string) (Value, error) {
	env.vm.mu.Lock()
	defer env.vm.mu.Unlock()

	v, ok := env.vm.globals.get(name)
	if !ok {
		return Value{}, env.raise(errors.KeyNotFound(name))
	}

	return v, nil
}

// SetGlobal inserts or replaces name's binding.
func (env *Env) SetGlobal(name string, val Value) {
	env.vm.mu.Lock()
	defer env.vm.mu.Unlock()

	env.vm.globals.set(name, val)
}
