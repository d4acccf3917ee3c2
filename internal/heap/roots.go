package heap

// rootVisitor is invoked once per live root reference during root
// enumeration. A visitor is free to rewrite *ref in place (the young
// collector's copy_young does exactly that); a read-only visitor (the
// mark phase) simply inspects it.
type rootVisitor func(ref *Value)

// walkRoots enumerates roots in the order spec.md section 4.9 specifies:
// the global symbol table, each env's call-frame temporaries, each env's
// pinned locals, the VM's pinned globals, and — during young GC only —
// every container in the remembered set. Caller must hold vm.mu.
func (vm *VM) walkRoots(includeRememberedSet bool, visit rootVisitor) {
	vm.globals.walk(visit)

	for _, env := range vm.envs {
		for i := range env.tmpVars {
			visit(&env.tmpVars[i])
		}

		for _, p := range env.pinnedLocals {
			if p != nil {
				visit(p)
			}
		}
	}

	for _, p := range vm.pinnedGlobals {
		if p != nil {
			visit(p)
		}
	}

	if !includeRememberedSet {
		return
	}

	for c := vm.rememberedSet; c != nil; c = c.remNext {
		walkChildren(c, visit)
	}
}

// walkChildren visits every child reference slot of a container object:
// an array's occupied slots, or a dict's occupied key/value pairs
// (tombstoned and empty slots are skipped). It is shared by root
// enumeration of the remembered set and by the young/old collectors'
// recursive descent into an object's children.
func walkChildren(o *Object, visit rootVisitor) {
	switch o.typ {
	case TypeArray:
		for i := 0; i < int(o.arrSize); i++ {
			visit(&o.arrItems[i])
		}
	case TypeDict:
		for i := range o.dictKeys {
			if o.dictKeys[i].Kind() != KindString {
				continue
			}

			visit(&o.dictKeys[i])
			visit(&o.dictVals[i])
		}
	}
}
