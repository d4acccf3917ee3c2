package heap

import "testing"

func TestGlobalTable(t *testing.T) {
	vm := newTestVM(t)
	env := NewEnv(vm, 0)
	defer env.Close()

	t.Run("CheckGetSetRoundTrip", func(t *testing.T) {
		if env.CheckGlobal("answer") {
			t.Fatal("unbound global should not be present")
		}

		env.SetGlobal("answer", IntValue(42))

		if !env.CheckGlobal("answer") {
			t.Fatal("global should be present after SetGlobal")
		}

		got, err := env.GetGlobal("answer")
		if err != nil {
			t.Fatalf("GetGlobal: %v", err)
		}

		if got.Int() != 42 {
			t.Errorf("GetGlobal = %d, want 42", got.Int())
		}
	})

	t.Run("GetUnboundFails", func(t *testing.T) {
		if _, err := env.GetGlobal("nonexistent"); err == nil {
			t.Error("GetGlobal on an unbound name should fail with key-not-found")
		}
	})

	t.Run("SetReplacesExistingBinding", func(t *testing.T) {
		env.SetGlobal("counter", IntValue(1))
		env.SetGlobal("counter", IntValue(2))

		got, err := env.GetGlobal("counter")
		if err != nil {
			t.Fatalf("GetGlobal: %v", err)
		}

		if got.Int() != 2 {
			t.Errorf("GetGlobal after replace = %d, want 2", got.Int())
		}
	})

	t.Run("GrowsAtThreeQuarterOccupancy", func(t *testing.T) {
		vm := newTestVM(t)
		env := NewEnv(vm, 0)
		defer env.Close()

		initialCap := len(vm.globals.slots)

		names := []string{"g0", "g1", "g2", "g3", "g4", "g5", "g6"}
		for i, name := range names {
			env.SetGlobal(name, IntValue(int64(i)))

			o := vm.globals
			if o.size*4 > len(o.slots)*3 {
				t.Fatalf("load factor exceeded 3/4 after inserting %q: size=%d cap=%d", name, o.size, len(o.slots))
			}
		}

		if len(vm.globals.slots) <= initialCap {
			t.Errorf("global table should have grown past its initial capacity %d, got %d", initialCap, len(vm.globals.slots))
		}

		for i, name := range names {
			got, err := env.GetGlobal(name)
			if err != nil {
				t.Fatalf("GetGlobal(%q) after growth: %v", name, err)
			}

			if got.Int() != int64(i) {
				t.Errorf("GetGlobal(%q) = %d, want %d", name, got.Int(), i)
			}
		}
	})
}
