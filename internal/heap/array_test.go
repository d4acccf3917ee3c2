package heap

import "testing"

func TestArrayGrowthLaws(t *testing.T) {
	vm := newTestVM(t)
	env := NewEnv(vm, 0)
	defer env.Close()

	t.Run("SetThenGetRoundTrips", func(t *testing.T) {
		arr, err := env.MakeEmptyArray()
		if err != nil {
			t.Fatalf("MakeEmptyArray: %v", err)
		}

		arr, err = env.ArraySet(arr, 0, IntValue(7))
		if err != nil {
			t.Fatalf("ArraySet: %v", err)
		}

		got, err := env.ArrayGet(arr, 0)
		if err != nil {
			t.Fatalf("ArrayGet: %v", err)
		}

		if got.Int() != 7 {
			t.Errorf("ArrayGet(0) = %d, want 7", got.Int())
		}
	})

	t.Run("SizeBecomesMaxOldSizeAndIndexPlusOne", func(t *testing.T) {
		arr, err := env.MakeEmptyArray()
		if err != nil {
			t.Fatalf("MakeEmptyArray: %v", err)
		}

		arr, err = env.ArraySet(arr, 3, IntValue(1))
		if err != nil {
			t.Fatalf("ArraySet: %v", err)
		}

		if got := env.ArrayLen(arr); got != 4 {
			t.Errorf("size after set_elem(3, _) = %d, want 4", got)
		}

		arr, err = env.ArraySet(arr, 1, IntValue(2))
		if err != nil {
			t.Fatalf("ArraySet: %v", err)
		}

		if got := env.ArrayLen(arr); got != 4 {
			t.Errorf("size after set_elem(1, _) on a size-4 array = %d, want max(4,2)=4", got)
		}
	})

	t.Run("OutOfRangeGetFails", func(t *testing.T) {
		arr, err := env.MakeEmptyArray()
		if err != nil {
			t.Fatalf("MakeEmptyArray: %v", err)
		}

		if _, err := env.ArrayGet(arr, 0); err == nil {
			t.Error("ArrayGet on an empty array should fail with out-of-range")
		}
	})

	// Scenario S4: alloc_size 16, set_elem(20, 7) -> alloc_size >= 21
	// (doubling to 32), size = 21, get_elem(20) = 7.
	t.Run("ScenarioS4DoublingGrowth", func(t *testing.T) {
		arr, err := env.MakeEmptyArray()
		if err != nil {
			t.Fatalf("MakeEmptyArray: %v", err)
		}

		arr, err = env.ArrayResize(arr, 16)
		if err != nil {
			t.Fatalf("ArrayResize(16): %v", err)
		}

		if cap := len(arr.object().arrItems); cap < 16 {
			t.Fatalf("capacity after resize = %d, want >= 16", cap)
		}

		arr, err = env.ArraySet(arr, 20, IntValue(7))
		if err != nil {
			t.Fatalf("ArraySet(20, 7): %v", err)
		}

		if cap := len(arr.object().arrItems); cap < 21 {
			t.Errorf("capacity after set_elem(20,_) = %d, want >= 21", cap)
		}

		if got := env.ArrayLen(arr); got != 21 {
			t.Errorf("size = %d, want 21", got)
		}

		v, err := env.ArrayGet(arr, 20)
		if err != nil {
			t.Fatalf("ArrayGet(20): %v", err)
		}

		if v.Int() != 7 {
			t.Errorf("ArrayGet(20) = %d, want 7", v.Int())
		}
	})

	t.Run("ForwardingChasesToNewestContainer", func(t *testing.T) {
		arr, err := env.MakeEmptyArray()
		if err != nil {
			t.Fatalf("MakeEmptyArray: %v", err)
		}

		stale := arr

		grown, err := env.ArraySet(arr, 10, IntValue(99))
		if err != nil {
			t.Fatalf("ArraySet: %v", err)
		}

		if stale.object() == grown.object() {
			t.Fatal("growing beyond capacity should publish a distinct object")
		}

		if resolve(stale.object()) != grown.object() {
			t.Error("resolving the stale pointer's newer chain should reach the current object")
		}

		v, err := env.ArrayGet(stale, 10)
		if err != nil {
			t.Fatalf("ArrayGet via stale pointer: %v", err)
		}

		if v.Int() != 99 {
			t.Errorf("stale-pointer read after growth = %d, want 99 (last committed state)", v.Int())
		}
	})

	t.Run("ShallowCopyIsIndependentButSharesElements", func(t *testing.T) {
		src, err := env.MakeEmptyArray()
		if err != nil {
			t.Fatalf("MakeEmptyArray: %v", err)
		}

		str, err := env.MakeString([]byte("shared"))
		if err != nil {
			t.Fatalf("MakeString: %v", err)
		}

		src, err = env.ArraySet(src, 0, str)
		if err != nil {
			t.Fatalf("ArraySet: %v", err)
		}

		dup, err := env.ArrayShallowCopy(src)
		if err != nil {
			t.Fatalf("ArrayShallowCopy: %v", err)
		}

		if dup.object() == src.object() {
			t.Fatal("shallow copy must be a distinct object")
		}

		dupElem, err := env.ArrayGet(dup, 0)
		if err != nil {
			t.Fatalf("ArrayGet on copy: %v", err)
		}

		if dupElem.object() != str.object() {
			t.Error("shallow copy should share element references, not deep-copy them")
		}

		if _, err := env.ArraySet(dup, 0, IntValue(1)); err != nil {
			t.Fatalf("ArraySet on copy: %v", err)
		}

		srcElem, err := env.ArrayGet(src, 0)
		if err != nil {
			t.Fatalf("ArrayGet on original: %v", err)
		}

		if srcElem.object() != str.object() {
			t.Error("mutating the copy must not affect the original array")
		}
	})
}

func TestNextArrayCapacity(t *testing.T) {
	cases := []struct {
		oldCap, minNeeded, want int
	}{
		{0, 1, 4},
		{0, 5, 8},
		{16, 21, 32},
		{16, 16, 16},
		{4, 4, 4},
	}

	for _, c := range cases {
		if got := nextArrayCapacity(c.oldCap, c.minNeeded); got != c.want {
			t.Errorf("nextArrayCapacity(%d, %d) = %d, want %d", c.oldCap, c.minNeeded, got, c.want)
		}
	}
}
