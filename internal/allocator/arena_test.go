package allocator

import "testing"

func noMmapConfig() *Config {
	cfg := DefaultConfig()
	cfg.EnableMmap = false

	return cfg
}

func TestBumpArena(t *testing.T) {
	t.Run("BasicAllocation", func(t *testing.T) {
		a, err := NewBumpArena(4096, noMmapConfig())
		if err != nil {
			t.Fatalf("NewBumpArena: %v", err)
		}
		defer a.Close()

		if !a.Alloc(1024) {
			t.Fatal("Alloc(1024) should succeed in a fresh 4096-byte arena")
		}

		if a.Used() == 0 {
			t.Error("Used() should be nonzero after an allocation")
		}
	})

	t.Run("ExhaustArena", func(t *testing.T) {
		a, err := NewBumpArena(1024, noMmapConfig())
		if err != nil {
			t.Fatalf("NewBumpArena: %v", err)
		}
		defer a.Close()

		count := 0
		for a.Alloc(64) {
			count++
		}

		if count == 0 {
			t.Error("should have allocated at least one block before exhaustion")
		}

		if a.Alloc(1) {
			t.Error("Alloc should fail once the arena is exhausted")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		a, err := NewBumpArena(4096, noMmapConfig())
		if err != nil {
			t.Fatalf("NewBumpArena: %v", err)
		}
		defer a.Close()

		if !a.Alloc(1024) {
			t.Fatal("Alloc failed")
		}

		if a.Used() == 0 {
			t.Fatal("Used() should be nonzero before Reset")
		}

		a.Reset()

		if a.Used() != 0 {
			t.Errorf("Used() = %d after Reset, want 0", a.Used())
		}

		if !a.Alloc(4096) {
			t.Error("arena should accept a full-capacity allocation right after Reset")
		}
	})

	t.Run("PeakUsagePersistsAcrossReset", func(t *testing.T) {
		a, err := NewBumpArena(4096, noMmapConfig())
		if err != nil {
			t.Fatalf("NewBumpArena: %v", err)
		}
		defer a.Close()

		if !a.Alloc(2048) {
			t.Fatal("Alloc failed")
		}

		peak := a.PeakUsage()
		a.Reset()

		if a.PeakUsage() != peak {
			t.Errorf("PeakUsage() changed across Reset: got %d, want %d", a.PeakUsage(), peak)
		}
	})

	t.Run("ZeroCapacityRejected", func(t *testing.T) {
		if _, err := NewBumpArena(0, noMmapConfig()); err == nil {
			t.Error("NewBumpArena(0, ...) should return an error")
		}
	})

	t.Run("ZeroSizeAllocIsNoop", func(t *testing.T) {
		a, err := NewBumpArena(64, noMmapConfig())
		if err != nil {
			t.Fatalf("NewBumpArena: %v", err)
		}
		defer a.Close()

		if !a.Alloc(0) {
			t.Error("Alloc(0) should always succeed")
		}

		if a.Used() != 0 {
			t.Errorf("Alloc(0) should not consume capacity, Used() = %d", a.Used())
		}
	})
}
