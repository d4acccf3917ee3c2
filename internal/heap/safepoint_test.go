package heap

import (
	"context"
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/noctlang/noctrt/internal/allocator"
)

// Property 10: under the multi-threaded safepoint protocol, concurrent
// mutators and an explicit GC hammer coexist without corrupting the
// heap or deadlocking. Run with -race to catch any missing
// synchronization in the acquire/release or STW counters.
func TestSafepointConcurrentMutatorsAndGC(t *testing.T) {
	vm, err := NewVM(
		WithNurserySize(8192),
		WithGraduateSize(4096),
		WithTenureSize(128*1024),
		WithLOPThreshold(2048),
		WithThreading(MultiThreaded),
		WithAllocatorOptions(allocator.WithMmap(false)),
	)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	t.Cleanup(func() { _ = vm.Close() })

	const (
		mutators          = 8
		opsPerMutator      = 200
		gcHammerIterations = 40
	)

	var g errgroup.Group

	for m := 0; m < mutators; m++ {
		m := m

		g.Go(func() error {
			env := NewEnv(vm, 0)
			defer env.Close()

			arr, err := env.MakeEmptyArray()
			if err != nil {
				return fmt.Errorf("mutator %d: MakeEmptyArray: %w", m, err)
			}

			if err := env.PinLocal(&arr); err != nil {
				return fmt.Errorf("mutator %d: PinLocal: %w", m, err)
			}
			defer env.UnpinLocal(&arr)

			for i := 0; i < opsPerMutator; i++ {
				str, err := env.MakeString([]byte(fmt.Sprintf("m%d-i%d", m, i)))
				if err != nil {
					return fmt.Errorf("mutator %d op %d: MakeString: %w", m, i, err)
				}

				arr, err = env.ArraySet(arr, uint32(i%16), str)
				if err != nil {
					return fmt.Errorf("mutator %d op %d: ArraySet: %w", m, i, err)
				}

				got, err := env.ArrayGet(arr, uint32(i%16))
				if err != nil {
					return fmt.Errorf("mutator %d op %d: ArrayGet: %w", m, i, err)
				}

				if string(StringBytes(got)) != string(StringBytes(str)) {
					return fmt.Errorf("mutator %d op %d: readback mismatch: got %q want %q",
						m, i, StringBytes(got), StringBytes(str))
				}
			}

			return nil
		})
	}

	// A dedicated "GC hammer" goroutine: it never calls a collector
	// directly (stop-the-world's in-flight bookkeeping assumes the
	// calling env is already registered as a mutator), so instead it
	// drives the same allocation paths the real mutators use, sized to
	// keep tripping the nursery, old-GC, and compaction retries.
	g.Go(func() error {
		env := NewEnv(vm, 0)
		defer env.Close()

		for i := 0; i < gcHammerIterations; i++ {
			if _, err := env.MakeEmptyArray(); err != nil {
				return fmt.Errorf("gc hammer: MakeEmptyArray: %w", err)
			}

			if _, err := env.MakeString(make([]byte, 3000)); err != nil {
				return fmt.Errorf("gc hammer: MakeString: %w", err)
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

// Same property as above, but with many more short-lived mutator bursts
// than the host has cores for: a weighted semaphore caps how many run
// concurrently, so this exercises the safepoint protocol under bursty
// rather than steady-state concurrency.
func TestSafepointBurstyMutatorsBoundedBySemaphore(t *testing.T) {
	vm, err := NewVM(
		WithNurserySize(8192),
		WithGraduateSize(4096),
		WithTenureSize(128*1024),
		WithLOPThreshold(2048),
		WithThreading(MultiThreaded),
		WithAllocatorOptions(allocator.WithMmap(false)),
	)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	t.Cleanup(func() { _ = vm.Close() })

	const (
		bursts      = 64
		maxInFlight = 6
		opsPerBurst = 20
	)

	ctx := context.Background()
	sem := semaphore.NewWeighted(maxInFlight)

	var g errgroup.Group

	for b := 0; b < bursts; b++ {
		b := b

		if err := sem.Acquire(ctx, 1); err != nil {
			t.Fatalf("semaphore acquire: %v", err)
		}

		g.Go(func() error {
			defer sem.Release(1)

			env := NewEnv(vm, 0)
			defer env.Close()

			dict, err := env.MakeEmptyDict()
			if err != nil {
				return fmt.Errorf("burst %d: MakeEmptyDict: %w", b, err)
			}

			if err := env.PinLocal(&dict); err != nil {
				return fmt.Errorf("burst %d: PinLocal: %w", b, err)
			}
			defer env.UnpinLocal(&dict)

			for i := 0; i < opsPerBurst; i++ {
				key, err := env.MakeString([]byte(fmt.Sprintf("b%d-k%d", b, i)))
				if err != nil {
					return fmt.Errorf("burst %d op %d: MakeString: %w", b, i, err)
				}

				dict, err = env.DictSet(dict, key, IntValue(int64(i)))
				if err != nil {
					return fmt.Errorf("burst %d op %d: DictSet: %w", b, i, err)
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

// A single array and a single dict are shared, read-only-on-the-Go-side,
// across one writer goroutine and several reader goroutines: the writer
// repeatedly grows the containers (forcing forwarding), while the
// readers repeatedly call ArrayLen/DictLen on the original pinned
// values. Run with -race: ArrayLen/DictLen must take vm.mu like every
// other accessor, or this trips a data race against ArraySet/DictSet's
// locked writes to arrSize/dictSize.
func TestSafepointSharedContainerLenUnderConcurrentWrites(t *testing.T) {
	vm, err := NewVM(
		WithNurserySize(8192),
		WithGraduateSize(4096),
		WithTenureSize(128*1024),
		WithLOPThreshold(2048),
		WithThreading(MultiThreaded),
		WithAllocatorOptions(allocator.WithMmap(false)),
	)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	t.Cleanup(func() { _ = vm.Close() })

	writerEnv := NewEnv(vm, 0)
	defer writerEnv.Close()

	arr, err := writerEnv.MakeEmptyArray()
	if err != nil {
		t.Fatalf("MakeEmptyArray: %v", err)
	}

	if err := writerEnv.PinLocal(&arr); err != nil {
		t.Fatalf("PinLocal arr: %v", err)
	}
	defer writerEnv.UnpinLocal(&arr)

	dict, err := writerEnv.MakeEmptyDict()
	if err != nil {
		t.Fatalf("MakeEmptyDict: %v", err)
	}

	if err := writerEnv.PinLocal(&dict); err != nil {
		t.Fatalf("PinLocal dict: %v", err)
	}
	defer writerEnv.UnpinLocal(&dict)

	// Readers close over the original pinned values, never the writer's
	// locally-reassigned ones: a stale value must still resolve through
	// the forwarding chain, which is the whole point of the protocol.
	sharedArr := arr
	sharedDict := dict

	const (
		growSteps   = 200
		readers     = 8
		readsPerRun = 500
	)

	var g errgroup.Group

	g.Go(func() error {
		env := NewEnv(vm, 0)
		defer env.Close()

		for i := 0; i < growSteps; i++ {
			v, err := env.MakeString([]byte(fmt.Sprintf("v%d", i)))
			if err != nil {
				return fmt.Errorf("writer step %d: MakeString: %w", i, err)
			}

			arr, err = env.ArraySet(arr, uint32(i), v)
			if err != nil {
				return fmt.Errorf("writer step %d: ArraySet: %w", i, err)
			}

			key, err := env.MakeString([]byte(fmt.Sprintf("k%d", i)))
			if err != nil {
				return fmt.Errorf("writer step %d: MakeString key: %w", i, err)
			}

			dict, err = env.DictSet(dict, key, IntValue(int64(i)))
			if err != nil {
				return fmt.Errorf("writer step %d: DictSet: %w", i, err)
			}
		}

		return nil
	})

	for r := 0; r < readers; r++ {
		r := r

		g.Go(func() error {
			env := NewEnv(vm, 0)
			defer env.Close()

			for i := 0; i < readsPerRun; i++ {
				if n := env.ArrayLen(sharedArr); n > growSteps {
					return fmt.Errorf("reader %d: ArrayLen returned impossible size %d", r, n)
				}

				if n := env.DictLen(sharedDict); n > growSteps {
					return fmt.Errorf("reader %d: DictLen returned impossible size %d", r, n)
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
