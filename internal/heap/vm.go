package heap

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/noctlang/noctrt/internal/allocator"
)

// headerSize is the fixed per-object accounting overhead charged against
// a region's byte budget, standing in for the source's machine-word size
// header (spec.md sections 4.1/4.2). It has no representation in Go
// memory — it only inflates the number passed to the allocator so the
// byte-budget arithmetic (and therefore the large-object threshold and
// OOM paths) behaves the way the source's inline-header layout would.
const headerSize = 16

// VM is process-wide memory-manager state: the three regions, the
// remembered set, the global symbol table, and the safepoint counters.
// Multiple VMs may coexist, exactly as spec.md section 9 requires; this
// package never reads state outside of a VM/Env handle passed in.
type VM struct {
	config *Config

	// mu guards every piece of heap bookkeeping below: region live
	// lists, the remembered set, and the global table. Mutator
	// operations that mutate container structure (array/dict growth)
	// and the three collectors both take it for the duration of their
	// structural edit. GC additionally holds the safepoint STW lock
	// (safepoint.go) for the whole collection; mu alone protects the
	// bookkeeping structures from concurrent mutator-vs-mutator
	// container resizes between collections.
	mu sync.Mutex

	nurseryArena *allocator.BumpArena
	nurseryList  *Object

	graduateArenas [2]*allocator.BumpArena
	graduateFrom   int // index of the current from-space
	graduateList   *Object

	tenureAlloc *allocator.FreeListAllocator
	tenureList  *Object

	rememberedSet *Object

	globals *globalTable

	pinnedGlobals []*Value

	envs []*Env

	// gcDepth is not read anywhere. A young GC cannot trigger another
	// one because its copy paths (copyToGraduate/copyToTenure) allocate
	// straight from the graduate and tenure allocators, never through
	// allocObject.
	gcDepth int32

	stwCounter atomic.Int64
	inFlight   atomic.Int64

	stats Stats
}

// NewVM creates a VM and reserves its three regions' byte budgets. opts
// are applied over DefaultConfig.
func NewVM(opts ...Option) (*VM, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	ac := cfg.allocatorConfig()

	nursery, err := allocator.NewBumpArena(cfg.NurserySize, ac)
	if err != nil {
		return nil, fmt.Errorf("heap: nursery arena: %w", err)
	}

	var graduate [2]*allocator.BumpArena
	for i := range graduate {
		g, gerr := allocator.NewBumpArena(cfg.GraduateSize, ac)
		if gerr != nil {
			return nil, fmt.Errorf("heap: graduate arena %d: %w", i, gerr)
		}

		graduate[i] = g
	}

	tenure, err := allocator.NewFreeListAllocator(cfg.TenureSize, ac)
	if err != nil {
		return nil, fmt.Errorf("heap: tenure allocator: %w", err)
	}

	vm := &VM{
		config:         cfg,
		nurseryArena:   nursery,
		graduateArenas: graduate,
		tenureAlloc:    tenure,
		globals:        newGlobalTable(),
	}

	vm.config.Logger.Debug("vm created",
		zap.Uintptr("nursery_size", cfg.NurserySize),
		zap.Uintptr("graduate_size", cfg.GraduateSize),
		zap.Uintptr("tenure_size", cfg.TenureSize),
	)

	return vm, nil
}

// Close releases the regions' underlying OS resources. Objects reachable
// through Go pointers remain valid Go values after Close; only the
// byte-budget accounting's backing mapping is released.
func (vm *VM) Close() error {
	var firstErr error

	if err := vm.nurseryArena.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	for _, g := range vm.graduateArenas {
		if err := g.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := vm.tenureAlloc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Stats returns a snapshot of the VM's statistics.
func (vm *VM) Stats() Stats {
	return vm.stats.Snapshot()
}

// Logger returns the VM's structured logger (never nil).
func (vm *VM) Logger() *zap.Logger { return vm.config.Logger }

func (vm *VM) graduateToIndex() int { return 1 - vm.graduateFrom }

func (vm *VM) graduateFromArena() *allocator.BumpArena { return vm.graduateArenas[vm.graduateFrom] }
func (vm *VM) graduateToArena() *allocator.BumpArena   { return vm.graduateArenas[vm.graduateToIndex()] }

func (vm *VM) regionArena(r RegionKind) *allocator.BumpArena {
	switch r {
	case RegionNursery:
		return vm.nurseryArena
	case RegionGraduate:
		return vm.graduateFromArena()
	default:
		return nil
	}
}

func (vm *VM) regionListHead(r RegionKind) **Object {
	switch r {
	case RegionNursery:
		return &vm.nurseryList
	case RegionGraduate:
		return &vm.graduateList
	default:
		return &vm.tenureList
	}
}
