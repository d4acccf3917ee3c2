package heap

import (
	"go.uber.org/zap"

	"github.com/noctlang/noctrt/internal/allocator"
)

// Threading selects the safepoint discipline the heap enforces. It is
// chosen once at VM creation and never changes for the VM's lifetime,
// mirroring the source's build-time single/multi-threaded split.
type Threading uint8

const (
	// SingleThreaded means the caller is the only mutator; barriers and
	// allocations run inline with no atomic overhead.
	SingleThreaded Threading = iota
	// MultiThreaded enables the stop-the-world safepoint protocol of
	// spec.md section 5: an in-flight counter, a STW counter, and
	// acquire/release discipline on container forwarding.
	MultiThreaded
)

// Config holds the tunables spec.md section 6 calls "the configuration
// table," plus the ambient knobs (logging, integrity checks, invariant
// checks) the Go translation adds. Built with the same With*-option
// pattern as allocator.Config.
type Config struct {
	NurserySize  uintptr
	GraduateSize uintptr
	TenureSize   uintptr

	LOPThreshold       uintptr
	PromotionThreshold int

	// MaxPinnedLocals and MaxPinnedGlobals are the compile-time pin
	// maxima of spec.md section 6; a pin beyond either bound fails with
	// PinOverflow.
	MaxPinnedLocals  int
	MaxPinnedGlobals int

	Threading Threading

	// EnableIntegrityChecks recomputes and verifies each object's xxhash
	// header checksum during sweep and compaction (section 4.11).
	EnableIntegrityChecks bool
	// EnableInvariantChecks panics on an unrecognized object type
	// reaching the sweeper or the compactor, the Go analogue of
	// the source's debug-build assertions (spec.md section 7).
	EnableInvariantChecks bool

	Logger *zap.Logger

	AllocatorOptions []allocator.Option
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the configuration spec.md section 6 lists as the
// defaults: a 2 MiB nursery, 256 KiB graduate semi-spaces, a 256 MiB
// tenure region, a 32 KiB large-object threshold, and a promotion
// threshold of 2 young-GC survivals.
func DefaultConfig() *Config {
	return &Config{
		NurserySize:        2 * 1024 * 1024,
		GraduateSize:       256 * 1024,
		TenureSize:         256 * 1024 * 1024,
		LOPThreshold:       32 * 1024,
		PromotionThreshold: 2,
		MaxPinnedLocals:    64,
		MaxPinnedGlobals:   64,
		Threading:          SingleThreaded,
		Logger:             zap.NewNop(),
	}
}

// WithNurserySize overrides the nursery arena's byte capacity.
func WithNurserySize(n uintptr) Option {
	return func(c *Config) { c.NurserySize = n }
}

// WithGraduateSize overrides each graduate semi-space's byte capacity.
func WithGraduateSize(n uintptr) Option {
	return func(c *Config) { c.GraduateSize = n }
}

// WithTenureSize overrides the tenure free-list region's byte capacity.
func WithTenureSize(n uintptr) Option {
	return func(c *Config) { c.TenureSize = n }
}

// WithLOPThreshold overrides the large-object threshold that routes an
// allocation directly to tenure.
func WithLOPThreshold(n uintptr) Option {
	return func(c *Config) { c.LOPThreshold = n }
}

// WithPromotionThreshold overrides how many young GCs an object survives
// in the graduate tier before it is promoted to tenure.
func WithPromotionThreshold(n int) Option {
	return func(c *Config) { c.PromotionThreshold = n }
}

// WithThreading selects the safepoint discipline.
func WithThreading(t Threading) Option {
	return func(c *Config) { c.Threading = t }
}

// WithMaxPinnedLocals overrides the per-frame pinned-local maximum.
func WithMaxPinnedLocals(n int) Option {
	return func(c *Config) { c.MaxPinnedLocals = n }
}

// WithMaxPinnedGlobals overrides the VM-wide pinned-global maximum.
func WithMaxPinnedGlobals(n int) Option {
	return func(c *Config) { c.MaxPinnedGlobals = n }
}

// WithIntegrityChecks toggles header-checksum verification.
func WithIntegrityChecks(enabled bool) Option {
	return func(c *Config) { c.EnableIntegrityChecks = enabled }
}

// WithInvariantChecks toggles the debug-build-style invariant panics.
func WithInvariantChecks(enabled bool) Option {
	return func(c *Config) { c.EnableInvariantChecks = enabled }
}

// WithLogger overrides the structured logger. A nil logger is replaced
// with a no-op logger so callers never need a nil check.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l == nil {
			l = zap.NewNop()
		}
		c.Logger = l
	}
}

// WithAllocatorOptions forwards options to the underlying arena and
// free-list allocators (e.g. allocator.WithMmap(false) for tests that
// don't want a real anonymous mapping).
func WithAllocatorOptions(opts ...allocator.Option) Option {
	return func(c *Config) { c.AllocatorOptions = append(c.AllocatorOptions, opts...) }
}

func (c *Config) allocatorConfig() *allocator.Config {
	ac := allocator.DefaultConfig()
	for _, opt := range c.AllocatorOptions {
		opt(ac)
	}

	return ac
}
