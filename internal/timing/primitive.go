package timing

import (
	"unsafe"

	"github.com/google/hammer-kit/internal/config"
)

// Primitive binds the access/eviction primitive to a fixed set of
// experiment parameters so callers measuring repeatedly (rowfind) or just
// needing the cache-flush half (fillcheck) don't have to thread DelayIters
// and Cached through every call site.
type Primitive struct {
	DelayIters int
	Cached     bool
}

// New builds a Primitive bound to p's delay-loop and cache-attribute
// settings.
func New(p *config.Params) *Primitive {
	return &Primitive{DelayIters: p.DelayIters, Cached: p.Cached}
}

// Measure runs HammerOnce with the primitive's bound parameters.
func (tm *Primitive) Measure(addrs []unsafe.Pointer, loops, timingLoops int) (uint64, error) {
	return HammerOnce(addrs, loops, timingLoops, tm.DelayIters, tm.Cached)
}

// FlushLine evicts addr from cache if the primitive is bound to cached
// memory, and is a no-op otherwise. Used directly by internal/fillcheck
// after each write, so a flipped bit shows up on the next read from DRAM
// rather than being masked by a stale cache line.
func (tm *Primitive) FlushLine(addr unsafe.Pointer) {
	if tm.Cached {
		flushLine(addr)
	}
}
