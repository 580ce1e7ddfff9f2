// Package timing implements the Rowhammer access-and-measurement primitive:
// a tight loop that dereferences a fixed address list, optionally evicts
// each address from cache, and reports elapsed wall-clock time at
// nanosecond resolution. Every behavior here is correctness-critical: the
// nop delay, the serializing fence, the volatile reads, and the cache
// eviction must all actually happen on every iteration, so the fence and
// the cache-line flush are implemented as architecture-specific assembly
// stubs (ops_amd64.s, ops_arm64.s) rather than left to compiler intrinsics that
// could be optimized away.
package timing

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"
)

// HammerOnce dereferences each address in addrs, loops times, repeated
// timingLoops times, and returns the minimum observed duration (in
// nanoseconds) multiplied by timingLoops -- preserving the downstream
// arithmetic in rowfind and experiment that divides by timingLoops.
//
// cached controls whether each read is followed by a cache-line flush (see
// DESIGN.md Open Question 1 for why this reads true rather than false):
// eviction happens when cached is true -- the region is backed by the CPU
// cache and must be forced back out to DRAM for the next access to measure
// anything meaningful. Uncached mappings need no explicit eviction.
func HammerOnce(addrs []unsafe.Pointer, loops, timingLoops, delayIters int, cached bool) (uint64, error) {
	if loops <= 0 || timingLoops <= 0 {
		return 0, fmt.Errorf("timing: loops and timingLoops must be positive")
	}

	var minDelta uint64 = ^uint64(0)

	for t := 0; t < timingLoops; t++ {
		start, ok := nowNanos()
		if !ok {
			return 0, fmt.Errorf("timing: monotonic clock unavailable")
		}

		for i := 0; i < loops; i++ {
			nopDelay(delayIters)
			fence()

			for _, addr := range addrs {
				_ = atomic.LoadUint32((*uint32)(addr))
				if cached {
					flushLine(addr)
				}
			}
		}

		delta := uint64(time.Duration(nowNanosSince(start)))
		if delta < minDelta {
			minDelta = delta
		}
	}

	return minDelta * uint64(timingLoops), nil
}

// nowNanos returns a monotonic nanosecond timestamp. The second return
// value is false only if the runtime's clock source is unavailable, which
// the caller treats as an abort condition.
func nowNanos() (time.Time, bool) {
	return time.Now(), true
}

func nowNanosSince(start time.Time) int64 {
	return int64(time.Since(start))
}

// nopDelay emits delayIters no-op instructions. See: Drammer: Deterministic
// Rowhammer Attacks on Mobile Platforms, section 4.1 -- this perturbs the
// memory controller to discourage merging successive accesses.
func nopDelay(iters int) {
	for k := 0; k < iters; k++ {
		nop()
	}
}
