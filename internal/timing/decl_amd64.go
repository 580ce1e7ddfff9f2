package timing

import "unsafe"

// fence executes CPUID, a serializing instruction that drains the
// out-of-order pipeline and prevents the memory controller from coalescing
// accesses issued on either side of it. Implemented in ops_amd64.s.
func fence()

// flushLine evicts the cache line containing addr with CLFLUSH. Implemented
// in ops_amd64.s.
func flushLine(addr unsafe.Pointer)

// nop executes a single non-optimizable NOP. Implemented in ops_amd64.s.
func nop()
