package timing

import "unsafe"

// fence executes ISB, which flushes the instruction pipeline and forces
// preceding loads/stores to complete before anything after it issues.
// Implemented in ops_arm64.s.
func fence()

// flushLine evicts the cache line containing addr with "DC CIVAC", clean
// and invalidate by virtual address to point of coherency. Implemented in
// ops_arm64.s.
func flushLine(addr unsafe.Pointer)

// nop executes a single non-optimizable NOP. Implemented in ops_arm64.s.
func nop()
