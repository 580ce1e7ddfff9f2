// Package memprovider allocates and, where needed, linearizes the memory
// region a hammer-kit experiment runs against.
package memprovider

import "fmt"

// Region is a single contiguous virtual mapping, backed either by an
// anonymous mmap or by a DMA-BUF heap allocation.
type Region struct {
	Base []byte
	Size uint64

	// close releases whatever OS resources back this region (an mmap, an
	// open heap fd, ...). nil for regions that don't own anything
	// separately from Base (e.g. synthetic regions built in tests).
	close func() error
}

// Close releases the region's OS resources. Safe to call on a zero Region.
func (r *Region) Close() error {
	if r == nil || r.close == nil {
		return nil
	}
	return r.close()
}

// At returns a byte slice of length n starting at byte offset off within
// the region, or an error if the range falls outside Base.
func (r *Region) At(off uintptr, n int) ([]byte, error) {
	if n < 0 || int(off)+n > len(r.Base) {
		return nil, fmt.Errorf("memprovider: offset %#x length %d out of bounds (region size %d)", off, n, len(r.Base))
	}
	return r.Base[off : int(off)+n], nil
}
