package memprovider

import "sort"

// pageRecord is one page of the region being linearized, annotated with its
// physical address and, for the last page of a consecutive run, that run's
// length.
type pageRecord struct {
	virt      uintptr
	phys      uint64
	consecLen int
}

// contigRange is one physically-contiguous run, as a list of virtual page
// addresses in ascending physical order.
type contigRange struct {
	virtAddrs []uintptr
}

// buildRanges sorts pages by physical address, run-length-encodes
// consecutive runs, and groups each run's virtual addresses in ascending
// physical order. The pageSize parameter is what "consecutive" is measured
// in. This is pure and platform-independent so it can be exercised directly
// by tests with a synthetic physical-address mapping, while Linearize
// (linux-only) supplies the real oracle and does the mremap.
func buildRanges(pages []pageRecord, pageSize uintptr) []contigRange {
	if len(pages) == 0 {
		return nil
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].phys < pages[j].phys })

	// D[j] = 1 if pages[j] isn't consecutive with pages[j-1], else
	// 1 + D[j-1], with the shorter prefix's marker zeroed out -- only the
	// tail of each run keeps a nonzero consecLen.
	pages[0].consecLen = 1
	rangeCount := 1
	for i := 1; i < len(pages); i++ {
		if pages[i].phys == pages[i-1].phys+uint64(pageSize) {
			pages[i].consecLen = pages[i-1].consecLen + 1
			pages[i-1].consecLen = 0
		} else {
			pages[i].consecLen = 1
			rangeCount++
		}
	}

	// Walk pages back-to-front (descending physical address). Each time a
	// page with a nonzero consecLen is hit, it's the high end of a new
	// run; nextSlot then counts down as earlier (lower-phys) pages of that
	// same run are visited, so virtAddrs ends up ascending by physical
	// address within the run.
	ranges := make([]contigRange, 0, rangeCount)
	nextSlot := 0
	for i := len(pages) - 1; i >= 0; i-- {
		if consecLen := pages[i].consecLen; consecLen > 0 {
			ranges = append(ranges, contigRange{virtAddrs: make([]uintptr, consecLen)})
			nextSlot = consecLen
		}
		nextSlot--
		cur := &ranges[len(ranges)-1]
		cur.virtAddrs[nextSlot] = pages[i].virt
	}

	sort.Slice(ranges, func(i, j int) bool { return len(ranges[i].virtAddrs) > len(ranges[j].virtAddrs) })
	return ranges
}
