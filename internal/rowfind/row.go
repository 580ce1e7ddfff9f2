// Package rowfind discovers DRAM row boundaries by timing side channel:
// two addresses in different rows of the same bank measure slower to
// access together than two addresses in different banks, because accesses
// to different rows of one bank compete for that bank's row buffer.
package rowfind

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/google/hammer-kit/internal/config"
	"github.com/google/hammer-kit/internal/memprovider"
	"github.com/google/hammer-kit/internal/physaddr"
	"github.com/google/hammer-kit/internal/telemetry"
	"github.com/google/hammer-kit/internal/timing"
)

// Row is one discovered DRAM row, expressed as a byte-offset range within
// the region it was discovered in rather than as a raw pointer -- the
// pointer arithmetic needed to actually touch memory happens in timing and
// fillcheck, the two packages that must use unsafe.
type Row struct {
	Idx   int
	Start uintptr
	Len   uint32
}

// errUnderCount is returned, not wrapped as fatal, when discovery finds
// fewer than p.NRows rows: a noisy environment or an unlucky threshold can
// legitimately undercount, and the experiment driver logs this and moves
// on rather than aborting the whole run over it.
var errUnderCount = errors.New("rowfind: fewer rows found than requested")

// IsUnderCount reports whether err is the under-count sentinel.
func IsUnderCount(err error) bool {
	return errors.Is(err, errUnderCount)
}

// conflict reports whether the measured access time between two addresses
// exceeds the configured microsecond threshold -- the single primitive
// both discovery strategies are built from.
func conflict(tm *timing.Primitive, p *config.Params, a, b uintptr) (bool, error) {
	addrs := []unsafe.Pointer{unsafe.Pointer(a), unsafe.Pointer(b)}
	t, err := tm.Measure(addrs, p.MeasureLoops/5, 5)
	if err != nil {
		return false, err
	}
	return int(t/1000) > p.ConflictThUs, nil
}

// addrOf turns a region-relative offset into a raw pointer for the timing
// primitive. Never exported: this is the one place in rowfind that touches
// unsafe.Pointer.
func addrOf(r *memprovider.Region, off uintptr) uintptr {
	return uintptr(unsafe.Pointer(&r.Base[off]))
}

// physOf resolves a row's physical address through the oracle for logging
// only, falling back to 0 on any resolution error. This is a deliberate
// exception to the rule that a resolution failure is fatal: a log line is
// best-effort diagnostic output, not a value anything downstream depends
// on, so losing one physical address to a transient resolve error isn't
// worth aborting the run over. Anything that uses the resolved address for
// more than a log line (sortRows below) must call oracle.Resolve directly
// and propagate its error instead of going through this helper.
func physOf(oracle *physaddr.Oracle, r *memprovider.Region, off uintptr) uint64 {
	phys, err := oracle.Resolve(addrOf(r, off))
	if err != nil {
		return 0
	}
	return phys
}

// physaddrToRow remaps a physical address to its row index under the
// bit-3 address-remapping fold some DRAM controllers apply ("Defeating
// Software Mitigations against Rowhammer: a Surgical Precision Hammer",
// §3.1 "Remapping"): bit 3 of the shifted address also gets XORed into
// bits 1 and 2, so two rows that look adjacent by raw shifted address may
// not be. Applying both XORs in one combined step is equivalent to two
// sequential ones since they don't share bits.
func physaddrToRow(phys uint64, sortRowsShift int) uint64 {
	row := (phys >> uint(sortRowsShift)) & 0xffff
	bit3 := (row >> 3) & 1
	return row ^ (bit3<<2 | bit3<<1)
}

// sortRows re-orders discovered rows into physical order when p.SortRows is
// set.
func sortRows(rows []Row, p *config.Params, oracle *physaddr.Oracle, r *memprovider.Region) error {
	if !p.SortRows {
		return nil
	}
	if !oracle.Enabled {
		return fmt.Errorf("rowfind: sort_rows requires pagemap")
	}

	keys := make([]uint64, len(rows))
	for i, row := range rows {
		phys, err := oracle.Resolve(addrOf(r, row.Start))
		if err != nil {
			return fmt.Errorf("rowfind: resolving row %d's physical address: %w", i, err)
		}
		keys[i] = physaddrToRow(phys, p.SortRowsShift)
	}

	sortRowsByKey(rows, keys)

	for i := range rows {
		telemetry.Debug("Row %d is now at %#08x (phys: %#08x). Len: %d", i, rows[i].Start, physOf(oracle, r, rows[i].Start), rows[i].Len)
	}
	return nil
}

// sortRowsByKey reorders rows into non-decreasing key order and renumbers
// Idx to match the new positions. A plain insertion sort: row counts are
// small (tens, not thousands), so there's no need for anything fancier,
// and keys are precomputed rather than recomputed inside a comparator.
func sortRowsByKey(rows []Row, keys []uint64) {
	for i := 1; i < len(rows); i++ {
		j := i
		for j > 0 && keys[j-1] > keys[j] {
			rows[j-1], rows[j] = rows[j], rows[j-1]
			keys[j-1], keys[j] = keys[j], keys[j-1]
			j--
		}
	}
	for i := range rows {
		rows[i].Idx = i
	}
}
