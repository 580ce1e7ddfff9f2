// Package fillcheck writes and verifies the patterns a hammer-kit
// experiment watches for bit flips in: either an LCG-derived pseudo-random
// stream across a contiguous byte range, or a fixed per-row pattern keyed
// by each row's position modulo p.Mod.
package fillcheck

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/google/hammer-kit/internal/config"
	"github.com/google/hammer-kit/internal/memprovider"
	"github.com/google/hammer-kit/internal/physaddr"
	"github.com/google/hammer-kit/internal/rowfind"
	"github.com/google/hammer-kit/internal/telemetry"
	"github.com/google/hammer-kit/internal/timing"
)

// physOf resolves a physical address for a @FLIP log line only, falling
// back to 0 on any resolution error -- a log line is best-effort
// diagnostic output, not a value a flip count or pass/fail result depends
// on, so it's not worth aborting the run over.
func physOf(oracle *physaddr.Oracle, r *memprovider.Region, off uintptr) uint64 {
	phys, err := oracle.Resolve(uintptr(unsafe.Pointer(&r.Base[off])))
	if err != nil {
		return 0
	}
	return phys
}

// Fill writes length/4 words starting at off with an LCG stream seeded from
// the range's own absolute address, then flushes each word's cache line.
func Fill(tm *timing.Primitive, r *memprovider.Region, off uintptr, length uint64) error {
	if length%4 != 0 {
		return fmt.Errorf("fillcheck: len %d not divisible by 4", length)
	}
	telemetry.Debug("Filling %d bytes at %#08x.", length, off)

	seed := uint64(uintptr(unsafe.Pointer(&r.Base[off])))
	g := newLCG(seed)

	for i := uint64(0); i < length; i += 4 {
		binary.LittleEndian.PutUint32(r.Base[off+uintptr(i):], g.next())
	}
	for i := uint64(0); i < length; i += 4 {
		tm.FlushLine(unsafe.Pointer(&r.Base[off+uintptr(i)]))
	}
	return nil
}

// Check flushes the region first (forcing the next reads back to DRAM),
// then compares it word-by-word against the same LCG stream Fill would
// have produced for this range. Each mismatch is reported via
// telemetry.Flip and counted.
func Check(tm *timing.Primitive, oracle *physaddr.Oracle, r *memprovider.Region, off uintptr, length uint64) (int, error) {
	if length%4 != 0 {
		return 0, fmt.Errorf("fillcheck: len %d not divisible by 4", length)
	}
	telemetry.Debug("Checking %d bytes at %#08x.", length, off)

	seed := uint64(uintptr(unsafe.Pointer(&r.Base[off])))
	g := newLCG(seed)

	for i := uint64(0); i < length; i += 4 {
		tm.FlushLine(unsafe.Pointer(&r.Base[off+uintptr(i)]))
	}

	flips := 0
	for i := uint64(0); i < length; i += 4 {
		expect := g.next()
		actual := binary.LittleEndian.Uint32(r.Base[off+uintptr(i):])
		if actual != expect {
			telemetry.Flip(uint64(off)+i, physOf(oracle, r, off+uintptr(i)), expect, actual)
			flips++
		}
	}
	return flips, nil
}

// RowRange returns the [start, end) byte range spanning every row's
// extent, used to fill/check the random pattern across all rows (and the
// gaps between them) in one pass.
func RowRange(rows []rowfind.Row) (start, end uintptr) {
	start = ^uintptr(0)
	for _, row := range rows {
		if row.Start < start {
			start = row.Start
		}
		if rowEnd := row.Start + uintptr(row.Len); rowEnd > end {
			end = rowEnd
		}
	}
	return start, end
}

// FillRandom fills the pseudo-random pattern across every row's extent.
func FillRandom(tm *timing.Primitive, r *memprovider.Region, rows []rowfind.Row) error {
	start, end := RowRange(rows)
	return Fill(tm, r, start, uint64(end-start))
}

// CheckRandom verifies the pseudo-random pattern FillRandom wrote.
func CheckRandom(tm *timing.Primitive, oracle *physaddr.Oracle, r *memprovider.Region, rows []rowfind.Row) (int, error) {
	start, end := RowRange(rows)
	return Check(tm, oracle, r, start, uint64(end-start))
}

// patternFor computes the fixed word value a row at the given shift
// should hold: p.VictimDataPattern if bit (idx+mod-shift)%mod of
// VictimMask is set, else its complement.
func patternFor(p *config.Params, rowIdx, shift int) uint32 {
	m := (rowIdx + p.Mod - shift) % p.Mod
	if p.VictimMask&(uint64(1)<<uint(m)) != 0 {
		return p.VictimDataPattern
	}
	return ^p.VictimDataPattern
}

// FillModK writes every row a single fixed 32-bit pattern repeated across
// its length, flushing each word's cache line inline rather than in a
// second pass.
func FillModK(tm *timing.Primitive, r *memprovider.Region, p *config.Params, rows []rowfind.Row, shift int) error {
	if shift < 0 || shift >= p.Mod {
		return fmt.Errorf("fillcheck: invalid shift %d for mod %d", shift, p.Mod)
	}

	for _, row := range rows {
		pattern := patternFor(p, row.Idx, shift)
		for j := uint32(0); j < row.Len/4; j++ {
			off := row.Start + uintptr(j*4)
			binary.LittleEndian.PutUint32(r.Base[off:], pattern)
			tm.FlushLine(unsafe.Pointer(&r.Base[off]))
		}
	}
	return nil
}

// CheckModK verifies the fixed per-row pattern FillModK wrote. Unlike
// Check, this performs no flush pass before reading -- each word was
// already flushed inline when FillModK wrote it.
func CheckModK(oracle *physaddr.Oracle, r *memprovider.Region, p *config.Params, rows []rowfind.Row, shift int) (int, error) {
	flips := 0
	for _, row := range rows {
		pattern := patternFor(p, row.Idx, shift)
		for j := uint32(0); j < row.Len/4; j++ {
			off := row.Start + uintptr(j*4)
			actual := binary.LittleEndian.Uint32(r.Base[off:])
			if actual != pattern {
				telemetry.FlipRow(uint64(off), physOf(oracle, r, off), row.Idx, j*4, pattern, actual)
				flips++
			}
		}
	}
	return flips, nil
}
