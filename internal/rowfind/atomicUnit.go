package rowfind

import (
	"github.com/google/hammer-kit/internal/config"
	"github.com/google/hammer-kit/internal/memprovider"
	"github.com/google/hammer-kit/internal/physaddr"
	"github.com/google/hammer-kit/internal/telemetry"
	"github.com/google/hammer-kit/internal/timing"
)

const maxBanks = 16

// FindRowsAtomicUnit assumes p.AtomicUnit is chosen large enough that it
// can only ever land in a single row, so rows are
// built up by repeatedly testing whether the next atomic unit conflicts
// with a known bank anchor and, once p.RowSize atomic units have
// accumulated, closing the row and rotating to the next bank.
func FindRowsAtomicUnit(p *config.Params, tm *timing.Primitive, oracle *physaddr.Oracle, r *memprovider.Region, memOff uintptr, length uint64) ([]Row, error) {
	banks, err := discoverBanks(p, tm, r, memOff, length)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, p.NRows)
	curBank := 0
	setRow := 0
	nrAtomicUnits := 0
	var rowStart uintptr
	anchor := banks[0]

	for off := p.Offset0; off < length; off += uint64(p.AtomicUnit) {
		target := memOff + uintptr(off)

		ok, err := conflict(tm, p, addrOf(r, anchor), addrOf(r, target))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if nrAtomicUnits == 0 {
			rowStart = target
		}
		nrAtomicUnits++
		telemetry.Debug("%#08x (phys: %#08x): gathered nr_atomic_units: %d", target, physOf(oracle, r, target), nrAtomicUnits)

		if nrAtomicUnits != p.RowSize {
			continue
		}
		nrAtomicUnits = 0
		if len(rows) > 0 {
			rows[len(rows)-1].Len = uint32(rowStart - rows[len(rows)-1].Start)
		}
		telemetry.Debug(" (row %d at phys %#08x)", len(rows), physOf(oracle, r, rowStart))
		rows = append(rows, Row{Idx: len(rows), Start: rowStart})

		setRow++
		if setRow == p.RowsPerSet {
			curBank++
			setRow = 0
		}
		if curBank == p.NrBanks {
			curBank = 0
		}
		anchor = banks[curBank]

		if len(rows) == p.NRows {
			break
		}
	}

	if len(rows) == 0 {
		return nil, errUnderCount
	}
	if len(rows) >= 2 {
		rows[len(rows)-1].Len = rows[len(rows)-2].Len
	}

	if len(rows) < p.NRows {
		return rows, errUnderCount
	}
	return rows, nil
}

// discoverBanks walks the region looking for p.NrBanks mutually
// non-conflicting anchor addresses, one per bank. After each bank is found
// (and at the start) it is in phase 0: it walks candidates until one
// *does* conflict with the most recently discovered bank, which keeps
// banks discovered in their natural address order. It then switches to
// phase 1, where each following candidate is tested against every known
// bank and the first one that conflicts with none is admitted as a new
// bank, returning the walk to phase 0.
func discoverBanks(p *config.Params, tm *timing.Primitive, r *memprovider.Region, memOff uintptr, length uint64) ([]uintptr, error) {
	banks := make([]uintptr, 1, maxBanks)
	banks[0] = memOff
	phase := 0

	for off := uint64(p.BankFindStep); off < length && len(banks) < p.NrBanks; off += uint64(p.AtomicUnit) {
		target := memOff + uintptr(off)

		if phase == 0 {
			ok, err := conflict(tm, p, addrOf(r, banks[len(banks)-1]), addrOf(r, target))
			if err != nil {
				return nil, err
			}
			if ok {
				phase = 1
			}
			continue
		}

		admitted := true
		for _, bank := range banks {
			ok, err := conflict(tm, p, addrOf(r, bank), addrOf(r, target))
			if err != nil {
				return nil, err
			}
			if ok {
				admitted = false
				break
			}
		}

		if admitted {
			banks = append(banks, target)
			off += uint64(p.BankFindStep)
			phase = 0
		}
	}

	return banks, nil
}
