package rowfind

import (
	"github.com/google/hammer-kit/internal/config"
	"github.com/google/hammer-kit/internal/memprovider"
	"github.com/google/hammer-kit/internal/physaddr"
	"github.com/google/hammer-kit/internal/telemetry"
	"github.com/google/hammer-kit/internal/timing"
)

// FindRowsSameBank starts from memOff and walks the region in steps of
// p.FindStep looking for offsets whose access-time conflicts with memOff --
// those are row boundaries. memOff is the timing anchor for every probe;
// it is not itself recorded as a row, so row 0 is the first conflicting
// offset at or past p.Offset0.
func FindRowsSameBank(p *config.Params, tm *timing.Primitive, oracle *physaddr.Oracle, r *memprovider.Region, memOff uintptr, length uint64) ([]Row, error) {
	rows := make([]Row, 0, p.NRows)

	telemetry.Debug("Finding rows. Step %d, offset0 %d, len %d", p.FindStep, p.Offset0, length)

	for off := p.Offset0; off < length; off += uint64(p.FindStep) {
		target := memOff + uintptr(off)
		isConflict := false

		for fuzz := uint64(0); fuzz <= p.MaxFuzz; fuzz += p.FuzzStep {
			ok, err := conflict(tm, p, addrOf(r, memOff), addrOf(r, target))
			if err != nil {
				return nil, err
			}
			isConflict = ok
			if !isConflict {
				target += uintptr(p.FuzzStep)
				continue
			}
			break
		}

		if !isConflict {
			continue
		}

		telemetry.Debug("conflict -- row %d at phys %#08x", len(rows), physOf(oracle, r, target))
		if len(rows) > 0 {
			rows[len(rows)-1].Len = uint32(target - rows[len(rows)-1].Start)
		}
		rows = append(rows, Row{Idx: len(rows), Start: target})
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

	if err := sortRows(rows, p, oracle, r); err != nil {
		return nil, err
	}

	if len(rows) < p.NRows {
		return rows, errUnderCount
	}
	return rows, nil
}
