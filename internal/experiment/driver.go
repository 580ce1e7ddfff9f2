// Package experiment drives a hammer-kit run: the nested address-loop
// sweep, per-address row discovery, fill/check, and the hammering bursts in
// between, plus the repeat-on-flip bookkeeping.
package experiment

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"github.com/google/hammer-kit/internal/config"
	"github.com/google/hammer-kit/internal/fillcheck"
	"github.com/google/hammer-kit/internal/hammerpool"
	"github.com/google/hammer-kit/internal/memprovider"
	"github.com/google/hammer-kit/internal/physaddr"
	"github.com/google/hammer-kit/internal/rowfind"
	"github.com/google/hammer-kit/internal/telemetry"
	"github.com/google/hammer-kit/internal/timing"
)

// Driver owns the run's running counters (tries, flips, flips from
// repeats) as struct fields rather than package-level state, so a test can
// construct an isolated Driver per case.
type Driver struct {
	Params *config.Params
	Region *memprovider.Region
	Oracle *physaddr.Oracle
	Pool   *hammerpool.Pool

	tm *timing.Primitive

	totalTries       int
	totalFlips       int
	flipsFromRepeats int

	// runOnceHook, when set, replaces runOnce at each base-case address --
	// a seam for exercising the address-loop enumeration in isolation from
	// real row discovery and hammering.
	runOnceHook func(memOff uintptr, length uint64) error
}

// New builds a Driver bound to one allocated region and hammer pool.
func New(p *config.Params, r *memprovider.Region, oracle *physaddr.Oracle, pool *hammerpool.Pool) *Driver {
	return &Driver{Params: p, Region: r, Oracle: oracle, Pool: pool, tm: timing.New(p)}
}

// TotalFlips returns the running count of flipped words observed on
// first attempts and by the check-rest pass -- the value main uses to pick
// an exit code. Flips seen on repeat attempts are counted separately in
// flipsFromRepeats and are not included.
func (d *Driver) TotalFlips() int {
	return d.totalFlips
}

func addrOf(r *memprovider.Region, off uintptr) uintptr {
	return uintptr(unsafe.Pointer(&r.Base[off]))
}

// physOf resolves a physical address for an @Picking log line only, falling
// back to 0 on any resolution error -- a log line is best-effort
// diagnostic output, not a value the hammering burst itself depends on, so
// it's not worth aborting the run over.
func physOf(oracle *physaddr.Oracle, r *memprovider.Region, off uintptr) uint64 {
	phys, err := oracle.Resolve(addrOf(r, off))
	if err != nil {
		return 0
	}
	return phys
}

// Run walks the nested address-loop sweep recursively. memOff is the
// current offset into the region, maxOff the region's size, and depth
// indexes into p.AddrLoops. A loop whose configured step is 0 (including
// one past the end of AddrLoops) is the recursion's base case: it runs one
// full experiment at the current offset instead of looping further.
func (d *Driver) Run(ctx context.Context, memOff uintptr, maxOff uintptr, depth int) error {
	loop := d.addrLoopAt(depth)
	if loop.Step == 0 {
		telemetry.Info("Running at %#x", memOff)
		if d.runOnceHook != nil {
			return d.runOnceHook(memOff, uint64(maxOff-memOff))
		}
		return d.runOnce(memOff, uint64(maxOff-memOff))
	}

	for count := 0; memOff < maxOff && (loop.Count == 0 || count < loop.Count); count, memOff = count+1, memOff+uintptr(loop.Step) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := d.Run(ctx, memOff, maxOff, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) addrLoopAt(depth int) config.AddrLoop {
	if depth < len(d.Params.AddrLoops) {
		return d.Params.AddrLoops[depth]
	}
	return config.AddrLoop{}
}

// runOnce discovers rows, optionally fills the region outside them, then
// for every mod-stride bucket fills the rows and runs n_tries worth of
// hammer-and-check attempts, with an optional repeat-on-flip sub-loop.
func (d *Driver) runOnce(memOff uintptr, length uint64) error {
	p := d.Params

	rows, err := d.findRows(memOff, length)
	if err != nil {
		if rowfind.IsUnderCount(err) {
			telemetry.Info("Can't find enough rows!")
			return nil
		}
		return err
	}

	rowStart, rowEnd := fillcheck.RowRange(rows)

	if p.CheckRest {
		if err := fillcheck.Fill(d.tm, d.Region, memOff, uint64(rowStart-memOff)); err != nil {
			return err
		}
		if err := fillcheck.Fill(d.tm, d.Region, rowEnd, length-uint64(rowEnd-memOff)); err != nil {
			return err
		}
	}

	stride := 1
	if p.ModStride {
		stride = p.Mod
	}

	for mod := 0; mod < stride; mod++ {
		if err := d.fillRows(rows, mod); err != nil {
			return err
		}

		for try := mod; try < p.NTries; try += stride {
			d.totalTries++
			if err := d.runTry(try, rows, mod); err != nil {
				return err
			}
		}
	}

	if p.CheckRest {
		n, err := fillcheck.Check(d.tm, d.Oracle, d.Region, memOff, uint64(rowStart-memOff))
		if err != nil {
			return err
		}
		d.totalFlips += n

		n, err = fillcheck.Check(d.tm, d.Oracle, d.Region, rowEnd, length-uint64(rowEnd-memOff))
		if err != nil {
			return err
		}
		d.totalFlips += n
	}
	return nil
}

// runTry runs a single try value's hammer-and-check. If that first attempt
// flipped anything and p.RepeatFlips is non-zero, it keeps repeating until
// p.RepeatFlips attempts (the first one included) have run, whether or not
// the repeats flip anything.
func (d *Driver) runTry(try int, rows []rowfind.Row, mod int) error {
	p := d.Params

	var seed int64
	if p.RepeatFlips != 0 {
		seed = time.Now().UnixNano()
	}

	rep := 0
	firstTry := true
	for {
		if !firstTry && p.RepeatFlips != 0 {
			telemetry.Info("Repeating: %d", rep)
		}

		elapsed, err := d.selectAndHammer(try, rows, seed)
		if err != nil {
			return err
		}

		flips, err := d.checkRows(rows, mod)
		if err != nil {
			return err
		}
		if firstTry {
			d.totalFlips += flips
		} else {
			d.flipsFromRepeats += flips
		}

		telemetry.Info("(time: %d)", elapsed)
		telemetry.Info("%d tries, %d flips, %d flips from repeats", d.totalTries, d.totalFlips, d.flipsFromRepeats)
		rep++

		if flips > 0 || p.AlwaysRefill {
			if err := d.fillRows(rows, mod); err != nil {
				return err
			}
		}
		if firstTry && flips == 0 {
			break
		}
		firstTry = false

		if !(p.RepeatFlips != 0 && rep < p.RepeatFlips) {
			break
		}
	}
	return nil
}

// selectAndHammer picks this try's aggressor rows, logs each pick, and
// dispatches the hammering burst.
func (d *Driver) selectAndHammer(try int, rows []rowfind.Row, seed int64) (uint64, error) {
	p := d.Params
	picks := SelectAggressors(p, try, seed)

	addrs := make([]uintptr, len(picks))
	for i, row := range picks {
		start := rows[row].Start
		telemetry.Picking(row, uint64(start), physOf(d.Oracle, d.Region, start))
		addrs[i] = addrOf(d.Region, start)
	}

	return d.Pool.Hammer(addrs, p.HammerLoops/len(picks), 1)
}

func (d *Driver) findRows(memOff uintptr, length uint64) ([]rowfind.Row, error) {
	p := d.Params
	switch p.AltRowFind {
	case 0:
		return rowfind.FindRowsSameBank(p, d.tm, d.Oracle, d.Region, memOff, length)
	case 1:
		return rowfind.FindRowsAtomicUnit(p, d.tm, d.Oracle, d.Region, memOff, length)
	default:
		return nil, fmt.Errorf("experiment: unknown row-find method %d", p.AltRowFind)
	}
}

func (d *Driver) fillRows(rows []rowfind.Row, shift int) error {
	switch d.Params.FillType {
	case config.FillRandom:
		return fillcheck.FillRandom(d.tm, d.Region, rows)
	case config.FillMod:
		return fillcheck.FillModK(d.tm, d.Region, d.Params, rows, shift)
	default:
		return fmt.Errorf("experiment: unknown fill type %d", d.Params.FillType)
	}
}

func (d *Driver) checkRows(rows []rowfind.Row, shift int) (int, error) {
	switch d.Params.FillType {
	case config.FillRandom:
		return fillcheck.CheckRandom(d.tm, d.Oracle, d.Region, rows)
	case config.FillMod:
		return fillcheck.CheckModK(d.Oracle, d.Region, d.Params, rows, shift)
	default:
		return 0, fmt.Errorf("experiment: unknown fill type %d", d.Params.FillType)
	}
}
