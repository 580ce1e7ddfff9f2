// Package config loads the line-oriented key=value parameter file that
// drives a hammer-kit experiment. The format predates this implementation
// and existing config files in the wild must keep working unchanged, so
// the key set, defaults, and value grammar (K/M/G-suffixed sizes, hex
// literals, repeatable keys) are fixed rather than redesigned.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const (
	kb = 1024
	mb = 1024 * kb
	gb = 1024 * mb
)

// MaxCPUs bounds the configured worker set, matching the original's
// MAX_CPUS.
const MaxCPUs = 64

// MaxAddrLoops bounds the number of repeatable "step" lines.
const MaxAddrLoops = 8

// Pattern selects an aggressor-selection strategy (§4.7.1).
type Pattern int

const (
	PatternRandom Pattern = iota
	PatternEven
	PatternTRRESPASSAssistedDouble
)

// FillType selects a fill/check discipline (§4.5).
type FillType int

const (
	FillRandom FillType = iota
	FillMod
)

// AddrLoop is one level of the nested address sweep (§4.7).
type AddrLoop struct {
	Count int // 0 means "until end of region"
	Step  int
}

// Params is the full set of experiment parameters, defaults applied and
// then overridden line-by-line from the config file. Once returned from
// Load it is treated as immutable and shared by pointer across every
// package in the pipeline.
type Params struct {
	CPUs []int

	AltRowFind   int
	AtomicUnit   int
	RowSize      int
	RowsPerSet   int
	BankFindStep int
	NrBanks      int

	DelayIters int

	Size   uint64
	Cached bool
	Contig bool

	Pagemap bool

	SortRows      bool
	SortRowsShift int

	SchedFifo int

	FillType FillType

	CheckRest bool

	Mod               int
	ModStride         bool
	VictimMask        uint64
	VictimDataPattern uint32

	AlwaysRefill bool

	MaxFuzz  uint64
	FuzzStep uint64

	MeasureLoops int
	Offset0      uint64
	SrcOffset    uint64

	ConflictThUs int
	FindStep     int
	NRows        int
	MinAggr      int
	MaxAggr      int

	HammerLoops int

	RepeatFlips int
	NTries      int

	AssistedDoubleDist int

	AddrLoops []AddrLoop

	Pattern Pattern
}

// Error identifies the offending config line and token, so a malformed
// config file fails fast with something actionable instead of a generic
// parse error.
type Error struct {
	Line  int
	Token string
	Msg   string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("config: line %d (%q): %s", e.Line, e.Token, e.Msg)
	}
	return fmt.Sprintf("config: %q: %s", e.Token, e.Msg)
}

func defaults() *Params {
	return &Params{
		CPUs:               []int{0},
		Size:               128 * mb,
		Contig:             true,
		Cached:             false,
		CheckRest:          true,
		Pagemap:            false,
		Mod:                1,
		ModStride:          true,
		AssistedDoubleDist: 7,
		VictimDataPattern:  0xffffffff,
		DelayIters:         1000,
		AltRowFind:         0,
		NrBanks:            1,
		RowsPerSet:         1,
		BankFindStep:       512 * kb,
		AlwaysRefill:       false,
		SortRowsShift:      15,
		MaxFuzz:            0,
		FuzzStep:           64,
		Offset0:            16 * mb,
		SrcOffset:          0,
		MeasureLoops:       250000,
		SchedFifo:          0,
	}
}

// Load reads and parses a hammer-kit config file. Defaults are applied
// first (set_defaults in the original), then each non-comment, non-blank
// line overrides a field.
func Load(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config %s: %w", path, err)
	}
	defer f.Close()

	p := defaults()
	cpusSet := false

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return nil, &Error{Line: lineNo, Token: line, Msg: "missing '='"}
		}
		key := line[:eq]
		value := line[eq+1:]

		if key == "cpu" && !cpusSet {
			// First cpu= line replaces the zero-value default slot.
			p.CPUs = nil
			cpusSet = true
		}

		if err := set(p, key, value); err != nil {
			return nil, &Error{Line: lineNo, Token: key, Msg: err.Error()}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	return p, nil
}

func set(p *Params, name, value string) error {
	switch name {
	case "cpu":
		v, err := parseSize(value)
		if err != nil {
			return err
		}
		if len(p.CPUs) >= MaxCPUs {
			return fmt.Errorf("too many cpus (max %d)", MaxCPUs)
		}
		p.CPUs = append(p.CPUs, int(v))
	case "alt_row_find":
		return intoInt(&p.AltRowFind, value)
	case "atomic_unit":
		return intoInt(&p.AtomicUnit, value)
	case "rows_per_set":
		return intoInt(&p.RowsPerSet, value)
	case "nr_banks":
		return intoInt(&p.NrBanks, value)
	case "row_size":
		return intoInt(&p.RowSize, value)
	case "bank_find_step":
		return intoInt(&p.BankFindStep, value)
	case "delay_iters":
		return intoInt(&p.DelayIters, value)
	case "pagemap":
		v, err := parseBool(value)
		if err != nil {
			return err
		}
		p.Pagemap = v
	case "sort_rows":
		v, err := parseBool(value)
		if err != nil {
			return err
		}
		p.SortRows = v
	case "sort_rows_shift":
		return intoInt(&p.SortRowsShift, value)
	case "check_rest":
		v, err := parseBool(value)
		if err != nil {
			return err
		}
		p.CheckRest = v
	case "fill_type":
		ft, err := parseFillType(value)
		if err != nil {
			return err
		}
		p.FillType = ft
	case "mod":
		return intoInt(&p.Mod, value)
	case "mod_stride":
		v, err := parseBool(value)
		if err != nil {
			return err
		}
		p.ModStride = v
	case "victim_mask":
		v, err := parseHex(value)
		if err != nil {
			return err
		}
		p.VictimMask = v
	case "victim_data_pattern":
		v, err := parseHex(value)
		if err != nil {
			return err
		}
		p.VictimDataPattern = uint32(v)
	case "size":
		v, err := parseSize(value)
		if err != nil {
			return err
		}
		p.Size = v
	case "contig":
		v, err := parseBool(value)
		if err != nil {
			return err
		}
		p.Contig = v
	case "cached":
		v, err := parseBool(value)
		if err != nil {
			return err
		}
		p.Cached = v
	case "measure_loops":
		return intoInt(&p.MeasureLoops, value)
	case "offset0":
		v, err := parseSize(value)
		if err != nil {
			return err
		}
		p.Offset0 = v
	case "src_offset":
		v, err := parseSize(value)
		if err != nil {
			return err
		}
		p.SrcOffset = v
	case "conflict_th_us":
		return intoInt(&p.ConflictThUs, value)
	case "find_step":
		return intoInt(&p.FindStep, value)
	case "fuzz_step":
		v, err := parseSize(value)
		if err != nil {
			return err
		}
		p.FuzzStep = v
	case "max_fuzz":
		v, err := parseSize(value)
		if err != nil {
			return err
		}
		p.MaxFuzz = v
	case "n_rows":
		return intoInt(&p.NRows, value)
	case "min_aggr":
		return intoInt(&p.MinAggr, value)
	case "max_aggr":
		return intoInt(&p.MaxAggr, value)
	case "hammer_loops":
		return intoInt(&p.HammerLoops, value)
	case "repeat_flips":
		return intoInt(&p.RepeatFlips, value)
	case "n_tries":
		return intoInt(&p.NTries, value)
	case "assisted_double_dist":
		return intoInt(&p.AssistedDoubleDist, value)
	case "step":
		return parseStep(p, value)
	case "pattern":
		pat, err := parsePattern(value)
		if err != nil {
			return err
		}
		p.Pattern = pat
	case "always_refill":
		v, err := parseBool(value)
		if err != nil {
			return err
		}
		p.AlwaysRefill = v
	case "sched_fifo":
		return intoInt(&p.SchedFifo, value)
	default:
		return fmt.Errorf("unknown key")
	}
	return nil
}

func intoInt(dst *int, value string) error {
	v, err := parseSize(value)
	if err != nil {
		return err
	}
	*dst = int(v)
	return nil
}
