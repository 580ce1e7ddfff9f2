package config

import (
	"fmt"
	"strconv"
	"strings"
)

// parseSize parses a base-10 integer with an optional K/M/G suffix (base
// 1024), matching the original's to_uint64_t.
func parseSize(value string) (uint64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty value")
	}

	suffix := value[len(value)-1]
	digits := value
	var mult uint64 = 1
	switch suffix {
	case 'K':
		mult = kb
		digits = value[:len(value)-1]
	case 'M':
		mult = mb
		digits = value[:len(value)-1]
	case 'G':
		mult = gb
		digits = value[:len(value)-1]
	}

	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad integer value %q", value)
	}
	return n * mult, nil
}

// parseHex parses a base-16 integer, matching parse_hex.
func parseHex(value string) (uint64, error) {
	v := strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
	n, err := strconv.ParseUint(v, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad hex value %q", value)
	}
	return n, nil
}

// parseBool accepts only "0" or "1", matching to_bool.
func parseBool(value string) (bool, error) {
	switch value {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("bad bool value %q (want 0 or 1)", value)
	}
}

func parsePattern(value string) (Pattern, error) {
	switch value {
	case "random":
		return PatternRandom, nil
	case "even":
		return PatternEven, nil
	case "trrespass_assisted_double":
		return PatternTRRESPASSAssistedDouble, nil
	default:
		return 0, fmt.Errorf("bad pattern value %q", value)
	}
}

func parseFillType(value string) (FillType, error) {
	switch value {
	case "random":
		return FillRandom, nil
	case "mod":
		return FillMod, nil
	default:
		return 0, fmt.Errorf("bad fill type value %q", value)
	}
}

// parseStep parses a repeatable "count:step" line and appends it to
// p.AddrLoops, matching parse_step.
func parseStep(p *Params, value string) error {
	colon := strings.IndexByte(value, ':')
	if colon < 0 {
		return fmt.Errorf("bad step value %q (want count:step)", value)
	}
	if len(p.AddrLoops) >= MaxAddrLoops {
		return fmt.Errorf("too many step entries (max %d)", MaxAddrLoops)
	}

	count, err := parseSize(value[:colon])
	if err != nil {
		return fmt.Errorf("bad step count: %w", err)
	}
	step, err := parseSize(value[colon+1:])
	if err != nil {
		return fmt.Errorf("bad step value: %w", err)
	}
	if step == 0 {
		return fmt.Errorf("invalid step (must be nonzero)")
	}

	p.AddrLoops = append(p.AddrLoops, AddrLoop{Count: int(count), Step: int(step)})
	return nil
}
