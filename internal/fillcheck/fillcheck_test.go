package fillcheck

import (
	"testing"

	"github.com/google/hammer-kit/internal/config"
	"github.com/google/hammer-kit/internal/memprovider"
	"github.com/google/hammer-kit/internal/physaddr"
	"github.com/google/hammer-kit/internal/rowfind"
	"github.com/google/hammer-kit/internal/timing"
)

func newTestRegion(t *testing.T, size int) *memprovider.Region {
	t.Helper()
	return &memprovider.Region{Base: make([]byte, size), Size: uint64(size)}
}

// TestFillCheckRoundTrip exercises scenario S1: filling a range and
// immediately checking it reports zero flips.
func TestFillCheckRoundTrip(t *testing.T) {
	r := newTestRegion(t, 256)
	tm := &timing.Primitive{Cached: false}
	oracle, _ := physaddr.New(false)

	if err := Fill(tm, r, 16, 64); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	flips, err := Check(tm, oracle, r, 16, 64)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if flips != 0 {
		t.Errorf("flips = %d, want 0", flips)
	}
}

func TestFillRejectsUnaligned(t *testing.T) {
	r := newTestRegion(t, 16)
	tm := &timing.Primitive{}
	if err := Fill(tm, r, 0, 5); err == nil {
		t.Error("expected error for length not divisible by 4")
	}
}

func TestCheckDetectsCorruption(t *testing.T) {
	r := newTestRegion(t, 64)
	tm := &timing.Primitive{}
	oracle, _ := physaddr.New(false)

	if err := Fill(tm, r, 0, 32); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	r.Base[4] ^= 0xff // flip a byte inside the second word

	flips, err := Check(tm, oracle, r, 0, 32)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if flips != 1 {
		t.Errorf("flips = %d, want 1", flips)
	}
}

// TestModKPattern exercises scenario S2: FillModK then CheckModK reports
// zero flips, and property 2: the pattern chosen is a deterministic
// function of (row index, mod, shift, victim mask).
func TestModKPattern(t *testing.T) {
	r := newTestRegion(t, 64)
	tm := &timing.Primitive{}
	oracle, _ := physaddr.New(false)
	p := &config.Params{
		Mod:               2,
		VictimMask:        0x1,
		VictimDataPattern: 0xaaaaaaaa,
	}
	rows := []rowfind.Row{
		{Idx: 0, Start: 0, Len: 16},
		{Idx: 1, Start: 16, Len: 16},
	}

	if err := FillModK(tm, r, p, rows, 0); err != nil {
		t.Fatalf("FillModK: %v", err)
	}
	flips, err := CheckModK(oracle, r, p, rows, 0)
	if err != nil {
		t.Fatalf("CheckModK: %v", err)
	}
	if flips != 0 {
		t.Errorf("flips = %d, want 0", flips)
	}

	// Row 0's mod bucket (idx=0, mod=2, shift=0) is 0, which is set in
	// VictimMask 0x1, so row 0 holds the pattern itself.
	want := p.VictimDataPattern
	got := patternFor(p, 0, 0)
	if got != want {
		t.Errorf("patternFor(row 0) = %#x, want %#x", got, want)
	}
	// Row 1's bucket is 1, which is not set, so it holds ~pattern.
	if got := patternFor(p, 1, 0); got != ^p.VictimDataPattern {
		t.Errorf("patternFor(row 1) = %#x, want %#x", got, ^p.VictimDataPattern)
	}
}

func TestModKDeterminism(t *testing.T) {
	p := &config.Params{Mod: 3, VictimMask: 0x5, VictimDataPattern: 0xdeadbeef}
	for _, shift := range []int{0, 1, 2} {
		for idx := 0; idx < 6; idx++ {
			a := patternFor(p, idx, shift)
			b := patternFor(p, idx, shift)
			if a != b {
				t.Errorf("patternFor(%d, %d) not deterministic: %#x vs %#x", idx, shift, a, b)
			}
		}
	}
}

func TestFillModKRejectsBadShift(t *testing.T) {
	r := newTestRegion(t, 16)
	tm := &timing.Primitive{}
	p := &config.Params{Mod: 2}
	rows := []rowfind.Row{{Idx: 0, Start: 0, Len: 16}}

	if err := FillModK(tm, r, p, rows, 2); err == nil {
		t.Error("expected error for shift >= mod")
	}
	if err := FillModK(tm, r, p, rows, -1); err == nil {
		t.Error("expected error for negative shift")
	}
}

func TestRowRange(t *testing.T) {
	rows := []rowfind.Row{
		{Start: 32, Len: 16},
		{Start: 0, Len: 8},
		{Start: 64, Len: 4},
	}
	start, end := RowRange(rows)
	if start != 0 {
		t.Errorf("start = %d, want 0", start)
	}
	if end != 68 {
		t.Errorf("end = %d, want 68", end)
	}
}
