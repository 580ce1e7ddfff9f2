package experiment

import (
	"context"
	"testing"

	"github.com/google/hammer-kit/internal/config"
)

// TestAddressLoopEnumeration exercises scenario S6 / property 8: the
// nested address loops enumerate every (outer, inner) offset combination
// exactly once, outermost loop first. runOnceHook stands in for the real
// row-discovery/hammer body so the test only exercises enumeration.
func TestAddressLoopEnumeration(t *testing.T) {
	p := &config.Params{
		AddrLoops: []config.AddrLoop{
			{Step: 100, Count: 3},
			{Step: 10, Count: 2},
		},
	}
	d := &Driver{Params: p}
	var visited []uintptr
	d.runOnceHook = func(memOff uintptr, length uint64) error {
		visited = append(visited, memOff)
		return nil
	}

	if err := d.Run(context.Background(), 0, 1000, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []uintptr{0, 10, 100, 110, 200, 210}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visited[%d] = %d, want %d", i, visited[i], want[i])
		}
	}
}

func TestAddressLoopBaseCaseRunsOnceWithNoLoops(t *testing.T) {
	d := &Driver{Params: &config.Params{}}
	calls := 0
	d.runOnceHook = func(memOff uintptr, length uint64) error {
		calls++
		return nil
	}
	if err := d.Run(context.Background(), 0, 1000, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

// TestAddressLoopRespectsMaxOffset exercises an open-ended loop (Count ==
// 0, "until end of region") stopping once memOff reaches maxOff.
func TestAddressLoopRespectsMaxOffset(t *testing.T) {
	p := &config.Params{AddrLoops: []config.AddrLoop{{Step: 100, Count: 0}}}
	d := &Driver{Params: p}
	var visited []uintptr
	d.runOnceHook = func(memOff uintptr, length uint64) error {
		visited = append(visited, memOff)
		return nil
	}
	if err := d.Run(context.Background(), 0, 250, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []uintptr{0, 100, 200}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visited[%d] = %d, want %d", i, visited[i], want[i])
		}
	}
}
