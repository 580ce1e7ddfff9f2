package hammerpool

import (
	"testing"
	"unsafe"

	"github.com/google/hammer-kit/internal/config"
)

// TestNewSingleCPUHasNoWorkers exercises property 7: with fewer than two
// configured CPUs, Hammer must run on the calling goroutine rather than
// spawning any worker -- parallel_hammer()'s own nr_cpus < 2 short-circuit.
func TestNewSingleCPUHasNoWorkers(t *testing.T) {
	p := &config.Params{CPUs: []int{0}, DelayIters: 1}
	pool, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Close()
	if len(pool.workers) != 0 {
		t.Errorf("workers = %d, want 0 for a single configured CPU", len(pool.workers))
	}
}

func TestHammerSingleCPUMeasures(t *testing.T) {
	p := &config.Params{CPUs: []int{0}, DelayIters: 1}
	pool, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Close()

	var x uint32
	rows := []rowAddr{uintptr(unsafe.Pointer(&x))}
	elapsed, err := pool.Hammer(rows, 2, 1)
	if err != nil {
		t.Fatalf("Hammer: %v", err)
	}
	if elapsed == 0 {
		t.Error("elapsed = 0, want a positive duration")
	}
}
