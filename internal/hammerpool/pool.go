// Package hammerpool dispatches a hammering burst across one goroutine per
// configured CPU, each pinned to its own core, and reports the wall-clock
// time the whole dispatch took to complete.
package hammerpool

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/google/hammer-kit/internal/config"
	"github.com/google/hammer-kit/internal/timing"
)

// rowAddr is a resolved, absolute address ready to hand to the timing
// primitive -- the point past which hammerpool and timing are the only
// packages still touching raw pointers.
type rowAddr = uintptr

type workerJob struct {
	rows        []rowAddr
	loops       int
	timingLoops int
}

type worker struct {
	cpu      int
	jobCh    chan workerJob
	resultNs chan uint64
	errCh    chan error
}

// Pool is the parallel hammering dispatcher. A Pool with zero workers
// (len(p.CPUs) < 2) runs every Hammer call on the calling goroutine
// instead, matching parallel_hammer()'s own nr_cpus < 2 short-circuit.
type Pool struct {
	tm      *timing.Primitive
	workers []*worker
	wg      sync.WaitGroup
}

// New spawns one worker goroutine per p.CPUs entry (when there are at
// least two), each locked to its own OS thread and pinned to its assigned
// core via runtime.LockOSThread + affinity, and raised to SCHED_FIFO at
// priority p.SchedFifo when that is non-zero. It does not pin the calling
// goroutine itself -- that's PinSelf, called once by the caller independent
// of whether a worker pool exists at all.
func New(p *config.Params) (*Pool, error) {
	pool := &Pool{tm: timing.New(p)}
	if len(p.CPUs) < 2 {
		return pool, nil
	}

	setupErr := make(chan error, len(p.CPUs))
	for _, cpu := range p.CPUs {
		w := &worker{
			cpu:      cpu,
			jobCh:    make(chan workerJob, 1),
			resultNs: make(chan uint64, 1),
			errCh:    make(chan error, 1),
		}
		pool.workers = append(pool.workers, w)
		go w.run(pool.tm, &pool.wg, p.SchedFifo, setupErr)
	}

	for range pool.workers {
		if err := <-setupErr; err != nil {
			return nil, fmt.Errorf("hammerpool: %w", err)
		}
	}
	return pool, nil
}

func (w *worker) run(tm *timing.Primitive, wg *sync.WaitGroup, priority int, setupErr chan<- error) {
	runtime.LockOSThread()
	setupErr <- PinSelf(w.cpu, priority)

	for job := range w.jobCh {
		addrs := make([]unsafe.Pointer, len(job.rows))
		for i, a := range job.rows {
			addrs[i] = unsafe.Pointer(a)
		}
		t, err := tm.Measure(addrs, job.loops, job.timingLoops)
		w.resultNs <- t
		w.errCh <- err
		wg.Done()
	}
}

// Hammer dispatches rows to every worker, split as evenly as possible with
// any remainder going to the leading workers, and measures the wall-clock
// time from dispatch to every worker finishing -- not the sum of
// individual worker times, matching parallel_hammer()'s ns()-delta around
// the whole sem_wait loop.
func (pool *Pool) Hammer(rows []rowAddr, loops, timingLoops int) (uint64, error) {
	if len(pool.workers) == 0 {
		addrs := make([]unsafe.Pointer, len(rows))
		for i, a := range rows {
			addrs[i] = unsafe.Pointer(a)
		}
		return pool.tm.Measure(addrs, loops, timingLoops)
	}

	n := len(pool.workers)
	base := len(rows) / n
	rem := len(rows) % n

	start := time.Now()
	idx := 0
	for i, w := range pool.workers {
		count := base
		if i < rem {
			count++
		}
		pool.wg.Add(1)
		w.jobCh <- workerJob{rows: rows[idx : idx+count], loops: loops, timingLoops: timingLoops}
		idx += count
	}

	pool.wg.Wait()
	elapsed := uint64(time.Since(start))

	var firstErr error
	for _, w := range pool.workers {
		<-w.resultNs
		if err := <-w.errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return elapsed, firstErr
}

// Close stops every worker goroutine. Safe to call on a zero-worker Pool.
func (pool *Pool) Close() {
	for _, w := range pool.workers {
		close(w.jobCh)
	}
}
