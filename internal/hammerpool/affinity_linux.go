//go:build linux

package hammerpool

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// pinAffinity pins the calling OS thread to cpu.
func pinAffinity(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity cpu %d: %w", cpu, err)
	}
	return nil
}

const schedFIFO = 1

type schedParam struct {
	priority int32
}

// PinSelf pins the calling OS thread to cpu and, if priority is non-zero,
// raises it to SCHED_FIFO at that priority. The main thread calls this once
// during startup whether or not a worker pool is in use.
func PinSelf(cpu int, priority int) error {
	if err := pinAffinity(cpu); err != nil {
		return err
	}
	if priority == 0 {
		return nil
	}
	param := schedParam{priority: int32(priority)}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, schedFIFO, uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return fmt.Errorf("sched_setscheduler SCHED_FIFO priority %d: %w", priority, errno)
	}
	return nil
}
