//go:build !linux

package hammerpool

// pinAffinity and PinSelf require Linux's sched_setaffinity/sched_setscheduler.
// Elsewhere the pool still runs, just without CPU pinning or real-time priority.
func pinAffinity(cpu int) error {
	return nil
}

func PinSelf(cpu int, priority int) error {
	return nil
}
