//go:build !amd64 && !arm64

package timing

import (
	"runtime"
	"unsafe"
)

// fence has no portable serializing-instruction equivalent outside
// amd64/arm64; runtime.Gosched is the closest stdlib approximation of a
// pipeline-draining barrier and keeps the build working on other
// architectures, at the cost of timing precision the two primary targets
// don't have to give up.
func fence() {
	runtime.Gosched()
}

// flushLine is a no-op outside amd64/arm64: there is no portable way to
// evict a single cache line from Go, so hammering on other architectures
// degrades to purely timing-driven detection with whatever eviction the
// allocation's cache attributes already provide.
func flushLine(addr unsafe.Pointer) {
	_ = addr
}

func nop() {}
