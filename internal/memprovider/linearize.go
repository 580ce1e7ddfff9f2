//go:build linux

package memprovider

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/google/hammer-kit/internal/config"
	"github.com/google/hammer-kit/internal/physaddr"
)

// mremap(2) flags, from linux/mman.h. golang.org/x/sys/unix has no mremap
// wrapper, so the syscall is issued directly -- the same "declare it
// yourself" idiom uffd_linux.go uses for its ioctl numbers.
const (
	mremapMaymove = 1
	mremapFixed   = 2
)

// Linearize arranges a region's pages so ascending virtual offset implies
// ascending physical address, which the row-discovery and hammering passes
// rely on to reason about row/bank adjacency from virtual offsets alone. If
// pagemap resolution is disabled, or the region is already a single
// physically-contiguous run, the region is returned unchanged. Otherwise
// every page is remapped into a fresh region in physical order.
//
// On success the caller must stop using r -- its pages have been moved into
// the returned region via mremap, not copied, so r's old Close is a no-op
// afterward.
func Linearize(p *config.Params, oracle *physaddr.Oracle, r *Region) (*Region, error) {
	if !oracle.Enabled {
		return r, nil
	}

	pageSize := os.Getpagesize()
	if int(r.Size)%pageSize != 0 {
		return nil, fmt.Errorf("memprovider: linearize: region size %d not page-aligned", r.Size)
	}
	pageCount := int(r.Size) / pageSize

	pages := make([]pageRecord, pageCount)
	base := uintptr(unsafe.Pointer(&r.Base[0]))
	for i := 0; i < pageCount; i++ {
		virt := base + uintptr(i*pageSize)
		phys, err := oracle.Resolve(virt)
		if err != nil {
			return nil, fmt.Errorf("memprovider: linearize: resolving page %d: %w", i, err)
		}
		pages[i] = pageRecord{virt: virt, phys: phys}
	}

	ranges := buildRanges(pages, uintptr(pageSize))
	if len(ranges) == 1 {
		return r, nil
	}

	newBase, err := unix.Mmap(-1, 0, int(r.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("memprovider: linearize: mmap target region: %w", err)
	}

	newRegionAddr := uintptr(unsafe.Pointer(&newBase[0]))
	offset := uintptr(0)
	for _, rg := range ranges {
		for _, virt := range rg.virtAddrs {
			dst := newRegionAddr + offset
			got, _, errno := unix.Syscall6(unix.SYS_MREMAP,
				virt, uintptr(pageSize), uintptr(pageSize),
				mremapFixed|mremapMaymove, dst, 0)
			if errno != 0 {
				unix.Munmap(newBase)
				return nil, fmt.Errorf("memprovider: linearize: mremap page at %#x: %w", virt, errno)
			}
			if got != dst {
				unix.Munmap(newBase)
				return nil, fmt.Errorf("memprovider: linearize: mremap returned %#x, want %#x", got, dst)
			}
			offset += uintptr(pageSize)
		}
	}

	r.close = nil // pages were moved out from under this region, not copied

	return &Region{
		Base: newBase,
		Size: r.Size,
		close: func() error {
			return unix.Munmap(newBase)
		},
	}, nil
}
