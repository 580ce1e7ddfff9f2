//go:build linux

package memprovider

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/google/hammer-kit/internal/config"
)

// dmaHeapAllocData matches struct dma_heap_allocation_data from
// linux/dma-heap.h (24 bytes).
type dmaHeapAllocData struct {
	len       uint64
	fd        uint32
	fdFlags   uint32
	heapFlags uint64
}

// Compile-time size assertion, the same discipline uffd_linux.go uses for
// its hand-declared ioctl structs.
var _ [24]byte = [unsafe.Sizeof(dmaHeapAllocData{})]byte{}

const (
	// DMA_HEAP_IOC_ALLOC: _IOWR('H', 0x0, struct dma_heap_allocation_data)
	// where sizeof == 24.
	_DMA_HEAP_IOC_ALLOC = 0xc0184800

	dmaHeapDir        = "/dev/dma_heap"
	dmaHeapContigName = "reserved"
	dmaHeapSystemName = "system"
)

// Allocate backs non-contiguous, cached memory with a plain anonymous
// mmap+mlock; everything else goes through a DMA-BUF heap allocation
// against /dev/dma_heap/*, the modern Linux mechanism for
// physically-contiguous buffers (the older ION driver it replaced was
// removed from upstream Linux).
func Allocate(p *config.Params) (*Region, error) {
	pageSize := uint64(os.Getpagesize())
	alignedSize := (p.Size + pageSize - 1) &^ (pageSize - 1)

	if !p.Contig && p.Cached {
		return allocAnonymous(alignedSize)
	}
	return allocDMAHeap(p, alignedSize)
}

func allocAnonymous(size uint64) (*Region, error) {
	mem, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANONYMOUS|unix.MAP_PRIVATE|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("memprovider: mmap anonymous region: %w", err)
	}
	if err := unix.Mlock(mem); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("memprovider: mlock: %w", err)
	}

	return &Region{
		Base: mem,
		Size: size,
		close: func() error {
			return unix.Munmap(mem)
		},
	}, nil
}

// allocDMAHeap selects a CMA-backed heap when Contig is set, else the
// general "system" heap.
func allocDMAHeap(p *config.Params, size uint64) (*Region, error) {
	heapName, err := selectHeap(p.Contig)
	if err != nil {
		return nil, err
	}

	heapFd, err := unix.Open(filepath.Join(dmaHeapDir, heapName), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("memprovider: open %s: %w", heapName, err)
	}
	defer unix.Close(heapFd)

	req := dmaHeapAllocData{
		len:     size,
		fdFlags: unix.O_RDWR | unix.O_CLOEXEC,
	}
	if err := ioctl(heapFd, _DMA_HEAP_IOC_ALLOC, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, fmt.Errorf("memprovider: dma-heap alloc on %s: %w", heapName, err)
	}
	bufFd := int(req.fd)
	defer func() {
		if bufFd >= 0 {
			unix.Close(bufFd)
		}
	}()

	mem, err := unix.Mmap(bufFd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("memprovider: mmap dma-heap buffer: %w", err)
	}

	ownedFd := bufFd
	bufFd = -1 // transferred to the closure below
	return &Region{
		Base: mem,
		Size: size,
		close: func() error {
			err := unix.Munmap(mem)
			unix.Close(ownedFd)
			return err
		},
	}, nil
}

// selectHeap picks a heap name under /dev/dma_heap. Real systems expose
// vendor-specific CMA heap names (e.g. "reserved", "linux,cma"); this walks
// the directory and picks a name containing "cma" or "reserved" when contig
// is requested, or the "system" heap otherwise. It fails if no heap of the
// required type is listed.
func selectHeap(contig bool) (string, error) {
	entries, err := os.ReadDir(dmaHeapDir)
	if err != nil {
		return "", fmt.Errorf("memprovider: enumerating %s: %w", dmaHeapDir, err)
	}

	for _, e := range entries {
		name := e.Name()
		if !contig && name == dmaHeapSystemName {
			return name, nil
		}
		lower := strings.ToLower(name)
		if contig && (strings.Contains(lower, "cma") || strings.Contains(lower, dmaHeapContigName)) {
			return name, nil
		}
	}
	return "", fmt.Errorf("memprovider: no heap found under %s (type: contig=%v)", dmaHeapDir, contig)
}

func ioctl(fd int, req uint, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), arg)
	if errno != 0 {
		return errno
	}
	return nil
}
