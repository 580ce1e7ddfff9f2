//go:build linux

package physaddr

import (
	"encoding/binary"
	"fmt"
	"os"
)

// pagemap entry bit layout, from Documentation/admin-guide/mm/pagemap.rst.
const (
	ptePresent = uint64(1) << 63
	pteSwap    = uint64(1) << 62
	ptePFNMask = uint64(1)<<55 - 1
)

const pteSize = 8 // sizeof(uint64_t)

type linuxPagemap struct {
	f        *os.File
	pageSize uintptr
}

func openPagemap() (pagemapReader, error) {
	f, err := os.Open("/proc/self/pagemap")
	if err != nil {
		return nil, fmt.Errorf("opening pagemap: %w", err)
	}
	return &linuxPagemap{f: f, pageSize: uintptr(os.Getpagesize())}, nil
}

// resolve looks up the page frame number for virt's page in
// /proc/self/pagemap, and combines it with virt's in-page offset.
func (pm *linuxPagemap) resolve(virt uintptr) (uint64, error) {
	pageNum := uint64(virt) / uint64(pm.pageSize)
	pageOffset := uint64(virt) % uint64(pm.pageSize)
	off := int64(pageNum * pteSize)

	var buf [pteSize]byte
	n, err := pm.f.ReadAt(buf[:], off)
	if err != nil || n != pteSize {
		return 0, fmt.Errorf("pagemap read failed at offset %#x: %w", off, err)
	}
	pte := binary.LittleEndian.Uint64(buf[:])

	if pte&ptePresent == 0 {
		return 0, fmt.Errorf("page not present (virt %#x)", virt)
	}
	if pte&pteSwap != 0 {
		return 0, fmt.Errorf("page swapped out (virt %#x)", virt)
	}

	pfn := pte & ptePFNMask
	return pfn*uint64(pm.pageSize) + pageOffset, nil
}

func (pm *linuxPagemap) close() error {
	return pm.f.Close()
}
