//go:build !linux

package memprovider

import (
	"fmt"

	"github.com/google/hammer-kit/internal/config"
)

// Allocate has no meaning outside Linux: there is no pagemap oracle and no
// DMA-BUF heap to source physically-contiguous memory from.
func Allocate(p *config.Params) (*Region, error) {
	return nil, fmt.Errorf("memprovider: physical memory allocation requires linux")
}
