//go:build !linux

package physaddr

import "fmt"

func openPagemap() (pagemapReader, error) {
	return nil, fmt.Errorf("physaddr: pagemap oracle requires linux")
}
