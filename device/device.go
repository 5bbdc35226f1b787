package device

import (
	"fmt"

	"github.com/notargets/gocca"
)

// Backends lists the device properties tried by NewDevice, parallel
// backends first
var Backends = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// NewDevice creates a device from props, or from the first available entry
// of Backends when props is empty
func NewDevice(props string) (*gocca.OCCADevice, error) {
	if props != "" {
		device, err := gocca.NewDevice(props)
		if err != nil {
			return nil, fmt.Errorf("failed to create device %s: %w", props, err)
		}
		return device, nil
	}
	var lastErr error
	for _, p := range Backends {
		device, err := gocca.NewDevice(p)
		if err == nil {
			return device, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no device backend available: %w", lastErr)
}
