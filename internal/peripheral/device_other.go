//go:build !linux && !darwin

package peripheral

import "github.com/go-ble/ble"

// DeviceFactory has no backing stack on this platform (can be overridden in tests)
var DeviceFactory = func() (ble.Device, error) {
	return nil, ErrUnsupportedPlatform
}
