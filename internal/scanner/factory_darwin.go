//go:build darwin

package scanner

import "github.com/go-ble/ble/darwin"

// DeviceFactory opens the scanning adapter. Tests replace it.
var DeviceFactory = func() (ScanDevice, error) {
	return darwin.NewDevice()
}
