//go:build linux

package scanner

import (
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci"
)

var _ rawAdvertisement = (*hci.Advertisement)(nil)

// DeviceFactory opens the scanning adapter. Tests replace it.
var DeviceFactory = func() (ScanDevice, error) {
	return linux.NewDevice()
}
