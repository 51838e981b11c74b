//go:build !linux && !darwin

package scanner

import "runtime"

var DeviceFactory = func() (ScanDevice, error) {
	return nil, &AdapterError{State: NoAdapter, Msg: "BLE scanning is not supported on " + runtime.GOOS}
}
