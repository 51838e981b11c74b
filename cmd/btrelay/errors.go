package main

import (
	"errors"
	"fmt"

	"github.com/srg/btrelay/internal/publish"
	"github.com/srg/btrelay/internal/scanner"
	"github.com/srg/btrelay/pkg/bthome"
)

// ErrNoSensor is returned by decode when no supported format matches.
var ErrNoSensor = errors.New("no supported sensor format")

// FormatUserError turns known errors into a short hint followed by the
// underlying message.
func FormatUserError(err error) string {
	var hint string
	switch {
	case errors.Is(err, scanner.ErrBluetoothOff):
		hint = "Bluetooth is turned off; enable it and retry"
	case errors.Is(err, scanner.ErrNoAdapter):
		hint = "no Bluetooth adapter found"
	case errors.Is(err, scanner.ErrPermissionDenied):
		hint = "scanning needs root or CAP_NET_ADMIN and CAP_NET_RAW"
	case errors.Is(err, publish.ErrNotConnected):
		hint = "MQTT broker is not connected"
	case bthome.IsKeyMismatch(err):
		hint = "BTHome bind key does not match the device encryption setting"
	case errors.Is(err, bthome.ErrUnsupportedVersion):
		hint = "only BTHome v2 is supported"
	default:
		return err.Error()
	}
	return fmt.Sprintf("%s (%v)", hint, err)
}
