package scanner

import (
	"fmt"
	"strings"
)

// AdapterState is the kind of adapter failure.
type AdapterState string

const (
	BluetoothOff     AdapterState = "bluetooth_off"
	NoAdapter        AdapterState = "no_adapter"
	PermissionDenied AdapterState = "permission_denied"
)

// AdapterError reports that the local adapter cannot scan.
type AdapterError struct {
	State AdapterState
	Msg   string
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is compares AdapterError values by State.
func (e *AdapterError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*AdapterError)
	if !ok {
		return false
	}
	return e.State == t.State
}

var (
	ErrBluetoothOff     = &AdapterError{State: BluetoothOff}
	ErrNoAdapter        = &AdapterError{State: NoAdapter}
	ErrPermissionDenied = &AdapterError{State: PermissionDenied}
)

// NormalizeError maps known go-ble error strings to AdapterError values,
// keeping the original error text.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "no devices available"):
		return fmt.Errorf("%w: %v", ErrNoAdapter, err)
	case containsIgnoreCase(msg, "operation not permitted"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return err
	}
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
