package bthome

import (
	"errors"
	"fmt"
)

// ErrorState identifies the kind of decode failure.
type ErrorState string

const (
	NotFound           ErrorState = "not_found"
	TruncatedRecord    ErrorState = "truncated_record"
	UnknownObjectID    ErrorState = "unknown_object_id"
	UnsupportedVersion ErrorState = "unsupported_version"
	Encrypted          ErrorState = "encrypted"
	Unencrypted        ErrorState = "unencrypted"
	InvalidFormat      ErrorState = "invalid_format"
	ParseFailed        ErrorState = "parse_failed"
)

// DecodeError is returned by every decoding operation in this package.
type DecodeError struct {
	State ErrorState
	Msg   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare DecodeError values by State
func (e *DecodeError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return e.State == t.State
}

var (
	ErrNotFound           = &DecodeError{State: NotFound}
	ErrTruncatedRecord    = &DecodeError{State: TruncatedRecord}
	ErrUnknownObjectID    = &DecodeError{State: UnknownObjectID}
	ErrUnsupportedVersion = &DecodeError{State: UnsupportedVersion}
	ErrEncrypted          = &DecodeError{State: Encrypted}
	ErrUnencrypted        = &DecodeError{State: Unencrypted}
	ErrInvalidFormat      = &DecodeError{State: InvalidFormat}
	ErrParseFailed        = &DecodeError{State: ParseFailed}
)

func newError(state ErrorState, format string, args ...any) error {
	return &DecodeError{State: state, Msg: fmt.Sprintf(format, args...)}
}

// IsKeyMismatch reports whether err comes from a disagreement between the
// frame's encryption flag and the presence of a key. These point at device
// configuration rather than radio noise.
func IsKeyMismatch(err error) bool {
	return errors.Is(err, ErrEncrypted) || errors.Is(err, ErrUnencrypted)
}
