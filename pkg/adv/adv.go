// Package adv splits BLE advertisement and scan response payloads into
// length-prefixed AD elements and offers typed lookups over them.
package adv

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/srg/btrelay/internal/cursor"
)

// ParseError describes a malformed AD structure.
type ParseError struct {
	Offset    int // offset of the length byte within the blob
	Length    int // declared element length
	Remaining int // bytes left after the length byte
}

func (e *ParseError) Error() string {
	if e.Remaining == 0 {
		return fmt.Sprintf("malformed AD length: dangling byte at offset %d", e.Offset)
	}
	return fmt.Sprintf("malformed AD length %d at offset %d (%d bytes remaining)", e.Length, e.Offset, e.Remaining)
}

// Is matches any ParseError, so errors.Is(err, ErrMalformedLength) holds for all of them.
func (e *ParseError) Is(target error) bool {
	var t *ParseError
	return errors.As(target, &t)
}

// ErrMalformedLength is the sentinel for errors.Is checks.
var ErrMalformedLength = &ParseError{}

// Element is one AD structure. Payload aliases the parsed blob.
type Element struct {
	Type    Type
	Payload []byte
}

// ServiceData is a service data element split into its UUID and data.
type ServiceData struct {
	UUID ble.UUID
	Data []byte
}

// VendorData is a vendor-specific element split into its company ID and data.
type VendorData struct {
	VendorID uint16
	Data     []byte
}

// Data is the ordered list of elements of an advertisement, optionally
// followed by the elements of its scan response.
type Data []Element

// Parse splits blob into elements.
func Parse(blob []byte) (Data, error) {
	var d Data
	if err := d.Parse(blob, false); err != nil {
		return nil, err
	}
	return d, nil
}

// Parse2 parses an advertisement and its scan response into one element list.
func Parse2(advData, scanRsp []byte) (Data, error) {
	var d Data
	if err := d.Parse(advData, false); err != nil {
		return nil, err
	}
	if err := d.Parse(scanRsp, true); err != nil {
		return nil, err
	}
	return d, nil
}

// Parse splits blob into elements, replacing the current content unless
// appending. A zero length, a length past the end of the blob or a dangling
// length byte stops parsing with a *ParseError; d then holds no element of
// blob.
func (d *Data) Parse(blob []byte, appending bool) error {
	if !appending {
		*d = (*d)[:0]
	}
	start := len(*d)
	c := cursor.New(blob)
	for !c.Empty() {
		offset := len(blob) - c.Len()
		if c.Len() < 2 {
			*d = (*d)[:start]
			return &ParseError{Offset: offset}
		}
		l, _ := c.At(0)
		_ = c.ChopLeft(1)
		if l == 0 || int(l) > c.Len() {
			*d = (*d)[:start]
			return &ParseError{Offset: offset, Length: int(l), Remaining: c.Len()}
		}
		sub := c.Substr(0, int(l))
		e := sub.Bytes()
		*d = append(*d, Element{Type: Type(e[0]), Payload: e[1:]})
		_ = c.ChopLeft(int(l))
	}
	return nil
}

// DataByType returns the payload of the first element of type t.
func (d Data) DataByType(t Type) []byte {
	for _, e := range d {
		if e.Type == t {
			return e.Payload
		}
	}
	return nil
}

// AllDataByType returns the payloads of all elements of type t.
func (d Data) AllDataByType(t Type) [][]byte {
	var res [][]byte
	for _, e := range d {
		if e.Type == t {
			res = append(res, e.Payload)
		}
	}
	return res
}

// ServiceData returns the data following uuid in the first matching service
// data element, or nil.
func (d Data) ServiceData(uuid ble.UUID) []byte {
	t, ok := serviceDataType(uuid.Len())
	if !ok {
		return nil
	}
	width := uuid.Len()
	for _, e := range d {
		if e.Type != t || len(e.Payload) < width {
			continue
		}
		if !ble.UUID(e.Payload[:width]).Equal(uuid) {
			continue
		}
		return e.Payload[width:]
	}
	return nil
}

// AllServiceData returns every service data element.
func (d Data) AllServiceData() []ServiceData {
	var res []ServiceData
	for _, e := range d {
		var width int
		switch e.Type {
		case TypeServiceData16:
			width = 2
		case TypeServiceData32:
			width = 4
		case TypeServiceData128:
			width = 16
		default:
			continue
		}
		if len(e.Payload) < width {
			continue
		}
		res = append(res, ServiceData{
			UUID: ble.UUID(append([]byte(nil), e.Payload[:width]...)),
			Data: e.Payload[width:],
		})
	}
	return res
}

// VendorData returns the data following the company ID of the first
// vendor-specific element for vendorID, or nil.
func (d Data) VendorData(vendorID uint16) []byte {
	for _, e := range d {
		if e.Type != TypeVendorSpecific || len(e.Payload) < 2 {
			continue
		}
		if binary.LittleEndian.Uint16(e.Payload) == vendorID {
			return e.Payload[2:]
		}
	}
	return nil
}

// AllVendorData returns every vendor-specific element.
func (d Data) AllVendorData() []VendorData {
	var res []VendorData
	for _, e := range d {
		if e.Type != TypeVendorSpecific || len(e.Payload) < 2 {
			continue
		}
		res = append(res, VendorData{
			VendorID: binary.LittleEndian.Uint16(e.Payload),
			Data:     e.Payload[2:],
		})
	}
	return res
}

// HasService reports whether uuid appears in any complete or incomplete service list.
func (d Data) HasService(uuid ble.UUID) bool {
	found := false
	d.eachService(func(u ble.UUID) bool {
		found = u.Equal(uuid)
		return !found
	})
	return found
}

// Services returns all advertised service UUIDs in element order.
func (d Data) Services() []ble.UUID {
	var res []ble.UUID
	d.eachService(func(u ble.UUID) bool {
		res = append(res, ble.UUID(append([]byte(nil), u...)))
		return true
	})
	return res
}

func (d Data) eachService(fn func(ble.UUID) bool) {
	for _, e := range d {
		width := serviceListWidth(e.Type)
		if width == 0 {
			continue
		}
		for p := e.Payload; len(p) >= width; p = p[width:] {
			if !fn(ble.UUID(p[:width])) {
				return
			}
		}
	}
}

// Name returns the complete local name, falling back to the shortened one.
func (d Data) Name() string {
	if n := d.DataByType(TypeFullName); n != nil {
		return string(n)
	}
	return string(d.DataByType(TypeShortName))
}

// Flags returns the flags byte, if present.
func (d Data) Flags() (uint8, bool) {
	f := d.DataByType(TypeFlags)
	if len(f) < 1 {
		return 0, false
	}
	return f[0], true
}

// TxPower returns the advertised TX power level in dBm, if present.
func (d Data) TxPower() (int8, bool) {
	p := d.DataByType(TypePowerLevel)
	if len(p) < 1 {
		return 0, false
	}
	return int8(p[0]), true
}
