package bthome

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

// MaxStrLen is the number of string bytes retained per value. Longer strings
// are truncated.
const MaxStrLen = 3

// Value is one decoded object record. Exactly one representation is valid,
// selected by Format; the typed accessors report false for the others.
type Value struct {
	ObjectID uint8
	Index    uint8 // repetition index within the frame
	Category Category

	format Format
	bits   uint64
	strLen uint8
	str    [MaxStrLen]byte
}

func NewUint(id uint8, c Category, v uint32) Value {
	return Value{ObjectID: id, Category: c, format: FormatUnsignedInt, bits: uint64(v)}
}

func NewInt(id uint8, c Category, v int32) Value {
	return Value{ObjectID: id, Category: c, format: FormatSignedInt, bits: uint64(uint32(v))}
}

func NewFloat(id uint8, c Category, v float64) Value {
	return Value{ObjectID: id, Category: c, format: FormatFloat, bits: math.Float64bits(v)}
}

func NewBool(id uint8, c Category, v bool) Value {
	var b uint64
	if v {
		b = 1
	}
	return Value{ObjectID: id, Category: c, format: FormatBool, bits: b}
}

// NewStr keeps at most MaxStrLen bytes of b.
func NewStr(id uint8, c Category, b []byte) Value {
	v := Value{ObjectID: id, Category: c, format: FormatStr}
	v.strLen = uint8(copy(v.str[:], b))
	return v
}

func (v Value) Format() Format {
	return v.format
}

func (v Value) Uint() (uint32, bool) {
	return uint32(v.bits), v.format == FormatUnsignedInt
}

func (v Value) Int() (int32, bool) {
	return int32(uint32(v.bits)), v.format == FormatSignedInt
}

func (v Value) Float() (float64, bool) {
	if v.format != FormatFloat {
		return 0, false
	}
	return math.Float64frombits(v.bits), true
}

func (v Value) Bool() (bool, bool) {
	return v.bits != 0, v.format == FormatBool
}

// Str returns a copy of the retained string bytes.
func (v Value) Str() ([]byte, bool) {
	if v.format != FormatStr {
		return nil, false
	}
	return append([]byte(nil), v.str[:v.strLen]...), true
}

// Number returns the value as a float64 for numeric sinks. Booleans map to
// 0 and 1; strings have no numeric form.
func (v Value) Number() (float64, bool) {
	switch v.format {
	case FormatUnsignedInt:
		return float64(uint32(v.bits)), true
	case FormatSignedInt:
		return float64(int32(uint32(v.bits))), true
	case FormatFloat:
		return math.Float64frombits(v.bits), true
	case FormatBool:
		if v.bits != 0 {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Equal compares representations: formats must match, then values.
// Object ID and index are not part of the comparison.
func (v Value) Equal(o Value) bool {
	if v.format != o.format {
		return false
	}
	switch v.format {
	case FormatNone:
		return true
	case FormatFloat:
		return math.Float64frombits(v.bits) == math.Float64frombits(o.bits)
	case FormatStr:
		return v.strLen == o.strLen && v.str == o.str
	default:
		return v.bits == o.bits
	}
}

// Interface returns the value as a plain Go value for encoding.
func (v Value) Interface() any {
	switch v.format {
	case FormatUnsignedInt:
		return uint32(v.bits)
	case FormatSignedInt:
		return int32(uint32(v.bits))
	case FormatFloat:
		return math.Float64frombits(v.bits)
	case FormatBool:
		return v.bits != 0
	case FormatStr:
		return v.strValue()
	}
	return nil
}

func (v Value) strValue() string {
	if v.ObjectID == ObjectIDText {
		return string(v.str[:v.strLen])
	}
	return hex.EncodeToString(v.str[:v.strLen])
}

// Key is the "name:index" label of the value.
func (v Value) Key() string {
	return Name(v.ObjectID) + ":" + strconv.Itoa(int(v.Index))
}

func (v Value) String() string {
	var vs string
	switch v.format {
	case FormatNone:
		vs = "none"
	case FormatUnsignedInt:
		vs = strconv.FormatUint(uint64(uint32(v.bits)), 10)
	case FormatSignedInt:
		vs = strconv.FormatInt(int64(int32(uint32(v.bits))), 10)
	case FormatFloat:
		vs = fmt.Sprintf("%f", math.Float64frombits(v.bits))
	case FormatBool:
		vs = strconv.FormatBool(v.bits != 0)
	case FormatStr:
		vs = v.strValue()
	}
	return v.Key() + "=" + vs
}
