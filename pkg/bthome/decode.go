package bthome

import (
	"math"

	"github.com/srg/btrelay/internal/cursor"
)

// DecodeOne decodes the object record at the front of c and advances c past
// it. It returns the value and the number of bytes consumed. On error c is
// left untouched.
func DecodeOne(c *cursor.Cursor) (Value, int, error) {
	if c.Len() < 2 {
		return Value{}, 0, newError(TruncatedRecord, "record needs at least 2 bytes, %d available", c.Len())
	}
	id, _ := c.At(0)
	obj, err := Lookup(id)
	if err != nil {
		return Value{}, 0, err
	}

	valueLen := obj.Size
	if obj.Format == FormatStr {
		n, _ := c.At(1)
		valueLen = 1 + int(n)
	}
	recordLen := 1 + valueLen
	if c.Len() < recordLen {
		return Value{}, 0, newError(TruncatedRecord, "object 0x%02X needs %d bytes, %d available", id, recordLen, c.Len())
	}
	record := c.Substr(0, recordLen)

	if obj.Format == FormatStr {
		s := record.Substr(2, recordLen-2)
		v := NewStr(id, obj.Category, s.Bytes())
		_ = c.ChopLeft(recordLen)
		return v, recordLen, nil
	}

	u, ok := record.Uint(1, obj.Size)
	if !ok {
		return Value{}, 0, newError(InvalidFormat, "object 0x%02X has unsupported width %d", id, obj.Size)
	}
	var raw int64
	switch obj.Format {
	case FormatSignedInt:
		raw = int64(signExtend(u, obj.Size))
	case FormatUnsignedInt:
		raw = int64(u)
	default:
		return Value{}, 0, newError(InvalidFormat, "object 0x%02X has wire format %s", id, obj.Format)
	}
	_ = c.ChopLeft(recordLen)

	switch obj.Category {
	case CategorySensor:
		return NewFloat(id, obj.Category, scale(raw, obj.Exponent)), recordLen, nil
	case CategoryBinarySensor:
		return NewBool(id, obj.Category, raw != 0), recordLen, nil
	}
	if obj.Format == FormatSignedInt {
		return NewInt(id, obj.Category, int32(raw)), recordLen, nil
	}
	return NewUint(id, obj.Category, uint32(raw)), recordLen, nil
}

// signExtend widens a little-endian value of size bytes to int32, treating
// its top bit as the sign. 3-byte values are extended like any other width.
func signExtend(u uint32, size int) int32 {
	shift := 32 - 8*size
	return int32(u<<shift) >> shift
}

// scale returns raw * 10^exp. Negative exponents divide so that results such
// as 2291e-2 round to the nearest float64.
func scale(raw int64, exp int) float64 {
	if exp < 0 {
		return float64(raw) / math.Pow10(-exp)
	}
	return float64(raw) * math.Pow10(exp)
}
