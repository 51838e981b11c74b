package bthome

import (
	"math"
	"testing"

	"github.com/srg/btrelay/internal/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, b []byte) (Value, int, cursor.Cursor) {
	t.Helper()
	c := cursor.New(b)
	v, n, err := DecodeOne(&c)
	require.NoError(t, err)
	return v, n, c
}

func TestDecodeOneVectors(t *testing.T) {
	// GOAL: Verify the reference vectors from the BTHome format description
	//
	// TEST SCENARIO: temperature 0x09C4 at 1e-2 → 25.0; battery 0x5A → 90.0

	v, n, c := decode(t, []byte{0x02, 0xC4, 0x09})
	assert.Equal(t, 3, n)
	assert.True(t, c.Empty())
	f, ok := v.Float()
	require.True(t, ok, "sensor values MUST decode to float")
	assert.Equal(t, 25.0, f)
	assert.Equal(t, CategorySensor, v.Category)

	v, n, _ = decode(t, []byte{0x01, 0x5A})
	assert.Equal(t, 2, n)
	f, ok = v.Float()
	require.True(t, ok)
	assert.Equal(t, 90.0, f)
	_, ok = v.Uint()
	assert.False(t, ok, "only the active representation MUST be readable")
}

func TestDecodeOneSensorScaling(t *testing.T) {
	tests := []struct {
		name string
		rec  []byte
		raw  int64
	}{
		{"u8 max", []byte{0x01, 0xFF}, 255},
		{"s16 min", []byte{0x02, 0x00, 0x80}, -32768},
		{"s16 negative", []byte{0x3F, 0xF6, 0xFF}, -10},
		{"u16", []byte{0x03, 0xBF, 0x13}, 5055},
		{"u24 max", []byte{0x04, 0xFF, 0xFF, 0xFF}, 0xFFFFFF},
		{"u24 high bit stays unsigned", []byte{0x0A, 0x00, 0x00, 0x80}, 0x800000},
		{"u32 max", []byte{0x3E, 0xFF, 0xFF, 0xFF, 0xFF}, 0xFFFFFFFF},
		{"u32 scaled", []byte{0x4D, 0x40, 0xE2, 0x01, 0x00}, 123456},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := Lookup(tt.rec[0])
			require.NoError(t, err)

			v, n, _ := decode(t, tt.rec)
			assert.Equal(t, 1+obj.Size, n)
			f, ok := v.Float()
			require.True(t, ok)

			expected := float64(tt.raw) * math.Pow10(obj.Exponent)
			assert.InDelta(t, expected, f, 1e-9*math.Max(1, math.Abs(expected)))
		})
	}
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, int32(-1), signExtend(0xFF, 1))
	assert.Equal(t, int32(127), signExtend(0x7F, 1))
	assert.Equal(t, int32(-32768), signExtend(0x8000, 2))
	assert.Equal(t, int32(-8388608), signExtend(0x800000, 3))
	assert.Equal(t, int32(8388607), signExtend(0x7FFFFF, 3))
	assert.Equal(t, int32(-1), signExtend(0xFFFFFFFF, 4))
}

func TestDecodeOneCategories(t *testing.T) {
	v, _, _ := decode(t, []byte{0x21, 0x02})
	b, ok := v.Bool()
	require.True(t, ok, "binary sensors MUST decode to bool")
	assert.True(t, b)

	v, _, _ = decode(t, []byte{0x2D, 0x00})
	b, ok = v.Bool()
	require.True(t, ok)
	assert.False(t, b)

	v, _, _ = decode(t, []byte{0x3A, 0x04})
	u, ok := v.Uint()
	require.True(t, ok, "events MUST keep their integer format")
	assert.Equal(t, uint32(ButtonLongPress), u)
	assert.Equal(t, CategoryEvent, v.Category)

	v, n, _ := decode(t, []byte{0x3C, 0x01, 0x03})
	assert.Equal(t, 3, n)
	u, _ = v.Uint()
	assert.Equal(t, uint32(0x0301), u)
	assert.Equal(t, DimmerRotateLeft, DimmerEvent(u&0xFF))

	v, n, _ = decode(t, []byte{0xF2, 0x01, 0x02, 0x03})
	assert.Equal(t, 4, n)
	u, _ = v.Uint()
	assert.Equal(t, uint32(0x030201), u)

	v, _, _ = decode(t, []byte{0x00, 0x09})
	u, ok = v.Uint()
	require.True(t, ok)
	assert.Equal(t, uint32(9), u)
	assert.Equal(t, CategoryPacketCounter, v.Category)
}

func TestDecodeOneString(t *testing.T) {
	// GOAL: Verify strings are truncated to the inline capacity while the
	// whole record is consumed
	//
	// TEST SCENARIO: text with declared length 10 followed by a battery record

	rec := append([]byte{0x53, 0x0A}, []byte("abcdefghij")...)
	rec = append(rec, 0x01, 0x5A)

	c := cursor.New(rec)
	v, n, err := DecodeOne(&c)
	require.NoError(t, err)
	assert.Equal(t, 12, n, "cursor MUST advance past the full record")
	assert.Equal(t, 2, c.Len())

	s, ok := v.Str()
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), s)
	assert.Len(t, s, 3)
	assert.Equal(t, "text:0=abc", v.String())

	next, _, err := DecodeOne(&c)
	require.NoError(t, err)
	assert.Equal(t, ObjectIDBattery, next.ObjectID)

	v, n, _ = decode(t, []byte{0x54, 0x02, 0xDE, 0xAD})
	assert.Equal(t, 4, n)
	assert.Equal(t, "raw:0=dead", v.String())

	v, n, _ = decode(t, []byte{0x53, 0x00})
	assert.Equal(t, 2, n)
	s, ok = v.Str()
	assert.True(t, ok)
	assert.Empty(t, s)
}

func TestDecodeOneErrors(t *testing.T) {
	tests := []struct {
		name     string
		rec      []byte
		expected error
		msg      string
	}{
		{"single byte", []byte{0x02}, ErrTruncatedRecord, "1 available"},
		{"short value", []byte{0x02, 0xC4}, ErrTruncatedRecord, "needs 3 bytes, 2 available"},
		{"short string", []byte{0x53, 0x05, 'a'}, ErrTruncatedRecord, "needs 7 bytes, 3 available"},
		{"unknown id", []byte{0xAB, 0x01}, ErrUnknownObjectID, "0xAB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cursor.New(tt.rec)
			_, n, err := DecodeOne(&c)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Equal(t, 0, n)
			assert.Equal(t, len(tt.rec), c.Len(), "failed decode MUST NOT consume input")
		})
	}
}

func TestValueEqual(t *testing.T) {
	assert.True(t, NewFloat(0x02, CategorySensor, 25).Equal(NewFloat(0x45, CategorySensor, 25)))
	assert.False(t, NewFloat(0x02, CategorySensor, 25).Equal(NewFloat(0x02, CategorySensor, 25.01)))
	assert.False(t, NewUint(0xF0, CategoryOther, 1).Equal(NewInt(0xF0, CategoryOther, 1)), "format MUST match")
	assert.True(t, NewBool(0x21, CategoryBinarySensor, true).Equal(NewBool(0x21, CategoryBinarySensor, true)))
	assert.True(t, NewStr(0x53, CategoryOther, []byte("abcdef")).Equal(NewStr(0x53, CategoryOther, []byte("abcxyz"))))
	assert.False(t, NewStr(0x53, CategoryOther, []byte("ab")).Equal(NewStr(0x53, CategoryOther, []byte("abc"))))
	assert.True(t, Value{}.Equal(Value{}))
}

func TestValueString(t *testing.T) {
	v := NewFloat(0x02, CategorySensor, 25)
	v.Index = 1
	assert.Equal(t, "temperature:1=25.000000", v.String())
	assert.Equal(t, "firmware_version:0=7", NewUint(0xF1, CategoryOther, 7).String())
	assert.Equal(t, "motion:0=true", NewBool(0x21, CategoryBinarySensor, true).String())
	assert.Equal(t, "unknown:0=-3", NewInt(0xAB, CategoryOther, -3).String())
	assert.Equal(t, "unknown:0=none", Value{ObjectID: 0xAB}.String())

	n, ok := NewBool(0x21, CategoryBinarySensor, true).Number()
	assert.True(t, ok)
	assert.Equal(t, 1.0, n)
	_, ok = NewStr(0x53, CategoryOther, nil).Number()
	assert.False(t, ok)
}
