package bthome

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupRoundTrip(t *testing.T) {
	seen := map[uint8]bool{}
	for _, obj := range Objects() {
		assert.False(t, seen[obj.ID], "object id 0x%02X MUST be unique", obj.ID)
		seen[obj.ID] = true

		got, err := Lookup(obj.ID)
		require.NoError(t, err)
		assert.Equal(t, obj.ID, got.ID)
		assert.Equal(t, obj, got)

		if obj.Format == FormatStr {
			assert.Equal(t, 0, obj.Size)
		} else {
			assert.True(t, obj.Size >= 1 && obj.Size <= 4, "object 0x%02X width MUST be 1..4", obj.ID)
		}
		assert.LessOrEqual(t, obj.Exponent, 0)
	}
	assert.Len(t, seen, 77)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup(0xAB)
	assert.ErrorIs(t, err, ErrUnknownObjectID)
	assert.Contains(t, err.Error(), "0xAB")

	// derived queries degrade to safe defaults
	assert.Equal(t, "unknown", Name(0xAB))
	assert.Equal(t, CategoryOther, CategoryOf(0xAB))
	assert.Equal(t, "", Unit(0xAB))
	assert.Equal(t, 0, Precision(0xAB))
	assert.False(t, IsSensor(0xAB))
	assert.False(t, IsBinarySensor(0xAB))
	assert.False(t, IsEvent(0xAB))
	assert.Equal(t, "other", Kind(0xAB))
}

func TestLookupName(t *testing.T) {
	tests := []struct {
		name     string
		order    int
		expected uint8
	}{
		{"temperature", 0, 0x02},
		{"temperature", 1, 0x45},
		{"humidity", 0, 0x03},
		{"humidity", 1, 0x2E},
		{"count", 2, 0x3E},
		{"firmware_version", 1, 0xF2},
		{"temperature", 2, 0xFF},
		{"no_such_object", 0, 0xFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ID(tt.name, tt.order))
		})
	}

	_, err := LookupName("temperature", 2)
	assert.ErrorIs(t, err, ErrUnknownObjectID)
}

func TestDerivedQueries(t *testing.T) {
	assert.True(t, IsSensor(0x02))
	assert.True(t, IsBinarySensor(0x2D))
	assert.True(t, IsEvent(ObjectIDButton))
	assert.Equal(t, CategoryPacketCounter, CategoryOf(ObjectIDPacketID))

	assert.Equal(t, 2, Precision(0x02))
	assert.Equal(t, 1, Precision(0x45))
	assert.Equal(t, 3, Precision(0x0A))
	assert.Equal(t, 0, Precision(0x01))

	assert.Equal(t, "%", Unit(0x03))
	assert.Equal(t, "° C", Unit(0x02))

	assert.Equal(t, "sensor", Kind(0x02))
	assert.Equal(t, "binary_sensor", Kind(0x21))
	assert.Equal(t, "button", Kind(ObjectIDButton))
	assert.Equal(t, "dimmer", Kind(ObjectIDDimmer))
	assert.Equal(t, "other", Kind(ObjectIDPacketID))
	assert.Equal(t, "other", Kind(ObjectIDText))
}

func TestObjectsIsACopy(t *testing.T) {
	objs := Objects()
	objs[0].Name = "changed"
	assert.Equal(t, "packet_id", Name(ObjectIDPacketID))
}

func TestObjectMarshalJSON(t *testing.T) {
	obj, err := Lookup(0x02)
	require.NoError(t, err)
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"obj_id":2,"obj_name":"temperature","type":"sensor","unit":"° C"}`, string(data))

	obj, err = Lookup(ObjectIDDimmer)
	require.NoError(t, err)
	data, err = json.Marshal(obj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"obj_id":60,"obj_name":"dimmer","type":"dimmer","unit":""}`, string(data))
}

func TestEventStrings(t *testing.T) {
	assert.Equal(t, "long_double_press", ButtonLongDoublePress.String())
	assert.Equal(t, "hold_press", ButtonHoldPress.String())
	assert.Equal(t, "button_press", ButtonButtonPress.String())
	assert.Equal(t, "button(0x07)", ButtonEvent(7).String())
	assert.Equal(t, "rotate_right", DimmerRotateRight.String())
	assert.Equal(t, "dimmer(0x09)", DimmerEvent(9).String())
}
