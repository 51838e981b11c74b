package bthome

import (
	"encoding/json"
	"fmt"
)

// Object IDs referenced by name elsewhere.
const (
	ObjectIDPacketID    uint8 = 0x00
	ObjectIDBattery     uint8 = 0x01
	ObjectIDTemperature uint8 = 0x02
	ObjectIDHumidity    uint8 = 0x03
	ObjectIDIlluminance uint8 = 0x05
	ObjectIDWindow      uint8 = 0x2D
	ObjectIDButton      uint8 = 0x3A
	ObjectIDDimmer      uint8 = 0x3C
	ObjectIDRotation    uint8 = 0x3F
	ObjectIDText        uint8 = 0x53
	ObjectIDRaw         uint8 = 0x54
)

// Category is the semantic class of an object.
type Category uint8

const (
	CategoryOther Category = iota
	CategoryPacketCounter
	CategorySensor
	CategoryBinarySensor
	CategoryEvent
)

func (c Category) String() string {
	switch c {
	case CategoryPacketCounter:
		return "packet_counter"
	case CategorySensor:
		return "sensor"
	case CategoryBinarySensor:
		return "binary_sensor"
	case CategoryEvent:
		return "event"
	default:
		return "other"
	}
}

// Format is the representation of a value, on the wire or after decoding.
type Format uint8

const (
	FormatNone Format = iota
	FormatUnsignedInt
	FormatSignedInt
	FormatFloat
	FormatBool
	FormatStr
)

func (f Format) String() string {
	switch f {
	case FormatUnsignedInt:
		return "uint"
	case FormatSignedInt:
		return "int"
	case FormatFloat:
		return "float"
	case FormatBool:
		return "bool"
	case FormatStr:
		return "str"
	default:
		return "none"
	}
}

// Object describes one BTHome object ID.
type Object struct {
	ID       uint8
	Category Category
	Name     string
	Format   Format
	Size     int // value width in bytes, 0 for length-prefixed strings
	Exponent int
	Unit     string
}

// https://bthome.io/format/
var objects = [...]Object{
	// Packet id
	{ObjectIDPacketID, CategoryPacketCounter, "packet_id", FormatUnsignedInt, 1, 0, ""},
	// Sensors
	{ObjectIDBattery, CategorySensor, "battery", FormatUnsignedInt, 1, 0, "%"},
	{0x02, CategorySensor, "temperature", FormatSignedInt, 2, -2, "\xC2\xB0 C"},
	{0x03, CategorySensor, "humidity", FormatUnsignedInt, 2, -2, "%"},
	{0x04, CategorySensor, "pressure", FormatUnsignedInt, 3, -2, "hPa"},
	{0x05, CategorySensor, "illuminance", FormatUnsignedInt, 3, -2, "lux"},
	{0x06, CategorySensor, "mass_kg", FormatUnsignedInt, 2, -2, "kg"},
	{0x07, CategorySensor, "mass_lb", FormatUnsignedInt, 2, -2, "lb"},
	{0x08, CategorySensor, "dewpoint", FormatSignedInt, 2, -2, "\xC2\xB0 C"},
	{0x09, CategorySensor, "count", FormatUnsignedInt, 1, 0, ""},
	{0x0A, CategorySensor, "energy", FormatUnsignedInt, 3, -3, "kWh"},
	{0x0B, CategorySensor, "power", FormatUnsignedInt, 3, -2, "W"},
	{0x0C, CategorySensor, "voltage", FormatUnsignedInt, 2, -3, "V"},
	{0x0D, CategorySensor, "pm2.5", FormatUnsignedInt, 2, 0, "ug/m3"},
	{0x0E, CategorySensor, "pm10", FormatUnsignedInt, 2, 0, "ug/m3"},
	{0x12, CategorySensor, "co2", FormatUnsignedInt, 2, 0, "ppm"},
	{0x13, CategorySensor, "tvoc", FormatUnsignedInt, 2, 0, "ug/m3"},
	{0x14, CategorySensor, "moisture", FormatUnsignedInt, 2, -2, "%"},
	{0x2E, CategorySensor, "humidity", FormatUnsignedInt, 1, 0, "%"},
	{0x2F, CategorySensor, "moisture", FormatUnsignedInt, 1, 0, "%"},
	{0x3D, CategorySensor, "count", FormatUnsignedInt, 2, 0, ""},
	{0x3E, CategorySensor, "count", FormatUnsignedInt, 4, 0, ""},
	{0x3F, CategorySensor, "rotation", FormatSignedInt, 2, -1, "\xC2\xB0"},
	{0x40, CategorySensor, "distance_mm", FormatUnsignedInt, 2, 0, "mm"},
	{0x41, CategorySensor, "distance_m", FormatUnsignedInt, 2, -1, "m"},
	{0x42, CategorySensor, "duration", FormatUnsignedInt, 3, -3, "s"},
	{0x43, CategorySensor, "current", FormatUnsignedInt, 2, -3, "A"},
	{0x44, CategorySensor, "speed", FormatUnsignedInt, 2, -2, "m/s"},
	{0x45, CategorySensor, "temperature", FormatSignedInt, 2, -1, "\xC2\xB0 C"},
	{0x46, CategorySensor, "uv_index", FormatUnsignedInt, 1, 0, ""},
	{0x47, CategorySensor, "volume", FormatUnsignedInt, 2, -1, "L"},
	{0x48, CategorySensor, "volume", FormatUnsignedInt, 2, 0, "mL"},
	{0x49, CategorySensor, "volume_flow_rate", FormatUnsignedInt, 2, -3, "m3/hr"},
	{0x4A, CategorySensor, "voltage", FormatUnsignedInt, 2, -1, "V"},
	{0x4B, CategorySensor, "gas", FormatUnsignedInt, 3, -3, "m3"},
	{0x4C, CategorySensor, "gas", FormatUnsignedInt, 4, -3, "m3"},
	{0x4D, CategorySensor, "energy", FormatUnsignedInt, 4, -3, "kWh"},
	{0x4E, CategorySensor, "volume", FormatUnsignedInt, 4, -3, "L"},
	{0x4F, CategorySensor, "water", FormatUnsignedInt, 4, -3, "L"},
	{0x50, CategorySensor, "timestamp", FormatUnsignedInt, 4, 0, ""},
	{0x51, CategorySensor, "acceleration", FormatUnsignedInt, 2, -3, "m/s2"},
	{0x52, CategorySensor, "gyroscope", FormatUnsignedInt, 2, -3, "\xC2\xB0/s"},
	// Binary sensors
	{0x0F, CategoryBinarySensor, "generic_boolean", FormatUnsignedInt, 1, 0, ""},
	{0x10, CategoryBinarySensor, "power_status", FormatUnsignedInt, 1, 0, ""},
	{0x11, CategoryBinarySensor, "opening", FormatUnsignedInt, 1, 0, ""},
	{0x15, CategoryBinarySensor, "battery_status", FormatUnsignedInt, 1, 0, ""},
	{0x16, CategoryBinarySensor, "battery_charging", FormatUnsignedInt, 1, 0, ""},
	{0x17, CategoryBinarySensor, "carbon_monoxide", FormatUnsignedInt, 1, 0, ""},
	{0x18, CategoryBinarySensor, "cold", FormatUnsignedInt, 1, 0, ""},
	{0x19, CategoryBinarySensor, "connectivity", FormatUnsignedInt, 1, 0, ""},
	{0x1A, CategoryBinarySensor, "door", FormatUnsignedInt, 1, 0, ""},
	{0x1B, CategoryBinarySensor, "garage_door", FormatUnsignedInt, 1, 0, ""},
	{0x1C, CategoryBinarySensor, "gas", FormatUnsignedInt, 1, 0, ""},
	{0x1D, CategoryBinarySensor, "heat", FormatUnsignedInt, 1, 0, ""},
	{0x1E, CategoryBinarySensor, "light", FormatUnsignedInt, 1, 0, ""},
	{0x1F, CategoryBinarySensor, "lock", FormatUnsignedInt, 1, 0, ""},
	{0x20, CategoryBinarySensor, "moisture", FormatUnsignedInt, 1, 0, ""},
	{0x21, CategoryBinarySensor, "motion", FormatUnsignedInt, 1, 0, ""},
	{0x22, CategoryBinarySensor, "moving", FormatUnsignedInt, 1, 0, ""},
	{0x23, CategoryBinarySensor, "occupancy", FormatUnsignedInt, 1, 0, ""},
	{0x24, CategoryBinarySensor, "plug", FormatUnsignedInt, 1, 0, ""},
	{0x25, CategoryBinarySensor, "presence", FormatUnsignedInt, 1, 0, ""},
	{0x26, CategoryBinarySensor, "problem", FormatUnsignedInt, 1, 0, ""},
	{0x27, CategoryBinarySensor, "running", FormatUnsignedInt, 1, 0, ""},
	{0x28, CategoryBinarySensor, "safety", FormatUnsignedInt, 1, 0, ""},
	{0x29, CategoryBinarySensor, "smoke", FormatUnsignedInt, 1, 0, ""},
	{0x2A, CategoryBinarySensor, "sound", FormatUnsignedInt, 1, 0, ""},
	{0x2B, CategoryBinarySensor, "tamper", FormatUnsignedInt, 1, 0, ""},
	{0x2C, CategoryBinarySensor, "vibration", FormatUnsignedInt, 1, 0, ""},
	{0x2D, CategoryBinarySensor, "window", FormatUnsignedInt, 1, 0, ""},
	// Events
	{ObjectIDButton, CategoryEvent, "button", FormatUnsignedInt, 1, 0, ""},
	{ObjectIDDimmer, CategoryEvent, "dimmer", FormatUnsignedInt, 2, 0, ""},
	// String-valued objects
	{ObjectIDText, CategoryOther, "text", FormatStr, 0, 0, ""},
	{ObjectIDRaw, CategoryOther, "raw", FormatStr, 0, 0, ""},
	// Device information
	{0xF0, CategoryOther, "device_type_id", FormatUnsignedInt, 2, 0, ""},
	{0xF1, CategoryOther, "firmware_version", FormatUnsignedInt, 4, 0, ""},
	{0xF2, CategoryOther, "firmware_version", FormatUnsignedInt, 3, 0, ""},
}

// Lookup returns the descriptor for id.
func Lookup(id uint8) (Object, error) {
	for i := range objects {
		if objects[i].ID == id {
			return objects[i], nil
		}
	}
	return Object{}, newError(UnknownObjectID, "unknown object id (0x%02X)", id)
}

// LookupName returns the order-th object (0-based, in table order) named name.
func LookupName(name string, order int) (Object, error) {
	n := 0
	for i := range objects {
		if objects[i].Name != name {
			continue
		}
		if n == order {
			return objects[i], nil
		}
		n++
	}
	return Object{}, newError(UnknownObjectID, "unknown object %q (#%d)", name, order)
}

// Objects returns a copy of the registry in table order.
func Objects() []Object {
	res := make([]Object, len(objects))
	copy(res, objects[:])
	return res
}

// Name returns the object name, or "unknown".
func Name(id uint8) string {
	if obj, err := Lookup(id); err == nil {
		return obj.Name
	}
	return "unknown"
}

// ID returns the ID of the order-th object named name, or 0xFF.
func ID(name string, order int) uint8 {
	if obj, err := LookupName(name, order); err == nil {
		return obj.ID
	}
	return 0xFF
}

func IsSensor(id uint8) bool {
	return CategoryOf(id) == CategorySensor
}

func IsBinarySensor(id uint8) bool {
	return CategoryOf(id) == CategoryBinarySensor
}

func IsEvent(id uint8) bool {
	return CategoryOf(id) == CategoryEvent
}

// CategoryOf returns the category of id, CategoryOther when unknown.
func CategoryOf(id uint8) Category {
	if obj, err := Lookup(id); err == nil {
		return obj.Category
	}
	return CategoryOther
}

// Unit returns the unit of id, empty when unknown or unitless.
func Unit(id uint8) string {
	if obj, err := Lookup(id); err == nil {
		return obj.Unit
	}
	return ""
}

// Precision returns the number of decimals worth displaying for id.
func Precision(id uint8) int {
	obj, err := Lookup(id)
	if err != nil || obj.Exponent >= 0 {
		return 0
	}
	return -obj.Exponent
}

// Kind classifies id for consumers: "sensor", "binary_sensor", "button",
// "dimmer" or "other".
func Kind(id uint8) string {
	return kindOf(id, CategoryOf(id))
}

func kindOf(id uint8, c Category) string {
	switch c {
	case CategorySensor:
		return "sensor"
	case CategoryBinarySensor:
		return "binary_sensor"
	case CategoryEvent:
		switch id {
		case ObjectIDButton:
			return "button"
		case ObjectIDDimmer:
			return "dimmer"
		}
	}
	return "other"
}

// MarshalJSON renders the descriptor summary used by tooling.
func (o Object) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID   uint8  `json:"obj_id"`
		Name string `json:"obj_name"`
		Type string `json:"type"`
		Unit string `json:"unit"`
	}{o.ID, o.Name, kindOf(o.ID, o.Category), o.Unit})
}

func (o Object) String() string {
	return fmt.Sprintf("0x%02X %s (%s %s/%d 1e%d %s)", o.ID, o.Name, o.Category, o.Format, o.Size, o.Exponent, o.Unit)
}

// ButtonEvent is the value of a button object.
type ButtonEvent uint8

const (
	ButtonNone            ButtonEvent = 0x00
	ButtonPress           ButtonEvent = 0x01
	ButtonDoublePress     ButtonEvent = 0x02
	ButtonTriplePress     ButtonEvent = 0x03
	ButtonLongPress       ButtonEvent = 0x04
	ButtonLongDoublePress ButtonEvent = 0x05
	ButtonLongTriplePress ButtonEvent = 0x06
	ButtonHoldPress       ButtonEvent = 0x80
	ButtonButtonPress     ButtonEvent = 0xFE
)

func (e ButtonEvent) String() string {
	switch e {
	case ButtonNone:
		return "none"
	case ButtonPress:
		return "press"
	case ButtonDoublePress:
		return "double_press"
	case ButtonTriplePress:
		return "triple_press"
	case ButtonLongPress:
		return "long_press"
	case ButtonLongDoublePress:
		return "long_double_press"
	case ButtonLongTriplePress:
		return "long_triple_press"
	case ButtonHoldPress:
		return "hold_press"
	case ButtonButtonPress:
		return "button_press"
	}
	return fmt.Sprintf("button(0x%02x)", uint8(e))
}

// DimmerEvent is the low byte of a dimmer object; the high byte carries steps.
type DimmerEvent uint8

const (
	DimmerNone        DimmerEvent = 0x00
	DimmerRotateLeft  DimmerEvent = 0x01
	DimmerRotateRight DimmerEvent = 0x02
)

func (e DimmerEvent) String() string {
	switch e {
	case DimmerNone:
		return "none"
	case DimmerRotateLeft:
		return "rotate_left"
	case DimmerRotateRight:
		return "rotate_right"
	}
	return fmt.Sprintf("dimmer(0x%02x)", uint8(e))
}
