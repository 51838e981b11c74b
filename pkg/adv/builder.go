package adv

import (
	"github.com/go-ble/ble"
)

// Builder assembles an advertisement payload element by element. Services
// are collected separately and emitted as incomplete lists, one per UUID
// width, after all other elements.
type Builder struct {
	maxLen   int
	elements []Element
	services []ble.UUID
}

// NewBuilder creates a builder limited to maxLen bytes. A maxLen of zero or
// less means no limit.
func NewBuilder(maxLen int) *Builder {
	return &Builder{maxLen: maxLen}
}

// Add appends an element. It returns false, leaving the builder unchanged,
// if the element does not fit.
func (b *Builder) Add(t Type, payload []byte) bool {
	if !b.fits(b.Size() + 2 + len(payload)) {
		return false
	}
	if 1+len(payload) > 0xff {
		return false
	}
	b.elements = append(b.elements, Element{Type: t, Payload: append([]byte(nil), payload...)})
	return true
}

// AddFlags appends a flags element.
func (b *Builder) AddFlags(flags uint8) bool {
	return b.Add(TypeFlags, []byte{flags})
}

// AddName appends a complete or shortened local name.
func (b *Builder) AddName(name string, full bool) bool {
	if full {
		return b.Add(TypeFullName, []byte(name))
	}
	return b.Add(TypeShortName, []byte(name))
}

// AddTxPower appends a TX power level element.
func (b *Builder) AddTxPower(dbm int8) bool {
	return b.Add(TypePowerLevel, []byte{byte(dbm)})
}

// AddVendorSpecific appends a vendor-specific element. value starts with the
// little-endian company ID.
func (b *Builder) AddVendorSpecific(value []byte) bool {
	return b.Add(TypeVendorSpecific, value)
}

// AddServiceData appends a service data element for uuid.
func (b *Builder) AddServiceData(uuid ble.UUID, data []byte) bool {
	t, ok := serviceDataType(uuid.Len())
	if !ok {
		return false
	}
	payload := make([]byte, 0, uuid.Len()+len(data))
	payload = append(payload, uuid...)
	payload = append(payload, data...)
	return b.Add(t, payload)
}

// AddService registers a service UUID. Duplicates are accepted and ignored.
func (b *Builder) AddService(uuid ble.UUID) bool {
	if _, ok := serviceDataType(uuid.Len()); !ok {
		return false
	}
	for _, u := range b.services {
		if u.Equal(uuid) {
			return true
		}
	}
	b.services = append(b.services, ble.UUID(append([]byte(nil), uuid...)))
	if !b.fits(b.Size()) {
		b.services = b.services[:len(b.services)-1]
		return false
	}
	return true
}

// Size returns the encoded payload size.
func (b *Builder) Size() int {
	total := 0
	for _, e := range b.elements {
		total += 2 + len(e.Payload)
	}
	for _, e := range b.serviceElements() {
		total += 2 + len(e.Payload)
	}
	return total
}

// Elements returns the elements Build would encode, services last.
func (b *Builder) Elements() Data {
	res := make(Data, 0, len(b.elements)+3)
	res = append(res, b.elements...)
	return append(res, b.serviceElements()...)
}

// Build encodes the payload.
func (b *Builder) Build() []byte {
	out := make([]byte, 0, b.Size())
	for _, e := range b.Elements() {
		out = append(out, byte(1+len(e.Payload)), byte(e.Type))
		out = append(out, e.Payload...)
	}
	return out
}

func (b *Builder) fits(size int) bool {
	return b.maxLen <= 0 || size <= b.maxLen
}

func (b *Builder) serviceElements() []Element {
	var s16, s32, s128 []byte
	for _, u := range b.services {
		switch u.Len() {
		case 2:
			s16 = append(s16, u...)
		case 4:
			s32 = append(s32, u...)
		case 16:
			s128 = append(s128, u...)
		}
	}
	var res []Element
	if len(s16) > 0 {
		res = append(res, Element{Type: TypeService16Incomplete, Payload: s16})
	}
	if len(s32) > 0 {
		res = append(res, Element{Type: TypeService32Incomplete, Payload: s32})
	}
	if len(s128) > 0 {
		res = append(res, Element{Type: TypeService128Incomplete, Payload: s128})
	}
	return res
}
