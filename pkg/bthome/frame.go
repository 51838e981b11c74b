package bthome

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/srg/btrelay/internal/cursor"
	"github.com/srg/btrelay/pkg/adv"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SupportedVersion is the only BTHome version accepted.
const SupportedVersion = 2

// ServiceUUID is the 16-bit service UUID carrying BTHome payloads.
var ServiceUUID = ble.UUID16(0xFCD2)

// Header is the device information byte opening every payload.
type Header uint8

func (h Header) Version() int {
	return int(h>>5) & 0x07
}

func (h Header) TriggerBased() bool {
	return h&0x04 != 0
}

func (h Header) Encrypted() bool {
	return h&0x01 != 0
}

// Frame is one decoded BTHome payload.
type Frame struct {
	Addr    string
	Header  Header
	Payload []byte // object records following the header
	Values  []Value
}

// Decode decodes a BTHome service data payload received from addr. key is
// the device's bind key, nil for unencrypted devices. The payload is copied;
// the frame never references data.
func Decode(addr string, data []byte, key []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, newError(NotFound, "no BTHome data")
	}
	h := Header(data[0])
	if h.Version() != SupportedVersion {
		return nil, newError(UnsupportedVersion, "unsupported BTHome version (%d)", h.Version())
	}
	if h.Encrypted() {
		// Decryption is not implemented.
		return nil, newError(Encrypted, "encrypted BTHome data is not supported")
	}
	if len(key) != 0 {
		return nil, newError(Unencrypted, "unencrypted data for encrypted BTHome device")
	}

	f := &Frame{
		Addr:    addr,
		Header:  h,
		Payload: append([]byte(nil), data[1:]...),
	}
	if err := f.decodeValues(); err != nil {
		return nil, err
	}
	return f, nil
}

// DecodeAdvertisement decodes the BTHome service data found in ad.
func DecodeAdvertisement(addr string, ad adv.Data, key []byte) (*Frame, error) {
	sd := ad.ServiceData(ServiceUUID)
	if len(sd) == 0 {
		return nil, newError(NotFound, "no BTHome service data")
	}
	return Decode(addr, sd, key)
}

func (f *Frame) decodeValues() error {
	c := cursor.New(f.Payload)
	var values []Value
	for c.Len() >= 2 {
		v, _, err := DecodeOne(&c)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
		for i := range values {
			if values[i].ObjectID == v.ObjectID {
				v.Index++
			}
		}
		values = append(values, v)
	}
	f.Values = values
	return nil
}

// Value returns the index-th value of object id.
func (f *Frame) Value(id uint8, index uint8) (Value, error) {
	for _, v := range f.Values {
		if v.ObjectID == id && v.Index == index {
			return v, nil
		}
	}
	return Value{}, newError(NotFound, "no value %s:%d", Name(id), index)
}

// PacketID returns the packet counter value, if the frame carries one.
func (f *Frame) PacketID() (uint32, bool) {
	v, err := f.Value(ObjectIDPacketID, 0)
	if err != nil {
		return 0, false
	}
	return v.Uint()
}

func (f *Frame) String() string {
	payload := cursor.New(f.Payload)
	enc := 0
	if f.Header.Encrypted() {
		enc = 1
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "BTHomeData(%s): v %d enc %d '%s' [", f.Addr, f.Header.Version(), enc, payload.HexSep(" "))
	for i, v := range f.Values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// MarshalJSON renders the frame with its values keyed "name:index" in
// payload order.
func (f *Frame) MarshalJSON() ([]byte, error) {
	values := orderedmap.New[string, any]()
	for _, v := range f.Values {
		values.Set(v.Key(), v.Interface())
	}
	return json.Marshal(struct {
		Addr         string                              `json:"addr"`
		Version      int                                 `json:"version"`
		Encrypted    bool                                `json:"encrypted"`
		TriggerBased bool                                `json:"trigger_based"`
		Values       *orderedmap.OrderedMap[string, any] `json:"values"`
	}{f.Addr, f.Header.Version(), f.Header.Encrypted(), f.Header.TriggerBased(), values})
}
