package sensor

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/pkg/adv"
)

// ReportAll asks a sensor to report every value it knows.
const ReportAll uint32 = 0xFFFFFFFF

// Type identifies a vendor format. Values are part of the sensor id.
type Type uint8

const (
	TypeNone    Type = 0
	TypeXavax   Type = 1
	TypeASensor Type = 2
	TypeMi      Type = 3
	TypeBTHome  Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeXavax:
		return "xavax"
	case TypeASensor:
		return "asensor"
	case TypeMi:
		return "mi"
	case TypeBTHome:
		return "bthome"
	default:
		return "none"
	}
}

// Addr is a radio address in display order (most significant byte first).
type Addr [6]byte

// ParseAddr accepts the usual colon or dash separated MAC notation.
func ParseAddr(s string) (Addr, error) {
	var a Addr
	hw, err := net.ParseMAC(s)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(hw) != len(a) {
		return a, fmt.Errorf("invalid address %q: expected 6 bytes, got %d", s, len(hw))
	}
	copy(a[:], hw)
	return a, nil
}

func (a Addr) String() string {
	return strings.ToLower(net.HardwareAddr(a[:]).String())
}

// Reversed returns the address in over-the-air (little-endian) byte order.
func (a Addr) Reversed() Addr {
	var r Addr
	for i := range a {
		r[i] = a[len(a)-1-i]
	}
	return r
}

// Data is a single reading queued for publishing.
type Data struct {
	SID   uint32
	SubID uint16
	TS    time.Time
	Value float64
}

type dataJSON struct {
	SID   uint32   `json:"sid"`
	SubID uint16   `json:"subid"`
	TS    float64  `json:"ts"`
	Value *float64 `json:"v"`
}

// MarshalJSON renders the timestamp as fractional unix seconds and an
// unknown (NaN) value as null.
func (d Data) MarshalJSON() ([]byte, error) {
	j := dataJSON{
		SID:   d.SID,
		SubID: d.SubID,
		TS:    unixSeconds(d.TS),
	}
	if !math.IsNaN(d.Value) {
		j.Value = &d.Value
	}
	return json.Marshal(j)
}

func (d *Data) UnmarshalJSON(b []byte) error {
	var j dataJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	d.SID = j.SID
	d.SubID = j.SubID
	d.TS = fromUnixSeconds(j.TS)
	d.Value = math.NaN()
	if j.Value != nil {
		d.Value = *j.Value
	}
	return nil
}

func (d Data) String() string {
	return fmt.Sprintf("%08x/%d@%.3f=%.1f", d.SID, d.SubID, unixSeconds(d.TS), d.Value)
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMilli()) / 1000
}

func fromUnixSeconds(ts float64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ts*1000 + 0.5))
}

// Sensor is a device discovered over the air. Implementations are not safe
// for concurrent use.
type Sensor interface {
	Addr() Addr
	Type() Type
	TypeString() string
	SID() uint32
	RSSI() int
	LastSeen() time.Time
	LastReported() time.Time

	// Update consumes one advertisement. raw is the advertising payload as
	// received, ad is its parsed form (scan response included).
	Update(raw []byte, ad adv.Data, rssi int)

	// Report queues readings selected by the what bitmask.
	Report(what uint32)

	// TakeData drains queued readings.
	TakeData() []Data
}

// Options configure sensor construction.
type Options struct {
	// Clock defaults to time.Now.
	Clock func() time.Time

	// ReportOnChange queues readings for changed values right after Update.
	ReportOnChange bool

	Logger *logrus.Logger

	// BTHomeKey is the bind key for encrypted BTHome devices.
	BTHomeKey []byte
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	return o
}

// New tastes the advertisement against every known format and returns the
// first matching sensor, or nil.
func New(addr Addr, raw []byte, ad adv.Data, opts Options) Sensor {
	opts = opts.withDefaults()

	switch {
	case tasteASensor(raw):
		return newASensor(addr, opts)
	case tasteXavax(ad):
		return newXavax(addr, opts)
	case tasteMiATS(addr, ad):
		return newMiATS(addr, opts)
	case tasteMiPVVX(addr, ad):
		return newMiPVVX(addr, opts)
	case tasteBTHome(addr, ad, opts.BTHomeKey):
		return newBTHome(addr, opts)
	}
	return nil
}

// SID builds the stable sensor id from the type and the lower half of the
// address.
func SID(t Type, addr Addr) uint32 {
	return uint32(t)<<24 | uint32(addr[3])<<16 | uint32(addr[4])<<8 | uint32(addr[5])
}

// base carries the state shared by all variants.
type base struct {
	addr         Addr
	typ          Type
	opts         Options
	logger       *logrus.Entry
	rssi         int
	lastSeen     time.Time
	lastReported time.Time
	pending      []Data

	// report is the variant's Report, used by updateCommon.
	report func(what uint32)
}

func newBase(addr Addr, typ Type, opts Options) base {
	return base{
		addr: addr,
		typ:  typ,
		opts: opts,
		logger: opts.Logger.WithFields(logrus.Fields{
			"addr": addr.String(),
			"type": typ.String(),
		}),
	}
}

func (b *base) Addr() Addr              { return b.addr }
func (b *base) Type() Type              { return b.typ }
func (b *base) SID() uint32             { return SID(b.typ, b.addr) }
func (b *base) RSSI() int               { return b.rssi }
func (b *base) LastSeen() time.Time     { return b.lastSeen }
func (b *base) LastReported() time.Time { return b.lastReported }

func (b *base) TakeData() []Data {
	d := b.pending
	b.pending = nil
	return d
}

func (b *base) updateCommon(rssi int, changed uint32) {
	b.rssi = rssi
	b.lastSeen = b.opts.Clock()
	if changed != 0 && b.opts.ReportOnChange && b.report != nil {
		b.report(changed)
	}
}

func (b *base) reportData(subID uint16, v float64) {
	b.pending = append(b.pending, Data{
		SID:   b.SID(),
		SubID: subID,
		TS:    b.lastSeen,
		Value: v,
	})
}

func (b *base) reported(what uint32) {
	if what == ReportAll {
		b.lastReported = b.opts.Clock()
	}
}
