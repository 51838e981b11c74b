package sensor

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/srg/btrelay/pkg/adv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xavaxAdv(t *testing.T, temp, tgt, batt, state uint8) ([]byte, adv.Data) {
	return build(t, func(b *adv.Builder) {
		require.True(t, b.AddService(XavaxService))
		require.True(t, b.AddVendorSpecific([]byte{temp, tgt, batt, 0x00, state, 0xff, 0x34, 0x12}))
	})
}

func asensorAdv(temp int8, moving, batt uint8) []byte {
	raw := []byte{
		0x02, 0x01, 0x06, 0x03, 0x03, 0xf5, 0xfe, 0x13, 0xff,
		0xd2, 0x00,
		0xa4, 0xc1, 0x38, 0x12, 0x34, 0x56,
		0x02, byte(temp), moving,
		0x01, 0x02, 0x03,
		0x05, 0x06, batt, 0xc5,
	}
	return raw
}

func miATSAdv(t *testing.T, mac Addr, temp int16, rh, batt, counter uint8) ([]byte, adv.Data) {
	d := make([]byte, miATSLen)
	copy(d, mac[:])
	binary.BigEndian.PutUint16(d[6:], uint16(temp))
	d[8] = rh
	d[9] = batt
	binary.BigEndian.PutUint16(d[10:], 2950)
	d[12] = counter
	return build(t, func(b *adv.Builder) {
		require.True(t, b.AddServiceData(EnvironmentalSensingService, d))
	})
}

func miPVVXAdv(t *testing.T, mac Addr, temp int16, rh uint16, batt, counter uint8) ([]byte, adv.Data) {
	d := make([]byte, miPVVXLen)
	r := mac.Reversed()
	copy(d, r[:])
	binary.LittleEndian.PutUint16(d[6:], uint16(temp))
	binary.LittleEndian.PutUint16(d[8:], rh)
	binary.LittleEndian.PutUint16(d[10:], 2950)
	d[12] = batt
	d[13] = counter
	d[14] = 0x04
	return build(t, func(b *adv.Builder) {
		require.True(t, b.AddServiceData(EnvironmentalSensingService, d))
	})
}

func subIDs(data []Data) []uint16 {
	res := make([]uint16, 0, len(data))
	for _, d := range data {
		res = append(res, d.SubID)
	}
	return res
}

func TestBTHomeChangeTracking(t *testing.T) {
	// GOAL: Verify the BTHome adapter reports only the values that changed
	//
	// TEST SCENARIO: first frame → all sensor values; same packet id → dropped;
	// new packet id with one changed value → only that value

	clock := newTestClock()
	raw, ad := bthomeAdv(t, 0x40, 0x00, 0x01, 0x02, 0xc4, 0x09, 0x03, 0xbf, 0x13)
	s := New(testAddr, raw, ad, testOptions(clock))
	require.NotNil(t, s)

	s.Update(raw, ad, -60)
	data := s.TakeData()
	assert.Equal(t, []uint16{0x0200, 0x0300}, subIDs(data), "packet id MUST NOT be reported")
	require.Len(t, data, 2)
	assert.Equal(t, 25.0, data[0].Value)
	assert.InDelta(t, 50.55, data[1].Value, 1e-9)
	assert.Equal(t, SID(TypeBTHome, testAddr), data[0].SID)
	assert.Equal(t, clock.Now(), data[0].TS)

	// retransmission with the same packet id
	clock.Advance(time.Second)
	raw, ad = bthomeAdv(t, 0x40, 0x00, 0x01, 0x02, 0xc5, 0x09, 0x03, 0xbf, 0x13)
	s.Update(raw, ad, -55)
	assert.Empty(t, s.TakeData(), "duplicate packet MUST be discarded")
	assert.Equal(t, -60, s.RSSI())
	assert.Equal(t, clock.Now().Add(-time.Second), s.LastSeen())

	clock.Advance(time.Second)
	raw, ad = bthomeAdv(t, 0x40, 0x00, 0x02, 0x02, 0xc4, 0x09, 0x03, 0xc0, 0x13)
	s.Update(raw, ad, -58)
	data = s.TakeData()
	require.Len(t, data, 1)
	assert.Equal(t, uint16(0x0300), data[0].SubID)
	assert.InDelta(t, 50.56, data[0].Value, 1e-9)
	assert.Equal(t, -58, s.RSSI())

	s.Report(ReportAll)
	assert.Equal(t, []uint16{0x0200, 0x0300}, subIDs(s.TakeData()))
	assert.Equal(t, clock.Now(), s.LastReported())
}

func TestBTHomeRepeatedObjects(t *testing.T) {
	clock := newTestClock()
	raw, ad := bthomeAdv(t, 0x40, 0x02, 0xc4, 0x09, 0x02, 0x10, 0x0e)
	s := New(testAddr, raw, ad, testOptions(clock))
	require.NotNil(t, s)

	s.Update(raw, ad, -60)
	data := s.TakeData()
	assert.Equal(t, []uint16{0x0200, 0x0201}, subIDs(data))

	// only the second temperature moves
	raw, ad = bthomeAdv(t, 0x40, 0x02, 0xc4, 0x09, 0x02, 0x11, 0x0e)
	s.Update(raw, ad, -60)
	assert.Equal(t, []uint16{0x0201}, subIDs(s.TakeData()))

	// no packet id, nothing changed
	s.Update(raw, ad, -60)
	assert.Empty(t, s.TakeData())
}

func TestBTHomeIgnoresNonSensorValues(t *testing.T) {
	clock := newTestClock()
	raw, ad := bthomeAdv(t, 0x44, 0x3a, 0x01, 0x2d, 0x01, 0x01, 0x5a)
	s := New(testAddr, raw, ad, testOptions(clock))
	require.NotNil(t, s)

	s.Update(raw, ad, -60)
	assert.Equal(t, []uint16{0x0100}, subIDs(s.TakeData()), "events and binary sensors MUST NOT be reported")
}

func TestBTHomeDiscardsUndecodable(t *testing.T) {
	clock := newTestClock()
	raw, ad := bthomeAdv(t, 0x40, 0x01, 0x5a)
	s := New(testAddr, raw, ad, testOptions(clock))
	require.NotNil(t, s)

	s.Update(raw, ad, -60)
	s.TakeData()
	seen := s.LastSeen()

	clock.Advance(time.Second)
	for _, payload := range [][]byte{
		{0x40, 0x02, 0xc4},
		{0x41, 0x01, 0x5a},
		{0x20, 0x01, 0x5a},
		{0x40, 0xab, 0x01},
	} {
		raw, ad = bthomeAdv(t, payload...)
		s.Update(raw, ad, -40)
	}
	assert.Empty(t, s.TakeData())
	assert.Equal(t, seen, s.LastSeen(), "undecodable frames MUST NOT touch the sensor")
	assert.Equal(t, -60, s.RSSI())

	f := s.(*bthomeSensor).Frame()
	require.NotNil(t, f)
	assert.Len(t, f.Values, 1)
}

func TestXavax(t *testing.T) {
	clock := newTestClock()
	raw, ad := xavaxAdv(t, 40, 40, 80, 0)
	s := New(testAddr, raw, ad, testOptions(clock))
	require.NotNil(t, s)

	s.Update(raw, ad, -70)
	data := s.TakeData()
	assert.Equal(t, []uint16{0, 1, 2}, subIDs(data))
	assert.Equal(t, 20.0, data[0].Value)
	assert.Equal(t, 20.0, data[1].Value)
	assert.Equal(t, 80.0, data[2].Value)

	// battery out of range is ignored
	raw, ad = xavaxAdv(t, 40, 40, 0xe0, 0)
	s.Update(raw, ad, -70)
	assert.Empty(t, s.TakeData())

	raw, ad = xavaxAdv(t, 41, 40, 80, 1)
	s.Update(raw, ad, -70)
	data = s.TakeData()
	assert.Equal(t, []uint16{0, 4}, subIDs(data))
	assert.Equal(t, 20.5, data[0].Value)
	assert.Equal(t, 1.0, data[1].Value)

	s.Report(ReportAll)
	assert.Equal(t, []uint16{0, 1, 2, 4}, subIDs(s.TakeData()))
}

func TestXavaxBogusReadings(t *testing.T) {
	// GOAL: Verify glitched temperature/target pairs are suppressed
	//
	// TEST SCENARIO: current 22.0, target 4.0; device then reports current
	// 4.0 (the target) with a random target 20.5

	clock := newTestClock()
	raw, ad := xavaxAdv(t, 44, 8, 68, 0)
	s := New(testAddr, raw, ad, testOptions(clock))
	require.NotNil(t, s)
	s.Update(raw, ad, -70)
	s.TakeData()

	raw, ad = xavaxAdv(t, 8, 41, 68, 0)
	s.Update(raw, ad, -70)
	assert.Empty(t, s.TakeData(), "jump onto target and bogus target MUST both be ignored")

	raw, ad = xavaxAdv(t, 44, 41, 68, 0)
	s.Update(raw, ad, -70)
	assert.Empty(t, s.TakeData(), "remembered bogus target MUST stay ignored")

	// 0x20 is quarantined right after a glitch
	clock.Advance(time.Minute)
	raw, ad = xavaxAdv(t, 44, 0x20, 68, 0)
	s.Update(raw, ad, -70)
	assert.Empty(t, s.TakeData())

	clock.Advance(2 * time.Minute)
	s.Update(raw, ad, -70)
	data := s.TakeData()
	require.Len(t, data, 1)
	assert.Equal(t, uint16(1), data[0].SubID)
	assert.Equal(t, 16.0, data[0].Value)

	// an ordinary step is accepted, a large jump onto the target is not
	raw, ad = xavaxAdv(t, 42, 0x20, 68, 0)
	s.Update(raw, ad, -70)
	raw, ad = xavaxAdv(t, 0x20, 0x20, 68, 0)
	s.Update(raw, ad, -70)
	data = s.TakeData()
	require.Len(t, data, 1)
	assert.Equal(t, 21.0, data[0].Value, "jumps of 4 or more onto the target MUST be dropped")
}

func TestXavaxUnknownTemperature(t *testing.T) {
	assert.True(t, math.IsNaN(xavaxTemperature(0xff)))
	assert.Equal(t, 21.5, xavaxTemperature(43))

	clock := newTestClock()
	raw, ad := xavaxAdv(t, 0xff, 0xff, 50, 0)
	s := New(testAddr, raw, ad, testOptions(clock))
	require.NotNil(t, s)
	s.Update(raw, ad, -70)
	assert.Equal(t, []uint16{2}, subIDs(s.TakeData()), "unknown temperatures MUST NOT be reported")
}

func TestASensor(t *testing.T) {
	clock := newTestClock()
	raw := asensorAdv(-5, 0, 90)
	ad, err := adv.Parse(raw)
	require.NoError(t, err)
	s := New(testAddr, raw, ad, testOptions(clock))
	require.NotNil(t, s)

	s.Update(raw, ad, -80)
	assert.Empty(t, s.TakeData(), "temperature and battery MUST NOT trigger reports")

	raw = asensorAdv(-4, 1, 89)
	s.Update(raw, ad, -80)
	data := s.TakeData()
	require.Len(t, data, 1)
	assert.Equal(t, uint16(1), data[0].SubID)
	assert.Equal(t, 1.0, data[0].Value)

	s.Report(ReportAll)
	data = s.TakeData()
	assert.Equal(t, []uint16{1, 0, 2}, subIDs(data))
	assert.Equal(t, -4.0, data[1].Value)
	assert.Equal(t, 89.0, data[2].Value)

	s.Update(raw[:20], ad, -30)
	assert.Equal(t, -80, s.RSSI(), "foreign layout MUST be ignored")
}

func TestMiATS(t *testing.T) {
	clock := newTestClock()
	raw, ad := miATSAdv(t, testAddr, 215, 45, 90, 7)
	s := New(testAddr, raw, ad, testOptions(clock))
	require.NotNil(t, s)

	s.Update(raw, ad, -65)
	data := s.TakeData()
	assert.Equal(t, []uint16{0, 1, 2}, subIDs(data))
	assert.InDelta(t, 21.5, data[0].Value, 1e-9)
	assert.Equal(t, 45.0, data[1].Value)

	// same counter: values are not looked at
	raw, ad = miATSAdv(t, testAddr, -12, 46, 90, 7)
	s.Update(raw, ad, -64)
	assert.Empty(t, s.TakeData())
	assert.Equal(t, -64, s.RSSI())

	raw, ad = miATSAdv(t, testAddr, -12, 45, 90, 8)
	s.Update(raw, ad, -64)
	data = s.TakeData()
	require.Len(t, data, 1)
	assert.InDelta(t, -1.2, data[0].Value, 1e-9)
}

func TestMiPVVX(t *testing.T) {
	clock := newTestClock()
	raw, ad := miPVVXAdv(t, testAddr, 2150, 4512, 90, 1)
	s := New(testAddr, raw, ad, testOptions(clock))
	require.NotNil(t, s)

	s.Update(raw, ad, -65)
	data := s.TakeData()
	assert.Equal(t, []uint16{0, 1, 2}, subIDs(data))
	assert.InDelta(t, 21.5, data[0].Value, 1e-9)
	assert.InDelta(t, 45.12, data[1].Value, 1e-9)
	assert.Equal(t, 90.0, data[2].Value)

	raw, ad = miPVVXAdv(t, testAddr, 2150, 4512, 89, 2)
	s.Update(raw, ad, -65)
	assert.Equal(t, []uint16{2}, subIDs(s.TakeData()))

	// the ATS layout from the same address is not a PVVX update
	raw, ad = miATSAdv(t, testAddr, 100, 10, 10, 3)
	s.Update(raw, ad, -30)
	assert.Empty(t, s.TakeData())
	assert.Equal(t, -65, s.RSSI())
}
