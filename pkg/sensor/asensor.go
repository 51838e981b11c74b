package sensor

import (
	"encoding/binary"

	"github.com/srg/btrelay/pkg/adv"
)

// ASensor beacons are recognized by the whole advertisement layout:
//
//	02 01 06 03 03 f5 fe 13 ff | d2 00 | mac[6] | fw | temp | moving |
//	ax ay az | cur_motion | prev_motion | batt | pwr
const (
	asensorLen      = 27
	asensorVendorID = 0x00d2

	asensorVendorOff = 9
	asensorTempOff   = 18
	asensorMovingOff = 19
	asensorBattOff   = 25
)

type asensor struct {
	base
	temp    int8
	battPct int8
	moving  bool
}

func tasteASensor(raw []byte) bool {
	return len(raw) == asensorLen &&
		binary.LittleEndian.Uint16(raw[asensorVendorOff:]) == asensorVendorID
}

func newASensor(addr Addr, opts Options) *asensor {
	s := &asensor{base: newBase(addr, TypeASensor, opts)}
	s.report = s.Report
	return s
}

func (s *asensor) TypeString() string { return "ASensor" }

func (s *asensor) Update(raw []byte, _ adv.Data, rssi int) {
	if !tasteASensor(raw) {
		return
	}
	// Temperature and battery flap a lot, only motion counts as a change.
	s.temp = int8(raw[asensorTempOff])
	s.battPct = int8(raw[asensorBattOff])

	var changed uint32
	if moving := raw[asensorMovingOff] != 0; moving != s.moving {
		s.moving = moving
		changed |= 1
	}
	s.updateCommon(rssi, changed)
}

func (s *asensor) Report(what uint32) {
	if what&1 != 0 {
		s.reportData(1, boolFloat(s.moving))
	}
	if what == ReportAll {
		s.reportData(0, float64(s.temp))
		s.reportData(2, float64(s.battPct))
	}
	s.reported(what)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
