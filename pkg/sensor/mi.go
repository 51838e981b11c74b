package sensor

import (
	"encoding/binary"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/pkg/adv"
)

// EnvironmentalSensingService carries the custom Mi thermometer firmware data.
var EnvironmentalSensingService = ble.UUID16(0x181a)

const (
	miTemp uint32 = 1 << iota
	miRHPct
	miBattPct
)

// ATC custom format, big-endian:
// mac[6] temp(i16, 0.1 C) rh(%) batt(%) batt(mV, u16) counter
const miATSLen = 13

// pvvx custom format, little-endian:
// mac[6] temp(i16, 0.01 C) rh(u16, 0.01 %) batt(mV, u16) batt(%) counter flags
const miPVVXLen = 15

func miServiceData(ad adv.Data, size int) []byte {
	d := ad.ServiceData(EnvironmentalSensingService)
	if len(d) != size {
		return nil
	}
	return d
}

type miATS struct {
	base
	temp    int16
	rhPct   uint8
	battPct uint8
	battMV  uint16
	counter uint8
	seen    bool
}

func tasteMiATS(addr Addr, ad adv.Data) bool {
	d := miServiceData(ad, miATSLen)
	return d != nil && Addr(d[:6]) == addr
}

func newMiATS(addr Addr, opts Options) *miATS {
	s := &miATS{base: newBase(addr, TypeMi, opts)}
	s.report = s.Report
	return s
}

func (s *miATS) TypeString() string { return "MiATS" }

func (s *miATS) Update(_ []byte, ad adv.Data, rssi int) {
	if !tasteMiATS(s.addr, ad) {
		return
	}
	d := miServiceData(ad, miATSLen)

	var changed uint32
	if counter := d[12]; !s.seen || counter != s.counter {
		temp := int16(binary.BigEndian.Uint16(d[6:]))
		rh, batt := d[8], d[9]
		s.logger.WithFields(logrus.Fields{
			"temp":    temp,
			"rh":      rh,
			"batt":    batt,
			"batt_mv": binary.BigEndian.Uint16(d[10:]),
			"counter": counter,
		}).Debug("MiATS update")

		if temp != s.temp {
			s.temp = temp
			changed |= miTemp
		}
		if rh != s.rhPct {
			s.rhPct = rh
			changed |= miRHPct
		}
		if batt != s.battPct {
			s.battPct = batt
			changed |= miBattPct
		}
		s.battMV = binary.BigEndian.Uint16(d[10:])
		s.counter = counter
		s.seen = true
	}
	s.updateCommon(rssi, changed)
}

func (s *miATS) Report(what uint32) {
	if what&miTemp != 0 {
		s.reportData(0, float64(s.temp)/10)
	}
	if what&miRHPct != 0 {
		s.reportData(1, float64(s.rhPct))
	}
	if what&miBattPct != 0 {
		s.reportData(2, float64(s.battPct))
	}
	s.reported(what)
}

type miPVVX struct {
	base
	temp    int16
	rhPct   uint16
	battMV  uint16
	battPct uint8
	counter uint8
	flags   uint8
	seen    bool
}

func tasteMiPVVX(addr Addr, ad adv.Data) bool {
	d := miServiceData(ad, miPVVXLen)
	return d != nil && Addr(d[:6]) == addr.Reversed()
}

func newMiPVVX(addr Addr, opts Options) *miPVVX {
	s := &miPVVX{base: newBase(addr, TypeMi, opts)}
	s.report = s.Report
	return s
}

func (s *miPVVX) TypeString() string { return "MiPVVX" }

func (s *miPVVX) Update(_ []byte, ad adv.Data, rssi int) {
	if !tasteMiPVVX(s.addr, ad) {
		return
	}
	d := miServiceData(ad, miPVVXLen)

	var changed uint32
	if counter := d[13]; !s.seen || counter != s.counter {
		temp := int16(binary.LittleEndian.Uint16(d[6:]))
		rh := binary.LittleEndian.Uint16(d[8:])
		batt := d[12]
		s.logger.WithFields(logrus.Fields{
			"temp":    temp,
			"rh":      rh,
			"batt":    batt,
			"batt_mv": binary.LittleEndian.Uint16(d[10:]),
			"counter": counter,
		}).Debug("MiPVVX update")

		if temp != s.temp {
			s.temp = temp
			changed |= miTemp
		}
		if rh != s.rhPct {
			s.rhPct = rh
			changed |= miRHPct
		}
		if batt != s.battPct {
			s.battPct = batt
			changed |= miBattPct
		}
		s.battMV = binary.LittleEndian.Uint16(d[10:])
		s.counter = counter
		s.flags = d[14]
		s.seen = true
	}
	s.updateCommon(rssi, changed)
}

func (s *miPVVX) Report(what uint32) {
	if what&miTemp != 0 {
		s.reportData(0, float64(s.temp)/100)
	}
	if what&miRHPct != 0 {
		s.reportData(1, float64(s.rhPct)/100)
	}
	if what&miBattPct != 0 {
		s.reportData(2, float64(s.battPct))
	}
	s.reported(what)
}
