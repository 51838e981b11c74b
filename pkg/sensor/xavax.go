package sensor

import (
	"math"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/pkg/adv"
)

// XavaxService is advertised by Xavax/Hama radiator thermostats.
var XavaxService = ble.MustParse("47e9ee00-47e9-11e4-8939-164230d1df67")

const (
	xavaxDataLen = 8

	// xavaxBogusJump is the smallest temperature jump (in half degrees)
	// onto the target that is treated as a glitch.
	xavaxBogusJump = 4

	// xavaxQuarantine is how long a target of xavaxQuarantineTarget is
	// ignored after a glitch.
	xavaxQuarantine       = 125 * time.Second
	xavaxQuarantineTarget = 0x20

	xavaxUnknown = 0xff
)

const (
	xavaxTemp uint32 = 1 << iota
	xavaxTgtTemp
	xavaxBattPct
	xavaxState
)

type xavax struct {
	base
	temp            uint8
	tgtTemp         uint8
	bogusTgt        uint8
	battPct         uint8
	state           uint8
	quarantineUntil time.Time
}

func tasteXavax(ad adv.Data) bool {
	return ad.HasService(XavaxService)
}

func newXavax(addr Addr, opts Options) *xavax {
	s := &xavax{base: newBase(addr, TypeXavax, opts)}
	s.report = s.Report
	return s
}

func (s *xavax) TypeString() string { return "Xavax" }

func xavaxTemperature(t uint8) float64 {
	if t == xavaxUnknown {
		return math.NaN()
	}
	return float64(t) * 0.5
}

func (s *xavax) Update(_ []byte, ad adv.Data, rssi int) {
	if !tasteXavax(ad) {
		return
	}
	d := ad.DataByType(adv.TypeVendorSpecific)
	if len(d) != xavaxDataLen {
		if len(d) != 0 {
			s.logger.WithField("len", len(d)).Error("Incompatible Xavax data length")
		}
		return
	}
	temp, tgt, batt, state := d[0], d[1], d[2], d[4]
	now := s.opts.Clock()

	s.logger.WithFields(logrus.Fields{
		"rssi":  rssi,
		"temp":  temp,
		"tgt":   tgt,
		"batt":  batt,
		"state": state,
	}).Debug("Xavax update")

	var changed uint32
	// The device sometimes swaps current and target temperature and reports
	// a random target alongside.
	if temp != s.temp {
		if temp == s.tgtTemp && absDiff(temp, s.temp) >= xavaxBogusJump {
			s.logger.WithFields(logrus.Fields{
				"temp": xavaxTemperature(temp),
				"tgt":  xavaxTemperature(tgt),
			}).Info("Ignored bogus temperature report")
			s.bogusTgt = tgt
			s.quarantineUntil = now.Add(xavaxQuarantine)
		} else {
			s.temp = temp
			changed |= xavaxTemp
		}
	}
	if tgt != s.tgtTemp {
		switch {
		case tgt == s.bogusTgt:
			s.logger.WithField("tgt", xavaxTemperature(tgt)).Info("Ignored bogus target temperature report")
		case tgt == xavaxQuarantineTarget && now.Before(s.quarantineUntil):
			s.logger.WithField("tgt", xavaxTemperature(tgt)).Info("Ignored quarantined target temperature report")
		default:
			s.tgtTemp = tgt
			changed |= xavaxTgtTemp
		}
	}
	if state != s.state {
		s.state = state
		changed |= xavaxState
	}
	if batt != s.battPct && batt <= 100 {
		s.battPct = batt
		changed |= xavaxBattPct
	}
	s.updateCommon(rssi, changed)
}

func (s *xavax) Report(what uint32) {
	if what&xavaxTemp != 0 && s.temp != xavaxUnknown && s.temp != 0 {
		s.reportData(0, xavaxTemperature(s.temp))
	}
	if what&xavaxTgtTemp != 0 && s.tgtTemp != xavaxUnknown && s.tgtTemp != 0 {
		s.reportData(1, xavaxTemperature(s.tgtTemp))
	}
	// 0 is still reported as a nearly dead battery.
	if what&xavaxBattPct != 0 && s.battPct <= 100 && s.tgtTemp != 0 {
		s.reportData(2, float64(s.battPct))
	}
	if what&xavaxState != 0 {
		s.reportData(4, float64(s.state))
	}
	s.reported(what)
}

func absDiff(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}
