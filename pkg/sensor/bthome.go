package sensor

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/pkg/adv"
	"github.com/srg/btrelay/pkg/bthome"
)

// maxTrackedValues is the number of frame positions that fit in a change mask.
const maxTrackedValues = 32

type bthomeSensor struct {
	base
	last *bthome.Frame
}

func tasteBTHome(addr Addr, ad adv.Data, key []byte) bool {
	_, err := bthome.DecodeAdvertisement(addr.String(), ad, key)
	return err == nil
}

func newBTHome(addr Addr, opts Options) *bthomeSensor {
	s := &bthomeSensor{base: newBase(addr, TypeBTHome, opts)}
	s.report = s.Report
	return s
}

func (s *bthomeSensor) TypeString() string { return "BTHome" }

// Frame returns the last accepted frame, nil before the first one.
func (s *bthomeSensor) Frame() *bthome.Frame { return s.last }

func (s *bthomeSensor) Update(_ []byte, ad adv.Data, rssi int) {
	f, err := bthome.DecodeAdvertisement(s.addr.String(), ad, s.opts.BTHomeKey)
	if err != nil {
		s.logger.WithError(err).Debug("Discarding BTHome advertisement")
		return
	}

	if s.last != nil {
		prevID, hadPrev := s.last.PacketID()
		id, ok := f.PacketID()
		if hadPrev && ok && prevID == id {
			s.logger.WithField("packet_id", id).Debug("Duplicate BTHome packet")
			return
		}
	}

	var changed uint32
	for i, v := range f.Values {
		if i >= maxTrackedValues {
			break
		}
		if v.Category != bthome.CategorySensor {
			continue
		}
		if s.last == nil {
			changed |= 1 << i
			continue
		}
		old, err := s.last.Value(v.ObjectID, v.Index)
		if err != nil || !sameNumber(old, v) {
			changed |= 1 << i
		}
	}

	s.logger.WithFields(logrus.Fields{
		"frame":   f.String(),
		"changed": changed,
	}).Debug("BTHome update")

	s.last = f
	s.updateCommon(rssi, changed)
}

func (s *bthomeSensor) Report(what uint32) {
	if s.last != nil {
		for i, v := range s.last.Values {
			if i >= maxTrackedValues {
				break
			}
			if v.Category != bthome.CategorySensor || what&(1<<i) == 0 {
				continue
			}
			n, ok := v.Number()
			if !ok {
				continue
			}
			s.reportData(uint16(v.ObjectID)<<8|uint16(v.Index), n)
		}
	}
	s.reported(what)
}

func sameNumber(a, b bthome.Value) bool {
	x, okA := a.Number()
	y, okB := b.Number()
	return okA && okB && x == y
}
