// Package scanner provides scan result sources for the relay: a live BLE
// adapter and recorded captures.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/internal/relay"
	"github.com/srg/btrelay/pkg/adv"
	"github.com/srg/btrelay/pkg/sensor"
)

// Source produces scan results.
type Source = relay.Source

// ScanDevice is the scanning subset of ble.Device.
type ScanDevice interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
}

// txPowerUnavailable is what go-ble reports when no TX power element was seen.
const txPowerUnavailable = 127

// Options configures a BLE scan.
type Options struct {
	// Duration limits the scan; zero scans until the context ends.
	Duration time.Duration

	// AllowDuplicates must stay on for sensors, which repeat the same
	// address with new payloads.
	AllowDuplicates bool

	// ServiceUUIDs, when not empty, drops advertisements that neither list
	// nor carry data for one of these services.
	ServiceUUIDs []ble.UUID
}

// DefaultOptions returns an unbounded scan reporting every advertisement.
func DefaultOptions() *Options {
	return &Options{AllowDuplicates: true}
}

// rawAdvertisement is implemented by advertisements that keep the received
// bytes, such as the Linux HCI ones.
type rawAdvertisement interface {
	Data() []byte
	ScanResponse() []byte
}

// BLESource scans with a local adapter.
type BLESource struct {
	dev    ScanDevice
	opts   *Options
	logger *logrus.Logger
}

// NewBLESource opens the default adapter through DeviceFactory.
func NewBLESource(opts *Options, logger *logrus.Logger) (*BLESource, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	return NewBLESourceWithDevice(dev, opts, logger), nil
}

// NewBLESourceWithDevice scans with dev.
func NewBLESourceWithDevice(dev ScanDevice, opts *Options, logger *logrus.Logger) *BLESource {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &BLESource{dev: dev, opts: opts, logger: logger}
}

func (s *BLESource) Name() string { return "ble" }

// Scan runs until the duration elapses or ctx ends, both of which are
// reported as the context error.
func (s *BLESource) Scan(ctx context.Context, handler func(relay.ScanResult)) error {
	if s.opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Duration)
		defer cancel()
	}

	s.logger.WithFields(logrus.Fields{
		"duration":   s.opts.Duration,
		"duplicates": s.opts.AllowDuplicates,
	}).Info("Starting BLE scan...")

	err := s.dev.Scan(ctx, s.opts.AllowDuplicates, func(a ble.Advertisement) {
		if res, ok := s.convert(a); ok {
			handler(res)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scan failed: %w", NormalizeError(err))
	}
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func (s *BLESource) convert(a ble.Advertisement) (relay.ScanResult, bool) {
	if a.Addr() == nil {
		return relay.ScanResult{}, false
	}
	addr, err := sensor.ParseAddr(a.Addr().String())
	if err != nil {
		// CoreBluetooth reports per-host UUIDs instead of MAC addresses
		s.logger.WithField("addr", a.Addr().String()).Trace("Skipping advertisement without MAC address")
		return relay.ScanResult{}, false
	}
	if !s.wanted(a) {
		return relay.ScanResult{}, false
	}

	res := relay.ScanResult{Addr: addr, RSSI: a.RSSI()}
	if raw, ok := a.(rawAdvertisement); ok && len(raw.Data()) > 0 {
		res.AdvData = raw.Data()
		res.ScanRsp = raw.ScanResponse()
		return res, true
	}
	res.AdvData = Encode(a)
	return res, true
}

func (s *BLESource) wanted(a ble.Advertisement) bool {
	if len(s.opts.ServiceUUIDs) == 0 {
		return true
	}
	for _, want := range s.opts.ServiceUUIDs {
		for _, u := range a.Services() {
			if want.Equal(u) {
				return true
			}
		}
		for _, sd := range a.ServiceData() {
			if want.Equal(sd.UUID) {
				return true
			}
		}
	}
	return false
}

// Encode rebuilds AD bytes from a decoded advertisement. Element order and
// anything go-ble does not expose are lost.
func Encode(a ble.Advertisement) []byte {
	b := adv.NewBuilder(0)
	if name := a.LocalName(); name != "" {
		b.AddName(name, true)
	}
	if p := a.TxPowerLevel(); p != txPowerUnavailable {
		b.AddTxPower(int8(p))
	}
	if md := a.ManufacturerData(); len(md) > 0 {
		b.AddVendorSpecific(md)
	}
	for _, sd := range a.ServiceData() {
		b.AddServiceData(sd.UUID, sd.Data)
	}
	for _, u := range a.Services() {
		b.AddService(u)
	}
	return b.Build()
}
