// Package relay turns scan results into sensor readings and hands them to a
// publisher.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/internal/groutine"
	"github.com/srg/btrelay/internal/publish"
	"github.com/srg/btrelay/internal/ringchan"
	"github.com/srg/btrelay/pkg/adv"
	"github.com/srg/btrelay/pkg/sensor"
)

// ScanResult is one received advertisement.
type ScanResult struct {
	Addr    sensor.Addr
	RSSI    int
	AdvData []byte
	ScanRsp []byte
}

// Source produces scan results until it is exhausted or ctx ends.
type Source interface {
	Scan(ctx context.Context, handler func(ScanResult)) error
}

// EventType marks what happened to a sensor.
type EventType int

const (
	EventNew EventType = iota
	EventUpdated
	EventEvicted
)

func (t EventType) String() string {
	switch t {
	case EventNew:
		return "new"
	case EventUpdated:
		return "updated"
	case EventEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Info describes a sensor at a point in time.
type Info struct {
	Addr         sensor.Addr
	Type         sensor.Type
	TypeString   string
	SID          uint32
	RSSI         int
	LastSeen     time.Time
	LastReported time.Time
}

func infoOf(s sensor.Sensor) Info {
	return Info{
		Addr:         s.Addr(),
		Type:         s.Type(),
		TypeString:   s.TypeString(),
		SID:          s.SID(),
		RSSI:         s.RSSI(),
		LastSeen:     s.LastSeen(),
		LastReported: s.LastReported(),
	}
}

type Event struct {
	Type EventType
	Info
}

// Config controls sensor lifetime and reporting.
type Config struct {
	// TTL evicts sensors not seen for this long.
	TTL time.Duration

	// ReportInterval triggers a full report for sensors not reported for
	// this long.
	ReportInterval time.Duration

	// Warmup delays housekeeping after Run starts so sensors get a chance
	// to be heard first.
	Warmup time.Duration

	// TickInterval is the housekeeping period used by Run.
	TickInterval time.Duration

	ReportOnChange bool

	// BTHomeKeys maps addresses to BTHome bind keys.
	BTHomeKeys map[sensor.Addr][]byte

	// AllowList, when not empty, restricts the relay to these addresses.
	AllowList []sensor.Addr
	BlockList []sensor.Addr

	EventBuffer int

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		TTL:            10 * time.Minute,
		ReportInterval: 5 * time.Minute,
		Warmup:         30 * time.Second,
		TickInterval:   time.Second,
		ReportOnChange: true,
		EventBuffer:    100,
	}
}

// Relay owns the sensor registry.
type Relay struct {
	cfg       Config
	registry  *Registry
	publisher publish.Publisher
	events    *ringchan.RingChannel[Event]
	logger    *logrus.Logger

	// scanning since, unix nanoseconds; zero disables the warm-up
	startedAt atomic.Int64
}

// New creates a relay. A nil logger means logrus.New().
func New(cfg Config, publisher publish.Publisher, logger *logrus.Logger) *Relay {
	if logger == nil {
		logger = logrus.New()
	}
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if publisher == nil {
		publisher = publish.NewLogPublisher(logger)
	}

	return &Relay{
		cfg:       cfg,
		registry:  NewRegistry(),
		publisher: publisher,
		events:    ringchan.New[Event](cfg.EventBuffer),
		logger:    logger,
	}
}

func (r *Relay) Registry() *Registry { return r.registry }

// Events returns sensor lifecycle events. Old events are dropped when the
// consumer falls behind.
func (r *Relay) Events() <-chan Event {
	return r.events.C()
}

func (r *Relay) sensorOptions(addr sensor.Addr) sensor.Options {
	return sensor.Options{
		Clock:          r.cfg.Clock,
		ReportOnChange: r.cfg.ReportOnChange,
		Logger:         r.logger,
		BTHomeKey:      r.cfg.BTHomeKeys[addr],
	}
}

func (r *Relay) allowed(addr sensor.Addr) bool {
	for _, b := range r.cfg.BlockList {
		if b == addr {
			return false
		}
	}
	if len(r.cfg.AllowList) == 0 {
		return true
	}
	for _, a := range r.cfg.AllowList {
		if a == addr {
			return true
		}
	}
	return false
}

// Handle processes one scan result.
func (r *Relay) Handle(ctx context.Context, res ScanResult) {
	if !r.allowed(res.Addr) {
		return
	}

	ad, err := adv.Parse2(res.AdvData, res.ScanRsp)
	if err != nil {
		r.logger.WithError(err).WithField("addr", res.Addr.String()).Debug("Dropping malformed advertisement")
		return
	}

	var (
		data    []sensor.Data
		info    Info
		created bool
	)
	for {
		var e *Entry
		e, created = r.registry.GetOrCreate(res.Addr, func() sensor.Sensor {
			return sensor.New(res.Addr, res.AdvData, ad, r.sensorOptions(res.Addr))
		})
		if e == nil {
			return
		}
		ok := e.Do(func(s sensor.Sensor) {
			s.Update(res.AdvData, ad, res.RSSI)
			data = s.TakeData()
			info = infoOf(s)
		})
		if ok {
			break
		}
	}

	if created {
		r.logger.WithFields(logrus.Fields{
			"addr": info.Addr.String(),
			"type": info.TypeString,
			"sid":  info.SID,
			"rssi": res.RSSI,
		}).Info("New sensor")
		r.events.Send(Event{Type: EventNew, Info: info})
	} else {
		r.events.Send(Event{Type: EventUpdated, Info: info})
	}

	r.publish(ctx, data)
}

// Tick runs housekeeping: sensors not seen for TTL are evicted, the rest
// get a full report once ReportInterval has passed since the last one.
func (r *Relay) Tick(ctx context.Context, now time.Time) {
	if started := r.startedAt.Load(); started != 0 && now.Sub(time.Unix(0, started)) < r.cfg.Warmup {
		return
	}

	var (
		data    []sensor.Data
		evicted []Info
	)
	r.registry.Range(func(e *Entry) bool {
		e.Do(func(s sensor.Sensor) {
			age := now.Sub(s.LastSeen())
			if r.cfg.TTL > 0 && age > r.cfg.TTL {
				evicted = append(evicted, infoOf(s))
				return
			}
			if r.cfg.ReportInterval > 0 && now.Sub(s.LastReported()) > r.cfg.ReportInterval {
				s.Report(sensor.ReportAll)
				data = append(data, s.TakeData()...)
			}
		})
		return true
	})

	for _, info := range evicted {
		stale := r.registry.EvictIf(info.Addr, func(s sensor.Sensor) bool {
			return now.Sub(s.LastSeen()) > r.cfg.TTL
		})
		if !stale {
			continue
		}
		r.logger.WithFields(logrus.Fields{
			"addr": info.Addr.String(),
			"type": info.TypeString,
			"sid":  info.SID,
			"age":  now.Sub(info.LastSeen).Round(time.Millisecond).String(),
		}).Info("Removed sensor")
		r.events.Send(Event{Type: EventEvicted, Info: info})
	}

	r.publish(ctx, data)
}

// Flush asks every sensor for a full report.
func (r *Relay) Flush(ctx context.Context) {
	var data []sensor.Data
	r.registry.Range(func(e *Entry) bool {
		e.Do(func(s sensor.Sensor) {
			s.Report(sensor.ReportAll)
			data = append(data, s.TakeData()...)
		})
		return true
	})
	r.publish(ctx, data)
}

func (r *Relay) publish(ctx context.Context, data []sensor.Data) {
	for _, d := range data {
		if err := r.publisher.Publish(ctx, d); err != nil {
			r.logger.WithError(err).WithField("sid", d.SID).Warn("Failed to publish reading")
		}
	}
}

// Run feeds src into the relay and runs housekeeping until src is done or
// ctx ends. Context cancellation is not an error.
func (r *Relay) Run(ctx context.Context, src Source) error {
	r.startedAt.Store(r.cfg.Clock().UnixNano())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := groutine.Go(ctx, "relay-housekeeping", func(ctx context.Context) {
		ticker := time.NewTicker(r.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Tick(ctx, r.cfg.Clock())
			}
		}
	})

	r.logger.WithField("source", sourceName(src)).Info("Relay started")
	err := src.Scan(ctx, func(res ScanResult) {
		r.Handle(ctx, res)
	})

	cancel()
	<-done

	r.logger.WithField("sensors", r.registry.Len()).Info("Relay stopped")
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func sourceName(src Source) string {
	if s, ok := src.(interface{ Name() string }); ok {
		return s.Name()
	}
	return fmt.Sprintf("%T", src)
}
