// Package publish delivers sensor readings to their sinks.
package publish

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/pkg/sensor"
)

// Publisher is a sink for readings.
type Publisher interface {
	Publish(ctx context.Context, d sensor.Data) error
}

// Func adapts a function to Publisher.
type Func func(ctx context.Context, d sensor.Data) error

func (f Func) Publish(ctx context.Context, d sensor.Data) error {
	return f(ctx, d)
}

// Multi fans a reading out to every sink. All sinks are attempted; errors
// are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, d sensor.Data) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes readings to a logger.
type LogPublisher struct {
	logger *logrus.Logger
	level  logrus.Level
}

// NewLogPublisher logs at info level. A nil logger means logrus.New().
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogPublisher{logger: logger, level: logrus.InfoLevel}
}

// WithLevel changes the level readings are logged at.
func (p *LogPublisher) WithLevel(level logrus.Level) *LogPublisher {
	p.level = level
	return p
}

func (p *LogPublisher) Publish(_ context.Context, d sensor.Data) error {
	p.logger.WithFields(logrus.Fields{
		"sid":   d.SID,
		"subid": d.SubID,
		"ts":    d.TS.Format("2006-01-02T15:04:05.000Z07:00"),
		"v":     d.Value,
	}).Log(p.level, "Reading")
	return nil
}
