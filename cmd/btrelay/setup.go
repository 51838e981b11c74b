package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/btrelay/internal/publish"
	"github.com/srg/btrelay/internal/store"
	"github.com/srg/btrelay/pkg/config"
	"golang.org/x/term"
)

// relayFlags are shared by the commands that run the relay. Zero values
// leave the config file untouched.
type relayFlags struct {
	ttl            time.Duration
	reportInterval time.Duration
	warmup         time.Duration
	allow          []string
	block          []string
	mqttBroker     string
	mqttPrefix     string
	dbPath         string
	quiet          bool
}

func (f *relayFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.ttl, "ttl", 0, "Forget sensors not heard for this long")
	cmd.Flags().DurationVar(&f.reportInterval, "report-interval", 0, "Full report period per sensor")
	cmd.Flags().DurationVar(&f.warmup, "warmup", 0, "Delay housekeeping after start")
	cmd.Flags().StringSliceVar(&f.allow, "allow", nil, "Only relay these addresses")
	cmd.Flags().StringSliceVar(&f.block, "block", nil, "Never relay these addresses")
	cmd.Flags().StringVar(&f.mqttBroker, "mqtt-broker", "", "Publish to this MQTT broker (tcp://host:1883)")
	cmd.Flags().StringVar(&f.mqttPrefix, "mqtt-prefix", "", "MQTT topic prefix")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "Store readings in this SQLite database")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Do not log readings")
}

func (f *relayFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("ttl") {
		cfg.Relay.TTL = f.ttl
	}
	if cmd.Flags().Changed("report-interval") {
		cfg.Relay.ReportInterval = f.reportInterval
	}
	if cmd.Flags().Changed("warmup") {
		cfg.Relay.Warmup = f.warmup
	}
	if cmd.Flags().Changed("allow") {
		cfg.Scan.Allow = f.allow
	}
	if cmd.Flags().Changed("block") {
		cfg.Scan.Block = f.block
	}
	if f.mqttBroker != "" {
		cfg.MQTT.Broker = f.mqttBroker
	}
	if f.mqttPrefix != "" {
		cfg.MQTT.TopicPrefix = f.mqttPrefix
	}
	if f.dbPath != "" {
		cfg.Store.Path = f.dbPath
	}
}

// loadConfig reads --config, lets apply override it and validates the result.
func loadConfig(cmd *cobra.Command, apply func(cfg *config.Config)) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if apply != nil {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// sinks is the set of publishers the relay writes to.
type sinks struct {
	publisher publish.Publisher
	closers   []io.Closer
}

func (s *sinks) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// openSinks builds the log, MQTT and SQLite publishers the config enables.
func openSinks(ctx context.Context, cfg *config.Config, quiet bool, logger *logrus.Logger) (*sinks, error) {
	s := &sinks{}
	var multi publish.Multi

	if !quiet {
		multi = append(multi, publish.NewLogPublisher(logger))
	}

	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db)
		multi = append(multi, db)
	}

	if cfg.MQTT.Broker != "" {
		mp := publish.NewMQTTPublisher(cfg.MQTTOptions(), logger)
		if err := mp.Connect(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to connect to %s: %w", cfg.MQTT.Broker, err)
		}
		s.closers = append(s.closers, mp)
		multi = append(multi, mp)
		logger.WithField("broker", cfg.MQTT.Broker).Info("Connected to MQTT broker")
	}

	s.publisher = multi
	return s, nil
}

// palette holds the output colours, enabled only on terminals.
type palette struct {
	header *color.Color
	addr   *color.Color
	value  *color.Color
	warn   *color.Color
}

func newPalette(w io.Writer) *palette {
	p := &palette{
		header: color.New(color.FgCyan, color.Bold),
		addr:   color.New(color.FgYellow),
		value:  color.New(color.FgGreen),
		warn:   color.New(color.FgRed),
	}
	enable := isTerminal(w)
	for _, c := range []*color.Color{p.header, p.addr, p.value, p.warn} {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
