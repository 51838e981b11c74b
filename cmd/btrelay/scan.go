package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/btrelay/internal/relay"
	"github.com/srg/btrelay/internal/scanner"
	"github.com/srg/btrelay/pkg/config"
)

func newScanCmd() *cobra.Command {
	var (
		rf       relayFlags
		duration time.Duration
		services []string
		record   string
		events   bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for sensors and publish their readings",
		Long: `Scan with the local Bluetooth adapter, decode sensor advertisements and
publish readings to the log and, when configured, to MQTT and SQLite.

Runs until interrupted unless --duration is given. Sensors not heard for the
TTL are forgotten; every sensor gets a full report each report interval.`,
		Example: `  btrelay scan --events
  btrelay scan --mqtt-broker tcp://localhost:1883 --db readings.db
  btrelay scan -d 1m --record capture.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, func(cfg *config.Config) {
				rf.apply(cmd, cfg)
				if cmd.Flags().Changed("duration") {
					cfg.Scan.Duration = duration
				}
				if cmd.Flags().Changed("services") {
					cfg.Scan.Services = services
				}
			})
			if err != nil {
				return err
			}
			logger, err := configureLogger(cmd, cfg.LogLevel)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			ble, err := scanner.NewBLESource(cfg.ScanOptions(), logger)
			if err != nil {
				return err
			}
			var src relay.Source = ble
			if record != "" {
				f, err := os.Create(record)
				if err != nil {
					return fmt.Errorf("failed to create capture: %w", err)
				}
				defer f.Close()
				src = &recordingSource{Source: ble, w: f}
			}

			ctx, cancel := signalContext(cmd.Context(), logger)
			defer cancel()
			return runRelay(ctx, cmd, cfg, rf.quiet, src, runOptions{events: events, summary: true}, logger)
		},
	}
	rf.register(cmd)
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Scan duration (0 until interrupted)")
	cmd.Flags().StringSliceVarP(&services, "services", "s", nil, "Only relay advertisements for these service UUIDs")
	cmd.Flags().StringVar(&record, "record", "", "Also write received advertisements to this capture file")
	cmd.Flags().BoolVar(&events, "events", false, "Print sensor arrivals and evictions")
	return cmd
}

// recordingSource copies every scan result to w in capture format.
type recordingSource struct {
	relay.Source
	mu sync.Mutex
	w  io.Writer
}

func (s *recordingSource) Scan(ctx context.Context, handler func(relay.ScanResult)) error {
	return s.Source.Scan(ctx, func(res relay.ScanResult) {
		s.mu.Lock()
		_, _ = fmt.Fprintln(s.w, scanner.FormatLine(res))
		s.mu.Unlock()
		handler(res)
	})
}

func (s *recordingSource) Name() string { return "recording" }
