package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/btrelay/internal/scanner"
	"github.com/srg/btrelay/pkg/config"
)

func newReplayCmd() *cobra.Command {
	var (
		rf       relayFlags
		interval time.Duration
		flush    bool
		events   bool
	)
	cmd := &cobra.Command{
		Use:   "replay <capture|->",
		Short: "Feed recorded advertisements through the relay",
		Long: `Replay a capture through the relay and publish the readings.

A capture has one advertisement per line, as written by 'scan --record':

  <addr> <rssi> <adv hex> [<scan response hex>]

Blank lines and lines starting with # are ignored. Use - to read stdin.`,
		Example: `  btrelay replay capture.txt
  btrelay replay --flush --db readings.db capture.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, func(cfg *config.Config) { rf.apply(cmd, cfg) })
			if err != nil {
				return err
			}
			logger, err := configureLogger(cmd, cfg.LogLevel)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			src, err := scanner.OpenReplay(args[0], logger)
			if err != nil {
				return err
			}
			src.Interval = interval

			ctx, cancel := signalContext(cmd.Context(), logger)
			defer cancel()
			return runRelay(ctx, cmd, cfg, rf.quiet, src, runOptions{flush: flush, events: events, summary: true}, logger)
		},
	}
	rf.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 0, "Delay between advertisements")
	cmd.Flags().BoolVar(&flush, "flush", false, "Report every value of every sensor at the end")
	cmd.Flags().BoolVar(&events, "events", false, "Print sensor arrivals and evictions")
	return cmd
}
