package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/btrelay/internal/groutine"
	"github.com/srg/btrelay/internal/relay"
	"github.com/srg/btrelay/pkg/config"
)

// runOptions controls a relay run from the CLI.
type runOptions struct {
	flush   bool
	events  bool
	summary bool
}

// runRelay feeds src through a relay publishing to the configured sinks.
func runRelay(ctx context.Context, cmd *cobra.Command, cfg *config.Config, quiet bool, src relay.Source, opts runOptions, logger *logrus.Logger) error {
	sinks, err := openSinks(ctx, cfg, quiet, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close sinks")
		}
	}()

	r := relay.New(cfg.RelayOptions(), sinks.publisher, logger)
	out := cmd.OutOrStdout()

	stopPrinter := func() {}
	if opts.events {
		printCtx, cancel := context.WithCancel(context.Background())
		done := groutine.Go(printCtx, "event-printer", func(ctx context.Context) {
			printEvents(ctx, out, r.Events())
		})
		stopPrinter = func() {
			cancel()
			<-done
		}
	}

	err = r.Run(ctx, src)
	if opts.flush {
		r.Flush(context.Background())
	}
	stopPrinter()
	if opts.summary {
		printSensors(out, r.Registry().Sensors())
	}
	return err
}

// printEvents prints sensor arrivals and evictions until ctx ends, then
// drains what is already queued.
func printEvents(ctx context.Context, out io.Writer, events <-chan relay.Event) {
	p := newPalette(out)
	show := func(ev relay.Event) {
		if ev.Type == relay.EventUpdated {
			return
		}
		label := p.value.Sprint(ev.Type)
		if ev.Type == relay.EventEvicted {
			label = p.warn.Sprint(ev.Type)
		}
		fmt.Fprintf(out, "%s %s %s sid %08x rssi %d\n", label, p.addr.Sprint(ev.Addr), ev.TypeString, ev.SID, ev.RSSI)
	}
	for {
		select {
		case ev := <-events:
			show(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-events:
					show(ev)
				default:
					return
				}
			}
		}
	}
}

func printSensors(out io.Writer, sensors []relay.Info) {
	sort.Slice(sensors, func(i, j int) bool {
		return sensors[i].SID < sensors[j].SID
	})
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tTYPE\tSID\tRSSI\tLAST SEEN")
	for _, s := range sensors {
		fmt.Fprintf(w, "%s\t%s\t%08x\t%d\t%s\n", s.Addr, s.TypeString, s.SID, s.RSSI, s.LastSeen.Format(time.RFC3339))
	}
	_ = w.Flush()
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context, logger *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("Interrupted, stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
