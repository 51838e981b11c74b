package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "btrelay",
		Short: "BLE sensor advertisement relay",
		Long: `Relay readings from BLE sensor advertisements:

- Decode BTHome v2 service data and raw advertisements
- List the BTHome object registry
- Replay recorded advertisements through the relay
- Scan with the local adapter and publish readings to the log, MQTT and SQLite
- Query the stored reading history

Supported sensors: BTHome v2, Xiaomi/ATC/PVVX thermometers, Xavax radiator
valves and ASensor beacons.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
	}

	// main() prints clean errors
	root.SilenceErrors = true

	root.PersistentFlags().StringP("config", "c", "", "YAML config file")
	root.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().Bool("verbose", false, "Debug logging (same as --log-level debug)")

	root.AddCommand(newDecodeCmd())
	root.AddCommand(newObjectsCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newScanCmd())
	root.AddCommand(newHistoryCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
