package main

import (
	"fmt"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/btrelay/internal/store"
	"github.com/srg/btrelay/pkg/config"
)

func newHistoryCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "history <sid>",
		Short:   "Show stored readings of a sensor",
		Long:    "Show the newest readings stored for a sensor id (hex, as printed by scan and replay).",
		Example: "  btrelay history --db readings.db 04380001",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := strconv.ParseUint(args[0], 16, 32)
			if err != nil {
				return fmt.Errorf("invalid sensor id %q: must be up to 8 hex digits", args[0])
			}
			cfg, err := loadConfig(cmd, func(cfg *config.Config) {
				if dbPath != "" {
					cfg.Store.Path = dbPath
				}
			})
			if err != nil {
				return err
			}
			if cfg.Store.Path == "" {
				return fmt.Errorf("no database: use --db or store.path in the config")
			}
			logger, err := configureLogger(cmd, cfg.LogLevel)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			db, err := store.Open(cfg.Store.Path, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			readings, err := db.Recent(cmd.Context(), uint32(sid), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, readings)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSUBID\tVALUE")
			for _, d := range readings {
				v := "unknown"
				if !math.IsNaN(d.Value) {
					v = strconv.FormatFloat(d.Value, 'g', -1, 64)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", d.TS.Format(time.RFC3339), d.SubID, v)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of readings")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}
