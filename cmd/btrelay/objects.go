package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/btrelay/pkg/bthome"
)

func newObjectsCmd() *cobra.Command {
	var (
		asJSON   bool
		category string
	)
	cmd := &cobra.Command{
		Use:   "objects",
		Short: "List the BTHome object registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []bthome.Object
			for _, o := range bthome.Objects() {
				if category == "" || strings.EqualFold(o.Category.String(), category) {
					list = append(list, o)
				}
			}
			if len(list) == 0 {
				return fmt.Errorf("no objects in category %q", category)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, list)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tFORMAT\tSIZE\tEXP\tUNIT")
			for _, o := range list {
				fmt.Fprintf(w, "0x%02X\t%s\t%s\t%s\t%d\t%d\t%s\n",
					o.ID, o.Name, o.Category, o.Format, o.Size, o.Exponent, o.Unit)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	cmd.Flags().StringVar(&category, "category", "", "Only list this category (sensor, binary_sensor, event, packet_counter, other)")
	return cmd
}
