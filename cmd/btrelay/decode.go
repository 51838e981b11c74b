package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/btrelay/internal/cursor"
	"github.com/srg/btrelay/pkg/adv"
	"github.com/srg/btrelay/pkg/bthome"
	"github.com/srg/btrelay/pkg/sensor"
)

type decodeOptions struct {
	addr   string
	ad     bool
	asJSON bool
}

func newDecodeCmd() *cobra.Command {
	opts := &decodeOptions{}
	cmd := &cobra.Command{
		Use:   "decode <hex>...",
		Short: "Decode BTHome service data or a raw advertisement",
		Long: `Decode hex input offline.

By default the input is BTHome service data: the device info byte followed by
object records, without the FCD2 UUID. With --ad the input is a complete
advertisement (length/type/value elements); its elements are listed and every
supported sensor format is tried.

Separators such as spaces, ':' and '-' are ignored; several arguments are
joined.`,
		Example: `  btrelay decode 40 00 01 02 c4 09 03 bf 13
  btrelay decode --json 4000010201
  btrelay decode --ad --addr a4:c1:38:00:00:01 0201060716d2fc4002c409`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "00:00:00:00:00:00", "Sensor address")
	cmd.Flags().BoolVar(&opts.ad, "ad", false, "Input is a complete advertisement")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "JSON output")
	return cmd
}

func runDecode(cmd *cobra.Command, opts *decodeOptions, args []string) error {
	data, err := cursor.FromHex(strings.Join(args, ""))
	if err != nil {
		return err
	}
	addr, err := sensor.ParseAddr(opts.addr)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	out := cmd.OutOrStdout()

	if !opts.ad {
		frame, err := bthome.Decode(addr.String(), data, nil)
		if err != nil {
			return err
		}
		return printFrame(out, frame, opts.asJSON)
	}

	ad, err := adv.Parse(data)
	if err != nil {
		return err
	}
	return printAdvertisement(out, addr, data, ad, opts.asJSON)
}

func printFrame(out io.Writer, frame *bthome.Frame, asJSON bool) error {
	if asJSON {
		return writeJSON(out, frame)
	}
	p := newPalette(out)
	fmt.Fprintln(out, p.header.Sprint(frame.String()))
	for _, v := range frame.Values {
		unit := bthome.Unit(v.ObjectID)
		fmt.Fprintf(out, "  %-28s %s %s\n", v.Key(), p.value.Sprint(v.Interface()), unit)
	}
	return nil
}

type decodedAdvertisement struct {
	Addr     string        `json:"addr"`
	Elements []elementJSON `json:"elements"`
	Sensor   string        `json:"sensor,omitempty"`
	SID      string        `json:"sid,omitempty"`
	Readings []sensor.Data `json:"readings,omitempty"`
	Frame    *bthome.Frame `json:"bthome,omitempty"`
}

type elementJSON struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

func printAdvertisement(out io.Writer, addr sensor.Addr, raw []byte, ad adv.Data, asJSON bool) error {
	res := decodedAdvertisement{Addr: addr.String()}
	for _, e := range ad {
		payload := cursor.New(e.Payload)
		res.Elements = append(res.Elements, elementJSON{Type: e.Type.String(), Data: payload.HexSep(" ")})
	}

	s := sensor.New(addr, raw, ad, sensor.Options{})
	if s != nil {
		s.Update(raw, ad, 0)
		s.Report(sensor.ReportAll)
		res.Sensor = s.TypeString()
		res.SID = fmt.Sprintf("%08x", s.SID())
		res.Readings = s.TakeData()
	}
	if frame, err := bthome.DecodeAdvertisement(addr.String(), ad, nil); err == nil {
		res.Frame = frame
	}

	if asJSON {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		p := newPalette(out)
		fmt.Fprintf(out, "%s %s\n", p.header.Sprint("Advertisement"), p.addr.Sprint(res.Addr))
		for _, e := range res.Elements {
			fmt.Fprintf(out, "  %-28s %s\n", e.Type, e.Data)
		}
		if s != nil {
			fmt.Fprintf(out, "%s %s sid %s\n", p.header.Sprint("Sensor"), res.Sensor, res.SID)
			for _, d := range res.Readings {
				fmt.Fprintf(out, "  subid %-6d %s\n", d.SubID, p.value.Sprintf("%g", d.Value))
			}
		}
		if res.Frame != nil {
			fmt.Fprintln(out, res.Frame.String())
		}
	}

	if s == nil {
		return ErrNoSensor
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
