package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/phonecam/internal/sink"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool
	var loopbackOnly bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List video output devices",
		Long: `Lists the V4L2 nodes that accept written frames. A v4l2loopback device ` +
			`created with exclusive_caps=1 shows up here until a consumer opens it.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			devices, err := sink.ListOutputDevices()
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}
			if loopbackOnly {
				devices = filterLoopback(devices)
			}
			if asJSON {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(devices)
			}
			return writeDeviceTable(c.OutOrStdout(), devices)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	cmd.Flags().BoolVar(&loopbackOnly, "loopback", false, "Only show v4l2loopback devices")

	return cmd
}

func filterLoopback(devices []sink.OutputDevice) []sink.OutputDevice {
	out := devices[:0:0]
	for _, d := range devices {
		if d.Loopback {
			out = append(out, d)
		}
	}
	return out
}

func writeDeviceTable(w io.Writer, devices []sink.OutputDevice) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No video output devices found. Load one with: sudo modprobe v4l2loopback video_nr=2 card_label='Mobile Camera' exclusive_caps=1")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tNAME\tDRIVER\tLOOPBACK")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", d.Path, d.Name, d.Driver, d.Loopback)
	}
	return tw.Flush()
}
