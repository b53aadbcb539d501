// cmd/opclogger/read.go
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coffeye/xpod/internal/opc"
	"github.com/coffeye/xpod/internal/poller"
)

type readFlags struct {
	count   int
	every   time.Duration
	begin   bool
	off     bool
	record  bool
	showAll bool
}

func newReadCmd(root *rootFlags) *cobra.Command {
	flags := &readFlags{}

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Take one or more histogram readings and print them",
		Example: `  # One reading from the simulator, with bins
  opclogger read --simulate --bins

  # Five SD-style records, 10 s apart
  opclogger read -c opc.yaml --count 5 --every 10s --record`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.count < 1 {
				return fmt.Errorf("--count must be >= 1")
			}
			return runRead(cmd, root, flags)
		},
	}

	cmd.Flags().IntVar(&flags.count, "count", 1, "Number of readings")
	cmd.Flags().DurationVar(&flags.every, "every", 10*time.Second, "Delay between readings")
	cmd.Flags().BoolVar(&flags.begin, "begin", true, "Power on before the first reading")
	cmd.Flags().BoolVar(&flags.off, "off", false, "Power off after the last reading")
	cmd.Flags().BoolVar(&flags.record, "record", false, "Print delimited records instead of labelled values")
	cmd.Flags().BoolVar(&flags.showAll, "bins", false, "Include the 16 bins (overrides device.print_bins)")
	return cmd
}

func runRead(cmd *cobra.Command, root *rootFlags, flags *readFlags) error {
	cfg, log, logCloser, err := setup(root)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	dev, closeBus, err := poller.OpenDevice(cfg.Device, log, nil)
	if err != nil {
		return err
	}
	defer closeBus()

	if flags.begin {
		if err := dev.Begin(); err != nil {
			return err
		}
	}

	withBins := cfg.Device.PrintBins || flags.showAll
	out := cmd.OutOrStdout()

	if flags.record {
		fmt.Fprintln(out, opc.RecordHeader(withBins))
	}

	for i := 0; i < flags.count; i++ {
		if i > 0 {
			time.Sleep(flags.every)
		}

		r, err := dev.Read()
		if err != nil {
			return fmt.Errorf("read %d: %w (code 0x%02x)", i+1, err, opc.ErrorCode(err))
		}

		if flags.record {
			fmt.Fprintln(out, opc.FormatRecord(r, withBins))
		} else {
			fmt.Fprintln(out, opc.FormatPrint(r, withBins))
		}
	}

	if flags.off {
		return dev.Off()
	}
	return nil
}
