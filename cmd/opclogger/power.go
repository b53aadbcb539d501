// cmd/opclogger/power.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coffeye/xpod/internal/poller"
)

func newPowerCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "power on|off",
		Short:     "Switch the OPC fan and laser on or off",
		ValidArgs: []string{"on", "off"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if args[0] == "on" {
				err = dev.On()
			} else {
				err = dev.Off()
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: power %s\n", cfg.Device.ID, args[0])
			return nil
		},
	}
}
