// cmd/opclogger/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type rootFlags struct {
	configPath string
	simulate   bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "opclogger",
		Short: "OPC-R2 optical particle counter logger",
		Long: `opclogger drives an Alphasense OPC-R2 over SPI, reads particle
histograms on a fixed schedule and publishes them to Modbus, Redis and
text record files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVar(&flags.simulate, "simulate", false, "Use the in-process OPC simulator instead of SPI")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log.level")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd(flags))
	rootCmd.AddCommand(newReadCmd(flags))
	rootCmd.AddCommand(newPowerCmd(flags))

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
