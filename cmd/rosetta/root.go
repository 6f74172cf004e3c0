package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "rosetta",
	Short: "Rosetta - universal adapter fabric for LLM chat services",
	Long: `Rosetta bridges N frontend wire formats to M backends through a typed
intermediate representation.

A request enters through a frontend adapter, is normalized into the IR,
flows through the middleware stack, and is routed to a backend by the
configured strategy, with circuit breakers, failover, and model
translation along the way. Streaming responses relay chunk by chunk.

The bundled static backend and IR-native HTTP route make the binary
runnable out of the box; production deployments register their own
frontend and backend adapters through the library packages.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (empty runs the built-in demo config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
