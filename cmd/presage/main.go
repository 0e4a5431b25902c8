package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "presage",
		Short: "Predictive UI patch engine",
		Long: `Presage serves UI patches before they are asked for.

It learns which view-tree patches follow which state changes, caches
them keyed by change signature, and hands them to clients whose intent
engine predicts the change is about to happen. Every forecast is
verified against the authoritative reconciliation and corrected when
wrong.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
