// Package cli wires ledgerd's cobra command tree: a root command carrying
// global flags and a "server" subcommand that opens storage, the signer,
// the ledger and the settlement manager, and runs until signalled.
// Mirrors the teacher's internal/cli package (root.go, server.go), cut
// down to the one deployable command this repository actually needs.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:     "ledgerd",
	Short:   "ledgerd - cross-border settlement ledger daemon",
	Long:    `ledgerd runs the append-only event ledger and multilateral netting/settlement engine for a cross-border payments platform core.`,
	Version: "0.1.0-dev",
}

// Execute runs the command tree. Called by main.main(); exits the
// process directly on cobra/command error per spec §6's exit codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.AddCommand(serverCmd)
}
