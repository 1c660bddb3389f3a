// Command grindsync is the desktop companion's sync sidecar. It owns the
// local store, the push/pull reconciliation against the remote service,
// and the local status feed the UI subscribes to.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grindsync",
	Short: "Local-first sync for hunting grind sessions",
	Long: `grindsync keeps the on-device grind database and the remote service
converged. Local writes land instantly and are uploaded in the
background; remote state is pulled on sign-in without ever clobbering
an unsynced local change.`,
}

func main() {
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(resetCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
