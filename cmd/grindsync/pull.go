package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the latest remote data into the local cache",
	Long: `Fetch the signed-in user's active sessions and statistics from the
remote service and merge them into the local cache. Locally-pending
records are never overwritten.`,
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEnv(true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.close()

		result, err := e.manager.PullLatestData(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: pull aborted: %v\n", err)
			os.Exit(1)
		}
		if result.Skipped {
			fmt.Println("No user signed in; nothing to pull.")
			return
		}

		fmt.Printf("Pull complete: %d sessions updated, %d kept pending, %d statistics cached\n",
			result.Sessions, result.PendingKept, result.Statistics)
	},
}
