package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local cache and sync status",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEnv(false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.close()

		st, err := e.manager.Status(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading status: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Database: %s\n", e.cfg.Database.Path)
		if st.UserID == "" {
			fmt.Println("User:     signed out (sync disabled)")
			return
		}

		fmt.Printf("User:     %s\n", st.UserID)
		fmt.Printf("Pending:  %d sessions, %d kills\n", st.PendingSessions, st.PendingKills)
		if !st.LastPush.IsZero() {
			fmt.Printf("Last push: %s\n", st.LastPush.Format(time.RFC3339))
		}
		if !st.LastPull.IsZero() {
			fmt.Printf("Last pull: %s\n", st.LastPull.Format(time.RFC3339))
		}
	},
}
