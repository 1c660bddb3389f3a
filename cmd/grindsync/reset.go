package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete ALL grind data for the signed-in user",
	Long: `Zero out all stats: delete every kill record and session for the
signed-in user, remotely and locally. This cannot be undone.

The remote delete runs first; if it fails (e.g. offline), nothing is
touched locally.`,
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEnv(true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.close()

		if e.manager.UserID() == "" {
			fmt.Fprintln(os.Stderr, "Error: no user signed in")
			os.Exit(1)
		}

		if !resetForce {
			fmt.Print("This permanently deletes all sessions and kills. Type 'yes' to continue: ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
				fmt.Println("Aborted.")
				return
			}
		}

		if err := e.manager.ResetAllData(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: reset failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("All grind data deleted.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "skip the confirmation prompt")
}
