package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/huntmate/grindsync/internal/config"
	"github.com/huntmate/grindsync/internal/daemon"
	"github.com/huntmate/grindsync/internal/dashboard"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run the sync daemon for the lifetime of the desktop session.

The daemon:
  1. Pushes pending changes immediately, then every sync.pushInterval
  2. Watches the auth-state file and pulls on sign-in
  3. Serves the local WebSocket status feed for the UI`,
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEnv(true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.close()

		var feed *dashboard.Server
		if e.cfg.Dashboard.Enabled {
			feed = dashboard.NewServer(&dashboard.Config{
				Port:   e.cfg.Dashboard.Port,
				Status: e.manager.Status,
				Logger: config.NewLogger("[dashboard] ", e.cfg.Log),
			})
			if err := feed.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
				os.Exit(1)
			}
			defer feed.Stop()
		}

		dcfg := &daemon.Config{
			PushInterval:  e.cfg.Sync.PushInterval,
			AuthStateFile: e.cfg.Sync.AuthStateFile,
			Logger:        config.NewLogger("[daemon] ", e.cfg.Log),
		}
		if feed != nil {
			dcfg.Broadcaster = feed
		}

		d, err := daemon.New(e.manager, dcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}
