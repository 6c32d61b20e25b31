package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/relay"
	"github.com/fakeyudi/testgen/internal/tokenstore"
)

var (
	sidebarAddr    string
	sidebarOrigins []string
)

var sidebarCmd = &cobra.Command{
	Use:   "sidebar",
	Short: "Serve the sidebar page on localhost",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)

		addr := sidebarAddr
		if addr == "" {
			addr = app.Config.SidebarAddr
		}
		stateDir, err := tokenstore.DataDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}

		r := relay.New(relay.Options{
			Auth:         app.Auth,
			Orchestrator: app.Chats,
			Messages:     app.Messages,
			Tests:        app.Tests,
			Cache:        app.Cache,
			Language:     app.Config.Language,
			Framework:    app.Config.Framework,
		})
		defer r.Close()

		srv := relay.NewServer(r, relay.ServerOptions{
			Addr:           addr,
			AllowedOrigins: sidebarOrigins,
			StateDir:       stateDir,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Sidebar running at http://%s (Ctrl+C to stop)\n", addr)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	sidebarCmd.Flags().StringVar(&sidebarAddr, "addr", "", "listen address (default sidebar_addr)")
	sidebarCmd.Flags().StringSliceVar(&sidebarOrigins, "allow-origin", nil, "page origins allowed to connect (default: loopback only)")
	rootCmd.AddCommand(sidebarCmd)
}
