package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/auth"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "Backend: %s\n", app.Client.BaseURL())
		s := app.Auth.Session()
		if !s.Authenticated {
			fmt.Fprintln(out, "Not logged in")
			return nil
		}

		fmt.Fprintf(out, "Logged in as: %s\n", displayName(app))
		if s.UserID != "" {
			fmt.Fprintf(out, "User ID: %s\n", s.UserID)
		}
		if info, err := auth.TokenClaims(s.Token); err == nil {
			if !info.IssuedAt.IsZero() {
				fmt.Fprintf(out, "Token issued: %s\n", info.IssuedAt.Format(time.RFC3339))
			}
			switch {
			case info.ExpiresAt.IsZero():
			case info.Expired(time.Now()):
				fmt.Fprintf(out, "Token expired: %s\n", info.ExpiresAt.Format(time.RFC3339))
			default:
				fmt.Fprintf(out, "Token expires: %s\n", info.ExpiresAt.Format(time.RFC3339))
			}
		}

		if app.Cache != nil {
			if id, err := app.Cache.ActiveChat(cmd.Context()); err == nil && id != "" {
				fmt.Fprintf(out, "Active chat: %s\n", id)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
