package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/profile"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Restore the saved session, or log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Unit Test Extension is now active!")

		if app.Auth.IsAuthenticated() {
			fmt.Fprintf(out, "Logged in as %s.\n", displayName(app))
			return nil
		}

		p := profile.NewPrompter(cmd.InOrStdin(), out)
		username, password, err := askCredentials(p, "", "")
		if err != nil {
			return err
		}
		if err := app.Auth.Login(cmd.Context(), username, password); err != nil {
			return err
		}
		fmt.Fprintln(out, "Login successful!")
		return nil
	},
}

func displayName(app *App) string {
	if name := app.Auth.Session().Username; name != "" {
		return name
	}
	return "(unknown user)"
}

func init() {
	rootCmd.AddCommand(startCmd)
}
