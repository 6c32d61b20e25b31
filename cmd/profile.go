package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/auth"
	"github.com/fakeyudi/testgen/internal/profile"
)

var profileUpdate bool

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your account",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		if err := app.requireLogin(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		// Pre-fill from the stored record; unreadable records fall back to blanks.
		var current auth.ProfileUpdate
		if u := app.Auth.StoredUser(); u != nil {
			current.Username = u.Username
		}

		if !profileUpdate {
			fmt.Fprintf(out, "Username: %s\n", current.Username)
			fmt.Fprintf(out, "User ID:  %s\n", app.Auth.Session().UserID)
			if app.Profile != nil {
				fmt.Fprintf(out, "Language: %s (%s)\n", app.Profile.Language, app.Profile.Framework)
			}
			return nil
		}

		p := profile.NewPrompter(cmd.InOrStdin(), out)
		var err error
		if current.Username, err = p.Ask("Username", current.Username); err != nil {
			return err
		}
		if current.Email, err = p.Ask("Email", ""); err != nil {
			return err
		}
		if current.Password, err = p.AskSecret("Password"); err != nil {
			return err
		}
		if err := auth.ValidateProfile(current.Username, current.Email, current.Password); err != nil {
			return err
		}

		if err := app.Auth.UpdateProfile(cmd.Context(), current); err != nil {
			return err
		}
		fmt.Fprintln(out, "Profile updated successfully!")
		return nil
	},
}

func init() {
	profileCmd.Flags().BoolVar(&profileUpdate, "update", false, "change username, email and password")
	rootCmd.AddCommand(profileCmd)
}
