package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/auth"
	"github.com/fakeyudi/testgen/internal/logger"
	"github.com/fakeyudi/testgen/internal/profile"
)

var (
	loginUsername string
	loginPassword string

	registerUsername string
	registerEmail    string
	registerPassword string
)

// askCredentials prompts for whichever of username and password is empty
// and checks the login form rules.
func askCredentials(p *profile.Prompter, username, password string) (string, string, error) {
	var err error
	if username == "" {
		if username, err = p.Ask("Username", ""); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = p.AskSecret("Password"); err != nil {
			return "", "", err
		}
	}
	if err := auth.ValidateLogin(username, password); err != nil {
		return "", "", err
	}
	return username, password, nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		p := profile.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		username, password, err := askCredentials(p, loginUsername, loginPassword)
		if err != nil {
			return err
		}
		if err := app.Auth.Login(cmd.Context(), username, password); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Login successful!")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		p := profile.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

		form := auth.Registration{Username: registerUsername, Email: registerEmail, Password: registerPassword}
		var err error
		if form.Username == "" {
			if form.Username, err = p.Ask("Username", ""); err != nil {
				return err
			}
		}
		if form.Email == "" {
			if form.Email, err = p.Ask("Email", ""); err != nil {
				return err
			}
		}
		if form.Password == "" {
			if form.Password, err = p.AskSecret("Password"); err != nil {
				return err
			}
			if form.Confirm, err = p.AskSecret("Confirm password"); err != nil {
				return err
			}
		} else {
			form.Confirm = form.Password
		}
		if err := auth.ValidateRegistration(form); err != nil {
			return err
		}

		if err := app.Auth.Register(cmd.Context(), form.Username, form.Password); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Registration successful!")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		if err := app.Auth.Logout(); err != nil {
			return err
		}
		if app.Cache != nil {
			if err := app.Cache.Clear(cmd.Context()); err != nil {
				logger.WarnWithFields("clearing chat cache failed", logger.Fields{"error": err.Error()})
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username (prompted when empty)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (prompted when empty)")

	registerCmd.Flags().StringVarP(&registerUsername, "username", "u", "", "username (prompted when empty)")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "email (prompted when empty)")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "password (prompted with confirmation when empty)")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd)
}
