package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/config"
	"github.com/fakeyudi/testgen/internal/logger"
	"github.com/fakeyudi/testgen/internal/profile"
)

// baseURLFlag overrides base_url from config files and the environment.
var baseURLFlag string

var rootCmd = &cobra.Command{
	Use:          "testgen",
	Short:        "Generate, fix and run unit tests with the testgen backend",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// First-run: profile missing → run setup wizard automatically.
		// Only do this when stdin is an interactive terminal.
		if !profile.Exists() && term.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to testgen! Looks like this is your first time.")
			if err := runSetup(cmd, true); err != nil {
				return err
			}
		}

		var prof *profile.Profile
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			prof = p
		}

		cfg, err := loadConfig(prof)
		if err != nil {
			return err
		}
		logger.Init(cfg.LogLevel)

		app, err := newApp(cfg, prof)
		if err != nil {
			return err
		}
		cmd.SetContext(withApp(cmd.Context(), app))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app := appFrom(cmd); app != nil {
			return app.Close()
		}
		return nil
	},
}

// loadConfig layers defaults, the global and project files, .env and
// TESTGEN_* variables, the --base-url flag, then fills gaps from prof.
func loadConfig(prof *profile.Profile) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, fmt.Errorf("loading .env: %w", err)
	}
	global, err := config.LoadGlobal()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading global config: %w", err)
	}
	project, err := config.LoadProject()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading project config: %w", err)
	}
	cfg := config.ApplyEnv(config.Merge(global, project))
	if baseURLFlag != "" {
		cfg.BaseURL = baseURLFlag
	}

	// Profile values fill in config gaps.
	if prof != nil {
		defaults := config.Defaults()
		if cfg.Language == defaults.Language && prof.Language != "" {
			cfg.Language = prof.Language
			cfg.Framework = prof.Framework
		}
		if cfg.OutputDir == defaults.OutputDir && prof.TestsDir != "" {
			cfg.OutputDir = prof.TestsDir
		}
	}
	return cfg, nil
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "backend URL (overrides config)")
}
