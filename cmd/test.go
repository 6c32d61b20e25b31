package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/source"
	"github.com/fakeyudi/testgen/internal/testcase"
)

var (
	testSaveDir     string
	testName        string
	testDescription string
	testExpected    string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Store and run test cases on the backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return appFrom(cmd).requireLogin()
	},
}

var testCreateCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Store a source file as a test case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := source.Read(args[0])
		if err != nil {
			return err
		}
		tc, err := appFrom(cmd).Tests.Create(cmd.Context(), testcase.FromFile(f))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Test case \"%s\" created (%s)\n", tc.Name, tc.ID)
		return nil
	},
}

var testRunCmd = &cobra.Command{
	Use:   "run <file|id>",
	Short: "Run one stored test",
	Long:  "Runs a stored test. A path to an existing file runs the stored test named after it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		id, err := testID(cmd.Context(), app, args[0])
		if err != nil {
			return err
		}
		tc, err := app.Tests.Run(cmd.Context(), id)
		if err != nil {
			return err
		}
		msg := testcase.RunMessage(tc)
		if tc.Status != testcase.StatusPassed {
			return errors.New(msg)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var testRunAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run every stored test",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := appFrom(cmd).Tests.RunAll(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i := range results {
			fmt.Fprintf(out, "  %s\n", testcase.RunMessage(&results[i]))
		}
		passed, failed := testcase.Summary(results)
		summary := fmt.Sprintf("Tests completed: %d passed, %d failed", passed, failed)
		if failed > 0 {
			return errors.New(summary)
		}
		fmt.Fprintln(out, summary)
		return nil
	},
}

var testListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tests",
	RunE: func(cmd *cobra.Command, args []string) error {
		tests, err := appFrom(cmd).Tests.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(tests) == 0 {
			fmt.Fprintln(out, "No stored tests.")
			return nil
		}
		for _, tc := range tests {
			fmt.Fprintf(out, "%-24s %-8s %-12s %s\n", tc.ID, tc.Status, tc.Language, tc.Name)
		}
		return nil
	},
}

var testSaveCmd = &cobra.Command{
	Use:   "save <id>",
	Short: "Write a stored test to tests/<name>.<ext>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		tc, err := app.Tests.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		root := testSaveDir
		if root == "" {
			root = app.Config.OutputDir
		}
		path, err := testcase.SaveToFile(root, tc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Test saved to %s\n", path)
		return nil
	},
}

var testDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appFrom(cmd).Tests.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var testUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a stored test's name, description or expected output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := map[string]any{}
		if cmd.Flags().Changed("name") {
			patch["name"] = testName
		}
		if cmd.Flags().Changed("description") {
			patch["description"] = testDescription
		}
		if cmd.Flags().Changed("expected") {
			patch["expectedOutput"] = testExpected
		}
		if len(patch) == 0 {
			return errors.New("nothing to update: pass --name, --description or --expected")
		}
		tc, err := appFrom(cmd).Tests.Update(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", tc.ID, tc.Name)
		return nil
	},
}

var testShareCmd = &cobra.Command{
	Use:   "share <id>",
	Short: "Post a stored test into the message history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		tc, err := app.Tests.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		msg, err := app.Messages.SendTestMessage(cmd.Context(), tc.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Shared \"%s\" as message %s\n", tc.Name, msg.ID)
		return nil
	},
}

// testID maps a file argument to the id of the stored test named after it.
// Anything that is not an existing file is taken as an id.
func testID(ctx context.Context, app *App, arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil || info.IsDir() {
		return arg, nil
	}
	base := filepath.Base(arg)
	tc, err := app.Tests.FindByName(ctx, strings.TrimSuffix(base, filepath.Ext(base)))
	if err != nil {
		return "", err
	}
	return tc.ID, nil
}

func init() {
	testSaveCmd.Flags().StringVar(&testSaveDir, "dir", "", "root the tests/ directory is created under (default output_dir)")

	testUpdateCmd.Flags().StringVar(&testName, "name", "", "new name")
	testUpdateCmd.Flags().StringVar(&testDescription, "description", "", "new description")
	testUpdateCmd.Flags().StringVar(&testExpected, "expected", "", "new expected output")

	testCmd.AddCommand(testCreateCmd, testRunCmd, testRunAllCmd, testListCmd, testSaveCmd,
		testUpdateCmd, testShareCmd, testDeleteCmd)
	rootCmd.AddCommand(testCmd)
}
