package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/transcript"
	"github.com/fakeyudi/testgen/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "View an exported chat transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		t, err := transcript.ParserFor(path).Parse(data)
		if err != nil {
			return err
		}

		if plainOutput {
			printTranscript(cmd.OutOrStdout(), t)
			return nil
		}
		return tui.Run(t, path)
	},
}

// printTranscript writes a plain-text summary to out.
func printTranscript(out io.Writer, t *transcript.Transcript) {
	fmt.Fprintln(out, "## Summary")
	fmt.Fprintf(out, "  Chat:      %s\n", t.Chat.Name)
	fmt.Fprintf(out, "  Chat ID:   %s\n", t.Chat.ID)
	if t.Chat.CreatedAt != "" {
		fmt.Fprintf(out, "  Created:   %s\n", t.Chat.CreatedAt)
	}
	fmt.Fprintf(out, "  Exported:  %s\n", t.Chat.ExportedAt.Format("2006-01-02 15:04:05 MST"))
	if t.Chat.Author != "" {
		fmt.Fprintf(out, "  Author:    %s\n", t.Chat.Author)
	}
	fmt.Fprintf(out, "  Messages:  %d\n", len(t.Messages))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "## Messages")
	if len(t.Messages) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for i, m := range t.Messages {
		who := m.Role
		if who == "" {
			who = "message"
		}
		fmt.Fprintf(out, "  %d. [%s] %s\n", i+1, who, oneLine(m.Content, 70))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "## Latest Response")
	if latest := t.Latest(); latest != "" {
		fmt.Fprintln(out, tui.RenderPlainMarkdown(latest, 80))
	} else {
		fmt.Fprintln(out, "  (none)")
	}
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
