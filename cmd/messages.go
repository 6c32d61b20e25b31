package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/chat"
)

var (
	messagesLimit   int
	messagesBefore  string
	messageType     string
	messageLanguage string
	messageTestID   string
)

var messagesCmd = &cobra.Command{
	Use:     "messages",
	Aliases: []string{"msg"},
	Short:   "Browse and edit the message history",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return appFrom(cmd).requireLogin()
	},
}

var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List messages, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		msgs, err := app.Messages.GetMessages(cmd.Context(), messagesLimit, messagesBefore)
		if err != nil {
			return err
		}
		printMessages(cmd.OutOrStdout(), msgs)
		if len(msgs) == messagesLimit {
			fmt.Fprintf(cmd.OutOrStdout(), "\nMore with: testgen messages list --before %s\n", msgs[len(msgs)-1].ID)
		}
		return nil
	},
}

var messagesSendCmd = &cobra.Command{
	Use:   "send <content>",
	Short: "Post a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		typ := chat.MessageType(messageType)
		switch typ {
		case chat.TypeText, chat.TypeCode, chat.TypeTest:
		default:
			return fmt.Errorf("invalid --type %q: want text, code or test", messageType)
		}

		content := strings.Join(args, " ")
		var (
			msg *chat.Message
			err error
		)
		switch {
		case typ == chat.TypeCode && messageTestID == "":
			msg, err = app.Messages.SendCodeMessage(cmd.Context(), content, messageLanguage)
		default:
			var md *chat.Metadata
			if messageLanguage != "" || messageTestID != "" {
				md = &chat.Metadata{Language: messageLanguage, TestID: messageTestID}
			}
			msg, err = app.Messages.SendMessage(cmd.Context(), content, typ, md)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %s\n", msg.ID)
		return nil
	},
}

var messagesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one message in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := appFrom(cmd).Messages.GetMessage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:        %s\n", msg.ID)
		fmt.Fprintf(out, "Type:      %s\n", msg.Type)
		if msg.Role != "" {
			fmt.Fprintf(out, "Role:      %s\n", msg.Role)
		}
		if msg.Sender != nil {
			fmt.Fprintf(out, "Sender:    %s\n", msg.Sender.Name)
		}
		if msg.Timestamp != "" {
			fmt.Fprintf(out, "Timestamp: %s\n", msg.Timestamp)
		}
		if msg.Metadata != nil {
			if msg.Metadata.Language != "" {
				fmt.Fprintf(out, "Language:  %s\n", msg.Metadata.Language)
			}
			if msg.Metadata.TestID != "" {
				fmt.Fprintf(out, "Test:      %s\n", msg.Metadata.TestID)
			}
		}
		fmt.Fprintf(out, "\n%s\n", msg.Content)
		return nil
	},
}

var messagesEditCmd = &cobra.Command{
	Use:   "edit <id> <content>",
	Short: "Replace a message's content",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := appFrom(cmd).Messages.EditMessage(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Edited %s\n", msg.ID)
		return nil
	},
}

var messagesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appFrom(cmd).Messages.DeleteMessage(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var messagesSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the message history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msgs, err := appFrom(cmd).Messages.SearchMessages(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
			return nil
		}
		printMessages(cmd.OutOrStdout(), msgs)
		return nil
	},
}

func printMessages(out io.Writer, msgs []chat.Message) {
	for _, m := range msgs {
		who := m.Role
		if who == "" && m.Sender != nil {
			who = m.Sender.Name
		}
		if who == "" {
			who = "-"
		}
		fmt.Fprintf(out, "%-12s %-5s %-10s %s\n", m.ID, m.Type, who, oneLine(m.Content, 60))
	}
}

// oneLine returns the first line of s, cut to n runes.
func oneLine(s string, n int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return line
}

func init() {
	messagesListCmd.Flags().IntVarP(&messagesLimit, "limit", "n", chat.DefaultPageSize, "page size")
	messagesListCmd.Flags().StringVar(&messagesBefore, "before", "", "only messages older than this id")

	messagesSendCmd.Flags().StringVar(&messageType, "type", string(chat.TypeText), "text, code or test")
	messagesSendCmd.Flags().StringVar(&messageLanguage, "language", "", "language of a code message")
	messagesSendCmd.Flags().StringVar(&messageTestID, "test-id", "", "test a test message refers to")

	messagesCmd.AddCommand(messagesListCmd, messagesSendCmd, messagesGetCmd, messagesEditCmd, messagesDeleteCmd, messagesSearchCmd)
	rootCmd.AddCommand(messagesCmd)
}
