package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/api"
	"github.com/fakeyudi/testgen/internal/chat"
	"github.com/fakeyudi/testgen/internal/logger"
	"github.com/fakeyudi/testgen/internal/source"
	"github.com/fakeyudi/testgen/internal/transcript"
	"github.com/fakeyudi/testgen/internal/tui"
)

var (
	chatIDFlag    string
	chatNameFlag  string
	chatLanguage  string
	chatFramework string
	chatLines     string
	chatSnippet   string
	chatFile      string
	chatPlain     bool
	exportFormat  string
	exportOutput  string
)

var errNoChatGiven = errors.New("no active chat, run 'testgen chat new <name>' or pass --chat")

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Create chats and generate tests in them",
}

var chatNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a chat and make it the active one",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		if err := app.requireLogin(); err != nil {
			return err
		}
		bound, err := app.Chats.CreateChat(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		remember(cmd.Context(), app, bound)
		fmt.Fprintf(cmd.OutOrStdout(), "Chat created: %s (%s)\n", bound.Name(), bound.ID())
		return nil
	},
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your chats",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		if err := app.requireLogin(); err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		chats, err := app.Chats.ListChats(ctx)
		switch {
		case err == nil:
			if app.Cache != nil {
				if err := app.Cache.PutChats(ctx, chats); err != nil {
					logger.WarnWithFields("caching chats failed", logger.Fields{"error": err.Error()})
				}
			}
		case errors.Is(err, api.ErrUnreachable) && app.Cache != nil:
			cached, cerr := app.Cache.Chats(ctx)
			if cerr != nil || len(cached) == 0 {
				return err
			}
			fmt.Fprintln(out, "(backend unreachable, showing cached chats)")
			chats = cached
		default:
			return err
		}

		if len(chats) == 0 {
			fmt.Fprintln(out, "No chats yet.")
			return nil
		}
		active := activeChatID(ctx, app)
		for _, c := range chats {
			marker := " "
			if c.ChatID == active {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-24s %s\n", marker, c.ChatID, c.Name)
		}
		return nil
	},
}

var chatGenerateCmd = &cobra.Command{
	Use:   "generate <file|dir>",
	Short: "Generate unit tests for a source file",
	Long: "Generates unit tests for a source file in a new chat, or in --chat.\n" +
		"A directory generates for every supported file under it, one chat per file,\n" +
		"skipping hidden directories and .gitignore/.testgenignore matches.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		if err := app.requireLogin(); err != nil {
			return err
		}

		info, err := os.Stat(args[0])
		if err != nil {
			return fmt.Errorf("reading source file: %w", err)
		}
		if !info.IsDir() {
			f, err := readSource(args[0], chatLines)
			if err != nil {
				return err
			}
			return generateFor(cmd, app, f)
		}

		if chatLines != "" || chatIDFlag != "" || chatNameFlag != "" {
			return errors.New("--lines, --chat and --name need a single file")
		}
		fd := &source.Finder{Root: args[0]}
		files, warnings, err := fd.Find()
		if err != nil {
			return err
		}
		for _, w := range warnings {
			logger.WarnWithFields("skipping path", logger.Fields{"reason": w})
		}
		if len(files) == 0 {
			return fmt.Errorf("no supported source files under %s", args[0])
		}
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "==> %s\n", f.Path)
			if err := generateFor(cmd, app, f); err != nil {
				return err
			}
		}
		return nil
	},
}

// generateFor sends f to a new chat, or to --chat, and shows the reply.
func generateFor(cmd *cobra.Command, app *App, f *source.File) error {
	ctx := cmd.Context()
	lang, framework, err := pickTarget(app, f, chatLanguage, chatFramework)
	if err != nil {
		return err
	}

	var bound *chat.BoundChat
	if chatIDFlag != "" {
		bound, err = resolveChat(ctx, app, chatIDFlag)
	} else {
		name := chatNameFlag
		if name == "" {
			name = chatNameFor(f.Name)
		}
		bound, err = app.Chats.CreateChat(ctx, name)
	}
	if err != nil {
		return err
	}
	remember(ctx, app, bound)

	logger.InfoWithFields("generating tests", logger.Fields{
		"chat_id": bound.ID(), "file": f.Path, "language": lang, "framework": framework,
	})
	content, err := bound.SendPrompt(ctx, f.Content, lang, framework)
	if err != nil {
		return err
	}
	return showResponse(cmd, bound.ID(), content)
}

var chatFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Ask for a repaired version of a test snippet",
	Long: "Sends a test snippet back to the active chat (or --chat) and asks for a fix.\n" +
		"The snippet comes from --snippet, from --file with --lines, or from stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		if err := app.requireLogin(); err != nil {
			return err
		}
		ctx := cmd.Context()

		snippet, err := readSnippet(cmd.InOrStdin())
		if err != nil {
			return err
		}
		bound, err := resolveChat(ctx, app, chatIDFlag)
		if err != nil {
			return err
		}

		previous, err := bound.FetchLatestResponse(ctx)
		if err != nil && !errors.Is(err, chat.ErrNoMessages) {
			return err
		}
		content, err := bound.SendFollowUp(ctx, snippet, previous)
		if err != nil {
			return err
		}
		return showResponse(cmd, bound.ID(), content)
	},
}

var chatLatestCmd = &cobra.Command{
	Use:   "latest [chatId]",
	Short: "Show the latest reply of a chat",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		if err := app.requireLogin(); err != nil {
			return err
		}
		ctx := cmd.Context()

		bound, err := resolveChat(ctx, app, firstArg(args))
		if err != nil {
			return err
		}
		content, err := bound.FetchLatestResponse(ctx)
		if errors.Is(err, api.ErrUnreachable) && app.Cache != nil {
			if cached, cerr := app.Cache.Latest(ctx, bound.ID()); cerr == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "(backend unreachable, showing cached reply)")
				content, err = cached, nil
			}
		}
		if err != nil {
			return err
		}
		return showResponse(cmd, bound.ID(), content)
	},
}

var chatExportCmd = &cobra.Command{
	Use:   "export [chatId]",
	Short: "Write a chat's history to a transcript file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		if err := app.requireLogin(); err != nil {
			return err
		}
		ctx := cmd.Context()

		bound, err := resolveChat(ctx, app, firstArg(args))
		if err != nil {
			return err
		}
		meta := chatMeta(ctx, app, bound.ID())

		msgs, err := bound.Messages(ctx)
		switch {
		case err == nil:
			if app.Cache != nil {
				if err := app.Cache.PutMessages(ctx, bound.ID(), msgs); err != nil {
					logger.WarnWithFields("caching messages failed", logger.Fields{"error": err.Error()})
				}
			}
		case errors.Is(err, api.ErrUnreachable) && app.Cache != nil:
			cached, cerr := app.Cache.Messages(ctx, bound.ID())
			if cerr != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "(backend unreachable, exporting cached messages)")
			msgs = cached
		default:
			return err
		}

		now := time.Now()
		t := transcript.New(meta, msgs, app.author(), now)

		format := exportFormat
		if format == "" && app.Profile != nil {
			format = app.Profile.ExportFormat
		}
		var renderer transcript.Renderer
		ext := ".md"
		if format == "json" {
			renderer = &transcript.JSONRenderer{}
			ext = ".json"
		} else {
			renderer = &transcript.MarkdownRenderer{}
		}
		data, err := renderer.Render(t)
		if err != nil {
			return fmt.Errorf("render transcript: %w", err)
		}

		dir := exportOutput
		if dir == "" {
			dir = app.Config.OutputDir
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		path := filepath.Join(dir, "chat-"+bound.ID()+"-"+now.Format("20060102-150405")+ext)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", len(msgs), path)
		return nil
	},
}

// resolveChat binds ref, which may be a chat id or the name of a cached
// chat. An empty ref uses the active chat.
func resolveChat(ctx context.Context, app *App, ref string) (*chat.BoundChat, error) {
	if ref == "" {
		ref = activeChatID(ctx, app)
		if ref == "" {
			return nil, errNoChatGiven
		}
	} else if app.Cache != nil {
		if id, err := app.Cache.FindByName(ctx, ref); err == nil {
			ref = id
		}
	}
	bound, err := app.Chats.Resume(ref)
	if err != nil {
		return nil, err
	}
	remember(ctx, app, bound)
	return bound, nil
}

func activeChatID(ctx context.Context, app *App) string {
	if app.Cache == nil {
		return ""
	}
	id, err := app.Cache.ActiveChat(ctx)
	if err != nil {
		logger.WarnWithFields("reading active chat failed", logger.Fields{"error": err.Error()})
	}
	return id
}

// remember makes bound the active chat for later commands.
func remember(ctx context.Context, app *App, bound *chat.BoundChat) {
	if app.Cache == nil {
		return
	}
	if bound.Name() != "" {
		if err := app.Cache.PutChats(ctx, []chat.Chat{{ChatID: bound.ID(), Name: bound.Name()}}); err != nil {
			logger.WarnWithFields("caching chat failed", logger.Fields{"error": err.Error()})
		}
	}
	if err := app.Cache.SetActiveChat(ctx, bound.ID()); err != nil {
		logger.WarnWithFields("recording active chat failed", logger.Fields{"error": err.Error()})
	}
}

// chatMeta finds the name and creation time of id, from the backend when
// it answers, else from the cache.
func chatMeta(ctx context.Context, app *App, id string) chat.Chat {
	if chats, err := app.Chats.ListChats(ctx); err == nil {
		for _, c := range chats {
			if c.ChatID == id {
				return c
			}
		}
	}
	if app.Cache != nil {
		if chats, err := app.Cache.Chats(ctx); err == nil {
			for _, c := range chats {
				if c.ChatID == id {
					return c
				}
			}
		}
	}
	return chat.Chat{ChatID: id}
}

var unsafeChatName = regexp.MustCompile(`[^a-zA-Z0-9\s.,!?-]+`)

// chatNameFor turns a file name into a chat name the backend accepts.
func chatNameFor(file string) string {
	name := strings.TrimSpace(unsafeChatName.ReplaceAllString(file, " "))
	if name == "" {
		return "Tests"
	}
	return "Tests for " + name
}

// pickTarget resolves the generator language and framework from flags, the
// file and the configured defaults.
func pickTarget(app *App, f *source.File, lang, framework string) (string, string, error) {
	if lang == "" {
		lang = f.Language()
	}
	if lang == "" {
		lang = app.Config.Language
	}
	if chat.Frameworks(lang) == nil {
		return "", "", fmt.Errorf("unsupported language %q (choose from %s)", lang, strings.Join(chat.Languages, ", "))
	}
	if framework == "" {
		framework = app.Config.Framework
		if !chat.SupportsFramework(lang, framework) {
			framework = chat.DefaultFramework(lang)
		}
	}
	if !chat.SupportsFramework(lang, framework) {
		return "", "", fmt.Errorf("%s is not offered for %s (choose from %s)",
			framework, lang, strings.Join(chat.Frameworks(lang), ", "))
	}
	return lang, framework, nil
}

// readSource reads path, or the line range given as "from-to" or "from".
func readSource(path, lines string) (*source.File, error) {
	if lines == "" {
		return source.Read(path)
	}
	from, to, err := parseLines(lines)
	if err != nil {
		return nil, err
	}
	return source.ReadLines(path, from, to)
}

func parseLines(s string) (int, int, error) {
	fromStr, toStr, ranged := strings.Cut(s, "-")
	from, err := strconv.Atoi(strings.TrimSpace(fromStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --lines %q: want FROM-TO", s)
	}
	if !ranged {
		return from, from, nil
	}
	to, err := strconv.Atoi(strings.TrimSpace(toStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --lines %q: want FROM-TO", s)
	}
	return from, to, nil
}

func readSnippet(stdin io.Reader) (string, error) {
	switch {
	case chatSnippet != "":
		return chatSnippet, nil
	case chatFile != "":
		f, err := readSource(chatFile, chatLines)
		if err != nil {
			return "", err
		}
		return f.Content, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading snippet: %w", err)
	}
	snippet := strings.TrimSpace(string(data))
	if snippet == "" {
		return "", errors.New("no snippet given: use --snippet, --file or stdin")
	}
	return snippet, nil
}

// showResponse opens the viewer on a terminal and prints the raw reply
// otherwise, or with --plain.
func showResponse(cmd *cobra.Command, chatID, content string) error {
	if f, ok := cmd.OutOrStdout().(*os.File); ok && !chatPlain && term.IsTerminal(f.Fd()) {
		return tui.RunResponse(chatID, content)
	}
	fmt.Fprintln(cmd.OutOrStdout(), content)
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func init() {
	chatGenerateCmd.Flags().StringVar(&chatLanguage, "language", "", "target language code (default: detected from the file)")
	chatGenerateCmd.Flags().StringVar(&chatFramework, "framework", "", "test framework")
	chatGenerateCmd.Flags().StringVar(&chatLines, "lines", "", "only send lines FROM-TO of the file")
	chatGenerateCmd.Flags().StringVar(&chatIDFlag, "chat", "", "send to this chat instead of creating one")
	chatGenerateCmd.Flags().StringVar(&chatNameFlag, "name", "", "name of the chat to create")

	chatFixCmd.Flags().StringVar(&chatIDFlag, "chat", "", "chat id or name (default: active chat)")
	chatFixCmd.Flags().StringVar(&chatSnippet, "snippet", "", "test code to fix")
	chatFixCmd.Flags().StringVar(&chatFile, "file", "", "read the snippet from this file")
	chatFixCmd.Flags().StringVar(&chatLines, "lines", "", "with --file, only lines FROM-TO")

	chatExportCmd.Flags().StringVar(&exportFormat, "format", "", "markdown or json (default from profile)")
	chatExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "directory to write to (default output_dir)")

	for _, c := range []*cobra.Command{chatGenerateCmd, chatFixCmd, chatLatestCmd} {
		c.Flags().BoolVar(&chatPlain, "plain", false, "print the reply instead of opening the viewer")
	}

	chatCmd.AddCommand(chatNewCmd, chatListCmd, chatGenerateCmd, chatFixCmd, chatLatestCmd, chatExportCmd)
	rootCmd.AddCommand(chatCmd)
}
