package cmd

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/testgen/internal/chat"
)

func TestMessagesSendAndList(t *testing.T) {
	f, _ := testEnv(t)
	loginAs(t, "alice")

	out, err := executeCommand(rootCmd, "messages", "send", "hello", "there")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent h-1")

	_, err = executeCommand(rootCmd, "msg", "send", "--type", "code", "--language", "js", "const a = 1;")
	require.NoError(t, err)
	require.Len(t, f.history, 2)
	assert.Equal(t, chat.TypeCode, f.history[0].Type)

	out, err = executeCommand(rootCmd, "messages", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "h-2"), "newest first: %q", lines[0])
	assert.Contains(t, lines[1], "hello there")
}

func TestMessagesListHintsAtMore(t *testing.T) {
	f, _ := testEnv(t)
	for i := 5; i >= 1; i-- {
		f.history = append(f.history, chat.Message{ID: "h-" + strconv.Itoa(i), Content: "m", Type: chat.TypeText})
	}
	loginAs(t, "alice")

	out, err := executeCommand(rootCmd, "messages", "list", "-n", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "testgen messages list --before h-3")
}

func TestMessagesSendRejectsUnknownType(t *testing.T) {
	f, _ := testEnv(t)
	loginAs(t, "alice")

	_, err := executeCommand(rootCmd, "messages", "send", "--type", "image", "x")
	require.Error(t, err)
	assert.Empty(t, f.history)
}
