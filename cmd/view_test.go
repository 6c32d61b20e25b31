package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/testgen/internal/chat"
	"github.com/fakeyudi/testgen/internal/transcript"
)

func sampleTranscript() *transcript.Transcript {
	c := chat.Chat{ChatID: "chat-7", Name: "Sum tests", CreatedAt: "2026-10-18T09:00:00Z"}
	msgs := []chat.Message{
		{ID: "m-1", Role: "user", Content: "Write unit tests for the following function."},
		{ID: "m-2", Role: "assistant", Content: "```js\ntest('adds', () => expect(sum(1, 2)).toBe(3));\n```"},
	}
	return transcript.New(c, msgs, "alice", time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC))
}

func writeTranscript(t *testing.T, r transcript.Renderer, name string) string {
	t.Helper()
	data, err := r.Render(sampleTranscript())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestViewPlain(t *testing.T) {
	testEnv(t)

	for _, tc := range []struct {
		name     string
		renderer transcript.Renderer
	}{
		{"chat.json", &transcript.JSONRenderer{}},
		{"chat.md", &transcript.MarkdownRenderer{}},
	} {
		path := writeTranscript(t, tc.renderer, tc.name)
		out, err := executeCommand(rootCmd, "view", "--plain", path)
		if err != nil {
			t.Fatalf("%s: view: %v", tc.name, err)
		}
		for _, want := range []string{"Chat:      Sum tests", "Chat ID:   chat-7", "Messages:  2", "Author:    alice", "test('adds'"} {
			if !strings.Contains(out, want) {
				t.Errorf("%s: expected %q in output, got:\n%s", tc.name, want, out)
			}
		}
	}
}

func TestViewMissingFile(t *testing.T) {
	testEnv(t)

	_, err := executeCommand(rootCmd, "view", "--plain", filepath.Join(t.TempDir(), "nope.md"))
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Fatalf("err = %v, want file not found", err)
	}
}

// Feature: testgen, Property 17: the plain view lists sections in order
func TestViewSectionOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(rt, "messages")
		msgs := make([]chat.Message, n)
		for i := range msgs {
			msgs[i] = chat.Message{
				Role:    rapid.SampledFrom([]string{"user", "assistant", ""}).Draw(rt, "role"),
				Content: rapid.StringMatching(`[a-z ]{1,40}`).Draw(rt, "content"),
			}
		}
		tr := transcript.New(chat.Chat{ChatID: "c", Name: "n"}, msgs, "", time.Now())

		var sb strings.Builder
		printTranscript(&sb, tr)
		out := sb.String()

		last := -1
		for _, section := range []string{"## Summary", "## Messages", "## Latest Response"} {
			idx := strings.Index(out, section)
			if idx <= last {
				rt.Fatalf("section %q out of order in:\n%s", section, out)
			}
			last = idx
		}
	})
}
