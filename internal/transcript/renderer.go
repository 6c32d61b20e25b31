package transcript

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fakeyudi/testgen/internal/chat"
)

// Renderer serializes a Transcript to bytes.
type Renderer interface {
	Render(t *Transcript) ([]byte, error)
}

// JSONRenderer renders a Transcript as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(t *Transcript) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// MarkdownRenderer renders a Transcript as readable Markdown with an embedded
// base64 JSON payload for round-trip parsing.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(t *Transcript) ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(versionSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, base64.StdEncoding.EncodeToString(raw), dataSuffix)

	name := t.Chat.Name
	if name == "" {
		name = t.Chat.ID
	}
	fmt.Fprintf(&sb, "# Chat: %s\n\n", name)

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Chat ID: %s\n", t.Chat.ID)
	if t.Chat.CreatedAt != "" {
		fmt.Fprintf(&sb, "- Created: %s\n", t.Chat.CreatedAt)
	}
	fmt.Fprintf(&sb, "- Exported: %s\n", t.Chat.ExportedAt.Format("2006-01-02 15:04:05 MST"))
	if t.Chat.Author != "" {
		fmt.Fprintf(&sb, "- Author: %s\n", t.Chat.Author)
	}
	fmt.Fprintf(&sb, "- Messages: %d\n\n", len(t.Messages))

	sb.WriteString("## Messages\n\n")
	if len(t.Messages) == 0 {
		sb.WriteString("_No messages._\n\n")
	}
	for i, m := range t.Messages {
		fmt.Fprintf(&sb, "### %d. %s\n\n", i+1, heading(m))
		writeBody(&sb, m)
		sb.WriteString("\n")
	}

	if latest := t.Latest(); latest != "" {
		sb.WriteString("## Latest Response\n\n")
		lang, body := "", latest
		if strings.HasPrefix(latest, "```") {
			lang = chat.LanguageTag(latest)
			body = strings.TrimPrefix(strings.TrimPrefix(chat.CleanResponse(latest), lang), "\n")
		}
		writeFence(&sb, lang, body)
	}

	return []byte(sb.String()), nil
}

func heading(m chat.Message) string {
	who := m.Role
	if m.Sender != nil && m.Sender.Name != "" {
		who = m.Sender.Name
	}
	if who == "" {
		who = "message"
	}
	parts := []string{who}
	if m.Type != "" && m.Type != chat.TypeText {
		parts = append(parts, "("+string(m.Type)+")")
	}
	if m.Timestamp != "" {
		parts = append(parts, m.Timestamp)
	}
	return strings.Join(parts, " ")
}

func writeBody(sb *strings.Builder, m chat.Message) {
	if m.Type == chat.TypeCode || m.Type == chat.TypeTest {
		lang := ""
		if m.Metadata != nil {
			lang = m.Metadata.Language
		}
		writeFence(sb, lang, m.Content)
		return
	}
	sb.WriteString(m.Content)
	if !strings.HasSuffix(m.Content, "\n") {
		sb.WriteString("\n")
	}
}

func writeFence(sb *strings.Builder, lang, body string) {
	fmt.Fprintf(sb, "```%s\n", lang)
	sb.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")
}
