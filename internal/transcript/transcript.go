// Package transcript turns a chat and its messages into a portable file, in
// Markdown for people or JSON for tools, and reads such files back.
package transcript

import (
	"time"

	"github.com/fakeyudi/testgen/internal/chat"
)

// Transcript is the complete, renderable record of one chat.
type Transcript struct {
	Chat     ChatMeta       `json:"chat"`
	Messages []chat.Message `json:"messages"`
}

// ChatMeta holds summary metadata about the exported chat.
type ChatMeta struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  string    `json:"created_at,omitempty"` // as sent by the backend
	ExportedAt time.Time `json:"exported_at"`
	Author     string    `json:"author,omitempty"`
}

// New builds a transcript of c with msgs in the order given.
func New(c chat.Chat, msgs []chat.Message, author string, now time.Time) *Transcript {
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return &Transcript{
		Chat: ChatMeta{
			ID:         c.ChatID,
			Name:       c.Name,
			CreatedAt:  c.CreatedAt,
			ExportedAt: now.UTC().Truncate(time.Second),
			Author:     author,
		},
		Messages: msgs,
	}
}

// Latest returns the content of the last message, or "" for an empty chat.
func (t *Transcript) Latest() string {
	if len(t.Messages) == 0 {
		return ""
	}
	return t.Messages[len(t.Messages)-1].Content
}
