package chat

import "encoding/json"

// MessageType is the kind of a chat message.
type MessageType string

const (
	TypeText MessageType = "text"
	TypeCode MessageType = "code"
	TypeTest MessageType = "test"
)

// Sender identifies who wrote a message.
type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Metadata is the optional annotation on code and test messages.
type Metadata struct {
	Language string `json:"language,omitempty"`
	TestID   string `json:"testId,omitempty"`
}

// Message is one entry of a chat's history.
type Message struct {
	ID        string      `json:"id,omitempty"`
	ChatID    string      `json:"chatId,omitempty"`
	Sender    *Sender     `json:"sender,omitempty"`
	Role      string      `json:"role,omitempty"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Metadata  *Metadata   `json:"metadata,omitempty"`
}

// Chat is the client's read-only copy of a server-side chat.
type Chat struct {
	ChatID    string    `json:"chatId"`
	Name      string    `json:"name"`
	CreatedAt string    `json:"createdAt,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
}

// UnmarshalJSON accepts both "chatId" and "id" for the identifier.
func (c *Chat) UnmarshalJSON(data []byte) error {
	type plain Chat
	var aux struct {
		plain
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Chat(aux.plain)
	if c.ChatID == "" {
		c.ChatID = aux.ID
	}
	return nil
}
