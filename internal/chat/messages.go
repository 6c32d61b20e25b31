package chat

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// MessageEndpoint is the root of the message history API.
const MessageEndpoint = "/chat/messages"

// DefaultPageSize is the page size the history pager asks for.
const DefaultPageSize = 50

// MessageService wraps the /chat/messages endpoints.
type MessageService struct {
	backend Backend
}

// NewMessageService returns a MessageService using backend.
func NewMessageService(backend Backend) *MessageService {
	return &MessageService{backend: backend}
}

type sendMessageRequest struct {
	Content  string      `json:"content"`
	Type     MessageType `json:"type"`
	Metadata *Metadata   `json:"metadata,omitempty"`
}

// GetMessages returns up to limit messages older than before. An empty
// before starts from the newest message.
func (s *MessageService) GetMessages(ctx context.Context, limit int, before string) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	if before != "" {
		params.Set("before", before)
	}
	var out []Message
	if err := s.backend.Get(ctx, MessageEndpoint, params, &out); err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	return out, nil
}

// SendMessage posts a message. An empty type is sent as text.
func (s *MessageService) SendMessage(ctx context.Context, content string, typ MessageType, md *Metadata) (*Message, error) {
	if typ == "" {
		typ = TypeText
	}
	var out Message
	req := sendMessageRequest{Content: content, Type: typ, Metadata: md}
	if err := s.backend.Post(ctx, MessageEndpoint, req, &out); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	return &out, nil
}

// SendCodeMessage posts code tagged with its language.
func (s *MessageService) SendCodeMessage(ctx context.Context, code, language string) (*Message, error) {
	return s.SendMessage(ctx, code, TypeCode, &Metadata{Language: language})
}

// SendTestMessage shares a stored test case into the history.
func (s *MessageService) SendTestMessage(ctx context.Context, testID string) (*Message, error) {
	return s.SendMessage(ctx, "Test shared", TypeTest, &Metadata{TestID: testID})
}

// DeleteMessage removes a message.
func (s *MessageService) DeleteMessage(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, MessageEndpoint+"/"+id, nil); err != nil {
		return fmt.Errorf("deleting message %s: %w", id, err)
	}
	return nil
}

// EditMessage replaces a message's content.
func (s *MessageService) EditMessage(ctx context.Context, id, content string) (*Message, error) {
	var out Message
	if err := s.backend.Put(ctx, MessageEndpoint+"/"+id, map[string]string{"content": content}, &out); err != nil {
		return nil, fmt.Errorf("editing message %s: %w", id, err)
	}
	return &out, nil
}

// GetMessage fetches one message.
func (s *MessageService) GetMessage(ctx context.Context, id string) (*Message, error) {
	var out Message
	if err := s.backend.Get(ctx, MessageEndpoint+"/"+id, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching message %s: %w", id, err)
	}
	return &out, nil
}

// SearchMessages runs a full-text search over the history.
func (s *MessageService) SearchMessages(ctx context.Context, query string) ([]Message, error) {
	var out []Message
	if err := s.backend.Get(ctx, MessageEndpoint+"/search", url.Values{"query": {query}}, &out); err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	return out, nil
}
