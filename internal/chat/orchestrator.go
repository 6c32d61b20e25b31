// Package chat drives the test-generation conversation with the backend:
// creating a chat, posting generation and repair prompts to it and reading
// replies back. It also wraps the /chat/messages history endpoints.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/fakeyudi/testgen/internal/logger"
)

// Backend endpoints used by the orchestrator.
const (
	ChatsPath    = "/api/v1/chats"
	MessagesPath = "/api/v1/messages"
)

// ErrNoMessages is returned by FetchLatestResponse for a chat with no history.
var ErrNoMessages = errors.New("chat has no messages")

var chatNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\s.,!?-]+$`)

// Backend is the part of api.Client the chat package needs.
type Backend interface {
	Get(ctx context.Context, path string, params url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// ValidationError is a local rejection made before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateChatName trims name and checks it against the allow-list.
// It returns the trimmed name.
func ValidateChatName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &ValidationError{Field: "name", Message: "Invalid chat name"}
	}
	if !chatNamePattern.MatchString(trimmed) {
		return "", &ValidationError{
			Field:   "name",
			Message: "Chat name can only contain letters, digits, spaces and basic punctuation",
		}
	}
	return trimmed, nil
}

// Orchestrator is not yet bound to a chat. It can only create, resume or
// list chats; prompts are sent through the BoundChat it returns.
type Orchestrator struct {
	backend Backend
	model   string
}

// NewOrchestrator returns an Orchestrator. A non-empty model overrides the
// "model" field of generation requests, which otherwise carries the target
// language.
func NewOrchestrator(backend Backend, model string) *Orchestrator {
	return &Orchestrator{backend: backend, model: model}
}

// CreateChat validates name locally, then asks the backend for a new chat.
func (o *Orchestrator) CreateChat(ctx context.Context, name string) (*BoundChat, error) {
	trimmed, err := ValidateChatName(name)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ChatID string `json:"chatId"`
	}
	if err := o.backend.Post(ctx, ChatsPath, map[string]string{"name": trimmed}, &resp); err != nil {
		return nil, fmt.Errorf("Failed to create chat: %w", err)
	}
	if resp.ChatID == "" {
		return nil, errors.New("Failed to create chat: server returned no chat id")
	}

	logger.DebugWithFields("chat created", logger.Fields{"chat_id": resp.ChatID, "name": trimmed})
	return &BoundChat{o: o, id: resp.ChatID, name: trimmed}, nil
}

// Resume binds to a chat the backend already assigned an id to.
func (o *Orchestrator) Resume(chatID string) (*BoundChat, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, &ValidationError{Field: "chatId", Message: "chat id is required"}
	}
	return &BoundChat{o: o, id: chatID}, nil
}

// ListChats returns the logged-in user's chats.
func (o *Orchestrator) ListChats(ctx context.Context) ([]Chat, error) {
	var resp struct {
		Chats []Chat `json:"chats"`
	}
	if err := o.backend.Get(ctx, ChatsPath, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return resp.Chats, nil
}

// BoundChat is an Orchestrator bound to one server-assigned chat id.
type BoundChat struct {
	o    *Orchestrator
	id   string
	name string
}

// ID returns the server-assigned chat id.
func (b *BoundChat) ID() string { return b.id }

// Name returns the chat name, empty for resumed chats.
func (b *BoundChat) Name() string { return b.name }

type messageRequest struct {
	Model   string `json:"model"`
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// SendPrompt asks the backend to generate tests for sourceCode and returns
// the generated content.
func (b *BoundChat) SendPrompt(ctx context.Context, sourceCode, targetLanguage, framework string) (string, error) {
	model := targetLanguage
	if b.o.model != "" {
		model = b.o.model
	}
	return b.post(ctx, model, GeneratePrompt(sourceCode, targetLanguage, framework))
}

// SendFollowUp asks the backend to repair snippet. The language tag on the
// first line of previousResponse becomes the request's model.
func (b *BoundChat) SendFollowUp(ctx context.Context, snippet, previousResponse string) (string, error) {
	model := LanguageTag(previousResponse)
	if model == "" {
		model = b.o.model
	}
	return b.post(ctx, model, FixPrompt(snippet))
}

func (b *BoundChat) post(ctx context.Context, model, prompt string) (string, error) {
	var resp struct {
		Content string `json:"content"`
	}
	req := messageRequest{Model: model, ChatID: b.id, Message: prompt}
	if err := b.o.backend.Post(ctx, MessagesPath, req, &resp); err != nil {
		return "", fmt.Errorf("sending message to chat %s: %w", b.id, err)
	}
	return resp.Content, nil
}

// Messages returns the chat's full history, oldest first.
func (b *BoundChat) Messages(ctx context.Context) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := b.o.backend.Get(ctx, ChatsPath+"/"+b.id+"/messages", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching messages of chat %s: %w", b.id, err)
	}
	return resp.Messages, nil
}

// FetchLatestResponse returns the content of the chat's most recent message.
func (b *BoundChat) FetchLatestResponse(ctx context.Context) (string, error) {
	msgs, err := b.Messages(ctx)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", ErrNoMessages
	}
	return msgs[len(msgs)-1].Content, nil
}
