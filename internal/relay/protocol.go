// Package relay connects the sidebar page to the session and chat layers.
// The page and the host exchange JSON frames tagged by a "type" field; each
// inbound request gets exactly one response, and the host may push
// notifications (setLoading, showAuth) at any time.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fakeyudi/testgen/internal/chat"
)

// ErrUnknownTag is returned by Decode for a frame whose type is not a
// request this host understands. The server drops such frames.
var ErrUnknownTag = errors.New("unknown message type")

// DecodeError is returned by Decode for a frame of a known type whose fields
// do not fit that type.
type DecodeError struct {
	Tag string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s frame: %v", e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Reply is the error response the page waits for after a request tagged e.Tag.
func (e *DecodeError) Reply() Response {
	msg := "Malformed " + e.Tag + " request"
	switch e.Tag {
	case "login":
		return LoginError{Error: msg}
	case "register":
		return RegisterError{Error: msg}
	case "createChat", "openChat":
		return ChatError{Error: msg}
	case "generateTests", "fixTest":
		return GenerateError{Error: msg}
	case "runTest":
		return TestError{Error: msg}
	}
	return MessagesError{Error: msg}
}

// Request is a message from the page. The set of requests is closed.
type Request interface {
	requestTag() string
}

// Response is a message to the page. The set of responses is closed.
type Response interface {
	responseTag() string
}

// ── Requests ────────────────────────────────────────────────────────────────

// LoginRequest logs in with the given credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest creates an account and logs it in.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LogoutRequest ends the session.
type LogoutRequest struct{}

// CreateChatRequest creates a chat and makes it active.
type CreateChatRequest struct {
	Name string `json:"name"`
}

// ListChatsRequest asks for the user's chats.
type ListChatsRequest struct{}

// OpenChatRequest makes chatID the active chat and asks for its latest reply.
type OpenChatRequest struct {
	ChatID string `json:"chatId"`
}

// LoadMessagesRequest asks for the newest page of the message history.
type LoadMessagesRequest struct{}

// SendMessageRequest posts a message to the history. An empty MessageType is text.
type SendMessageRequest struct {
	Content     string           `json:"content"`
	MessageType chat.MessageType `json:"messageType"`
	Metadata    *chat.Metadata   `json:"metadata,omitempty"`
}

// DeleteMessageRequest removes one message from the history.
type DeleteMessageRequest struct {
	MessageID string `json:"messageId"`
}

// EditMessageRequest replaces the content of a message.
type EditMessageRequest struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// SearchMessagesRequest filters the history by Query.
type SearchMessagesRequest struct {
	Query string `json:"query"`
}

// GenerateTestsRequest asks for tests for Source. An empty ChatID uses the
// active chat, or creates one called Name when there is none.
type GenerateTestsRequest struct {
	ChatID    string `json:"chatId,omitempty"`
	Name      string `json:"name,omitempty"`
	Source    string `json:"source"`
	Language  string `json:"language"`
	Framework string `json:"framework"`
}

// FixTestRequest asks for a repaired version of Snippet. An empty
// PreviousResponse is fetched from the chat.
type FixTestRequest struct {
	ChatID           string `json:"chatId,omitempty"`
	Snippet          string `json:"snippet"`
	PreviousResponse string `json:"previousResponse,omitempty"`
}

// RunTestRequest runs one stored test.
type RunTestRequest struct {
	TestID string `json:"testId"`
}

func (LoginRequest) requestTag() string          { return "login" }
func (RegisterRequest) requestTag() string       { return "register" }
func (LogoutRequest) requestTag() string         { return "logout" }
func (CreateChatRequest) requestTag() string     { return "createChat" }
func (ListChatsRequest) requestTag() string      { return "listChats" }
func (OpenChatRequest) requestTag() string       { return "openChat" }
func (LoadMessagesRequest) requestTag() string   { return "loadMessages" }
func (SendMessageRequest) requestTag() string    { return "sendMessage" }
func (DeleteMessageRequest) requestTag() string  { return "deleteMessage" }
func (EditMessageRequest) requestTag() string    { return "editMessage" }
func (SearchMessagesRequest) requestTag() string { return "searchMessages" }
func (GenerateTestsRequest) requestTag() string  { return "generateTests" }
func (FixTestRequest) requestTag() string        { return "fixTest" }
func (RunTestRequest) requestTag() string        { return "runTest" }

// ── Responses ───────────────────────────────────────────────────────────────

// User is the public part of the logged-in account.
type User struct {
	Username string `json:"username"`
}

// ShowAuth tells the page which panel to show.
type ShowAuth struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// LoginSuccess answers a login that went through.
type LoginSuccess struct {
	User User `json:"user"`
}

// LoginError carries the message of a failed login.
type LoginError struct {
	Error string `json:"error"`
}

// RegisterSuccess answers a registration that went through.
type RegisterSuccess struct {
	User User `json:"user"`
}

// RegisterError carries the message of a failed registration.
type RegisterError struct {
	Error string `json:"error"`
}

// LogoutSuccess answers a logout.
type LogoutSuccess struct{}

// LogoutError reports that the session could not be cleared.
type LogoutError struct {
	Error string `json:"error"`
}

// ChatCreated names the chat a createChat or openChat request made active.
type ChatCreated struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name"`
}

// ChatError answers a chat request that failed.
type ChatError struct {
	Error string `json:"error"`
}

// SetChats replaces the page's chat list.
type SetChats struct {
	Chats []chat.Chat `json:"chats"`
}

// SetMessages replaces the history view. HasMore is set when an older page may exist.
type SetMessages struct {
	Messages []chat.Message `json:"messages"`
	HasMore  bool           `json:"hasMore"`
}

// MessagesError answers a history request that failed.
type MessagesError struct {
	Error string `json:"error"`
}

// SetLoading toggles the page's spinner.
type SetLoading struct {
	Value bool `json:"value"`
}

// TestsGenerated carries a reply from the generator. Seq is the sequence
// number the host assigned to the request.
type TestsGenerated struct {
	Seq      uint64 `json:"seq"`
	ChatID   string `json:"chatId"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// GenerateError answers a generate or fix request that failed.
type GenerateError struct {
	Seq   uint64 `json:"seq"`
	Error string `json:"error"`
}

// Superseded answers a generate or fix request whose reply arrived after a
// newer request was issued. The reply is not shown.
type Superseded struct {
	Seq uint64 `json:"seq"`
}

// TestResult is the outcome of a runTest request.
type TestResult struct {
	TestID  string `json:"testId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TestError answers a runTest request that could not run.
type TestError struct {
	TestID string `json:"testId"`
	Error  string `json:"error"`
}

func (ShowAuth) responseTag() string        { return "showAuth" }
func (LoginSuccess) responseTag() string    { return "loginSuccess" }
func (LoginError) responseTag() string      { return "loginError" }
func (RegisterSuccess) responseTag() string { return "registerSuccess" }
func (RegisterError) responseTag() string   { return "registerError" }
func (LogoutSuccess) responseTag() string   { return "logoutSuccess" }
func (LogoutError) responseTag() string     { return "logoutError" }
func (ChatCreated) responseTag() string     { return "chatCreated" }
func (ChatError) responseTag() string       { return "chatError" }
func (SetChats) responseTag() string        { return "setChats" }
func (SetMessages) responseTag() string     { return "setMessages" }
func (MessagesError) responseTag() string   { return "messagesError" }
func (SetLoading) responseTag() string      { return "setLoading" }
func (TestsGenerated) responseTag() string  { return "testsGenerated" }
func (GenerateError) responseTag() string   { return "generateError" }
func (Superseded) responseTag() string      { return "superseded" }
func (TestResult) responseTag() string      { return "testResult" }
func (TestError) responseTag() string       { return "testError" }

// ── Wire format ─────────────────────────────────────────────────────────────

// Decode parses one inbound frame. Frames with an unrecognised type return
// an error wrapping ErrUnknownTag; a known type with bad fields returns a
// *DecodeError.
func Decode(data []byte) (Request, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	var req Request
	switch env.Type {
	case "login":
		req = &LoginRequest{}
	case "register":
		req = &RegisterRequest{}
	case "logout":
		return LogoutRequest{}, nil
	case "createChat":
		req = &CreateChatRequest{}
	case "listChats":
		return ListChatsRequest{}, nil
	case "openChat":
		req = &OpenChatRequest{}
	case "loadMessages":
		return LoadMessagesRequest{}, nil
	case "sendMessage":
		req = &SendMessageRequest{}
	case "deleteMessage":
		req = &DeleteMessageRequest{}
	case "editMessage":
		req = &EditMessageRequest{}
	case "searchMessages":
		req = &SearchMessagesRequest{}
	case "generateTests":
		req = &GenerateTestsRequest{}
	case "fixTest":
		req = &FixTestRequest{}
	case "runTest":
		req = &RunTestRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, env.Type)
	}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, &DecodeError{Tag: env.Type, Err: err}
	}
	return deref(req), nil
}

// deref turns the pointer Decode filled into the value type Dispatch
// switches on.
func deref(req Request) Request {
	switch r := req.(type) {
	case *LoginRequest:
		return *r
	case *RegisterRequest:
		return *r
	case *CreateChatRequest:
		return *r
	case *OpenChatRequest:
		return *r
	case *SendMessageRequest:
		if r.MessageType == "" {
			r.MessageType = chat.TypeText
		}
		return *r
	case *DeleteMessageRequest:
		return *r
	case *EditMessageRequest:
		return *r
	case *SearchMessagesRequest:
		return *r
	case *GenerateTestsRequest:
		return *r
	case *FixTestRequest:
		return *r
	case *RunTestRequest:
		return *r
	}
	return req
}

// Encode renders resp as a JSON object with its tag in the "type" field.
func Encode(resp Response) ([]byte, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", resp.responseTag(), err)
	}
	tag, _ := json.Marshal(resp.responseTag())
	out := make([]byte, 0, len(body)+len(tag)+10)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// Tag returns the wire tag of resp.
func Tag(resp Response) string {
	return resp.responseTag()
}
