package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fakeyudi/testgen/internal/api"
	"github.com/fakeyudi/testgen/internal/auth"
	"github.com/fakeyudi/testgen/internal/cache"
	"github.com/fakeyudi/testgen/internal/chat"
	"github.com/fakeyudi/testgen/internal/logger"
	"github.com/fakeyudi/testgen/internal/testcase"
)

// Messages sent when an operation needs a session.
const (
	msgLoginToCreate   = "You must be logged in to create a chat"
	msgLoginToGenerate = "You must be logged in to generate tests"
)

// Options wires a Relay to the rest of the client.
type Options struct {
	Auth         *auth.Manager
	Orchestrator *chat.Orchestrator
	Messages     *chat.MessageService
	Tests        *testcase.Service // nil disables runTest
	Cache        *cache.Cache      // nil disables local caching
	PageSize     int               // messages per loadMessages page; 0 = chat.DefaultPageSize
	Language     string            // default target language for generateTests
	Framework    string            // default framework for generateTests
}

// Relay turns page requests into session and chat operations.
type Relay struct {
	auth      *auth.Manager
	orch      *chat.Orchestrator
	msgs      *chat.MessageService
	tests     *testcase.Service
	cache     *cache.Cache
	pageSize  int
	language  string
	framework string

	seq chat.Sequencer

	mu      sync.Mutex
	history *chat.History
	active  *chat.BoundChat

	notifyMu sync.RWMutex
	notify   func(Response)

	unsubscribe func()
}

// New returns a Relay. It subscribes to session changes and pushes a
// showAuth notification for each one; call Close to stop.
func New(opts Options) *Relay {
	r := &Relay{
		auth:      opts.Auth,
		orch:      opts.Orchestrator,
		msgs:      opts.Messages,
		tests:     opts.Tests,
		cache:     opts.Cache,
		pageSize:  opts.PageSize,
		language:  opts.Language,
		framework: opts.Framework,
	}
	if r.pageSize <= 0 {
		r.pageSize = chat.DefaultPageSize
	}
	r.history = chat.NewHistory(r.msgs, r.pageSize)
	r.unsubscribe = r.auth.Subscribe(func(s auth.Session) {
		if !s.Authenticated {
			r.reset()
		}
		r.push(ShowAuth{Authenticated: s.Authenticated, Username: s.Username})
	})
	return r
}

// Close stops session notifications.
func (r *Relay) Close() {
	r.unsubscribe()
}

// SetNotifier installs the function notifications are pushed through.
func (r *Relay) SetNotifier(fn func(Response)) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.notify = fn
}

func (r *Relay) push(resp Response) {
	r.notifyMu.RLock()
	fn := r.notify
	r.notifyMu.RUnlock()
	if fn != nil {
		fn(resp)
	}
}

// AuthState is the showAuth notification for the current session.
func (r *Relay) AuthState() Response {
	return ShowAuth{Authenticated: r.auth.IsAuthenticated(), Username: r.auth.Session().Username}
}

// Refresh re-reads the persisted token, for when another process may have
// logged in or out. A change is pushed through the session subscription.
func (r *Relay) Refresh() {
	if _, err := r.auth.CheckAuth(); err != nil {
		logger.WarnWithFields("re-reading session failed", logger.Fields{"error": err.Error()})
	}
}

// reset drops everything loaded for the previous account.
func (r *Relay) reset() {
	r.mu.Lock()
	r.history = chat.NewHistory(r.msgs, r.pageSize)
	r.active = nil
	r.mu.Unlock()
}

func (r *Relay) currentHistory() *chat.History {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history
}

// Dispatch runs req and returns its one response.
func (r *Relay) Dispatch(ctx context.Context, req Request) Response {
	switch req := req.(type) {
	case LoginRequest:
		return r.login(ctx, req)
	case RegisterRequest:
		return r.register(ctx, req)
	case LogoutRequest:
		return r.logout(ctx)
	case CreateChatRequest:
		return r.createChat(ctx, req)
	case ListChatsRequest:
		return r.listChats(ctx)
	case OpenChatRequest:
		return r.openChat(ctx, req)
	case LoadMessagesRequest:
		return r.loadMessages(ctx)
	case SendMessageRequest:
		return r.sendMessage(ctx, req)
	case DeleteMessageRequest:
		return r.deleteMessage(ctx, req)
	case EditMessageRequest:
		return r.editMessage(ctx, req)
	case SearchMessagesRequest:
		return r.searchMessages(ctx, req)
	case GenerateTestsRequest:
		return r.generateTests(ctx, req)
	case FixTestRequest:
		return r.fixTest(ctx, req)
	case RunTestRequest:
		return r.runTest(ctx, req)
	}
	// Decode only produces the types above.
	panic(fmt.Sprintf("relay: unhandled request %T", req))
}

// ── Session ─────────────────────────────────────────────────────────────────

func (r *Relay) login(ctx context.Context, req LoginRequest) Response {
	if err := auth.ValidateUsername(req.Username); err != nil {
		return LoginError{Error: err.Error()}
	}
	if err := r.auth.Login(ctx, req.Username, req.Password); err != nil {
		return LoginError{Error: api.UserMessage(err)}
	}
	return LoginSuccess{User: User{Username: req.Username}}
}

func (r *Relay) register(ctx context.Context, req RegisterRequest) Response {
	if err := auth.ValidateUsername(req.Username); err != nil {
		return RegisterError{Error: err.Error()}
	}
	// Register leaves the new account logged in.
	if err := r.auth.Register(ctx, req.Username, req.Password); err != nil {
		return RegisterError{Error: api.UserMessage(err)}
	}
	return RegisterSuccess{User: User{Username: req.Username}}
}

func (r *Relay) logout(ctx context.Context) Response {
	if err := r.auth.Logout(); err != nil {
		return LogoutError{Error: err.Error()}
	}
	if r.cache != nil {
		if err := r.cache.Clear(ctx); err != nil {
			logger.WarnWithFields("clearing chat cache failed", logger.Fields{"error": err.Error()})
		}
	}
	return LogoutSuccess{}
}

// ── Chats ───────────────────────────────────────────────────────────────────

func (r *Relay) createChat(ctx context.Context, req CreateChatRequest) Response {
	if !r.auth.IsAuthenticated() {
		return ChatError{Error: msgLoginToCreate}
	}
	bound, err := r.orch.CreateChat(ctx, req.Name)
	if err != nil {
		return ChatError{Error: api.UserMessage(err)}
	}
	r.activate(ctx, bound)
	return ChatCreated{ChatID: bound.ID(), Name: bound.Name()}
}

func (r *Relay) listChats(ctx context.Context) Response {
	chats, err := r.orch.ListChats(ctx)
	if err != nil {
		if r.cache != nil && errors.Is(err, api.ErrUnreachable) {
			if cached, cerr := r.cache.Chats(ctx); cerr == nil && len(cached) > 0 {
				return SetChats{Chats: cached}
			}
		}
		return ChatError{Error: api.UserMessage(err)}
	}
	if r.cache != nil {
		if err := r.cache.PutChats(ctx, chats); err != nil {
			logger.WarnWithFields("caching chats failed", logger.Fields{"error": err.Error()})
		}
	}
	if chats == nil {
		chats = []chat.Chat{}
	}
	return SetChats{Chats: chats}
}

func (r *Relay) openChat(ctx context.Context, req OpenChatRequest) Response {
	bound, err := r.orch.Resume(req.ChatID)
	if err != nil {
		return ChatError{Error: api.UserMessage(err)}
	}
	r.activate(ctx, bound)

	seq := r.seq.Next()
	content, err := bound.FetchLatestResponse(ctx)
	if err != nil {
		return GenerateError{Seq: seq, Error: api.UserMessage(err)}
	}
	return r.generated(seq, bound.ID(), content)
}

func (r *Relay) activate(ctx context.Context, bound *chat.BoundChat) {
	r.mu.Lock()
	r.active = bound
	r.mu.Unlock()
	if r.cache == nil {
		return
	}
	if bound.Name() != "" {
		if err := r.cache.PutChats(ctx, []chat.Chat{{ChatID: bound.ID(), Name: bound.Name()}}); err != nil {
			logger.WarnWithFields("caching chat failed", logger.Fields{"error": err.Error()})
		}
	}
	if err := r.cache.SetActiveChat(ctx, bound.ID()); err != nil {
		logger.WarnWithFields("recording active chat failed", logger.Fields{"error": err.Error()})
	}
}

func (r *Relay) activeChat() *chat.BoundChat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// ── Message history ─────────────────────────────────────────────────────────

func (r *Relay) snapshot(h *chat.History) SetMessages {
	msgs := h.Messages()
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return SetMessages{Messages: msgs, HasMore: h.HasMore()}
}

func (r *Relay) loadMessages(ctx context.Context) Response {
	h := r.currentHistory()
	if h.Loading() || !h.HasMore() {
		return r.snapshot(h)
	}
	r.push(SetLoading{Value: true})
	defer r.push(SetLoading{Value: false})

	if _, err := h.LoadMore(ctx); err != nil {
		return MessagesError{Error: "Failed to load messages: " + api.UserMessage(err)}
	}
	return r.snapshot(h)
}

func (r *Relay) sendMessage(ctx context.Context, req SendMessageRequest) Response {
	msg, err := r.msgs.SendMessage(ctx, req.Content, req.MessageType, req.Metadata)
	if err != nil {
		return MessagesError{Error: "Failed to send message: " + api.UserMessage(err)}
	}
	h := r.currentHistory()
	h.Prepend(*msg)
	return r.snapshot(h)
}

func (r *Relay) deleteMessage(ctx context.Context, req DeleteMessageRequest) Response {
	if err := r.msgs.DeleteMessage(ctx, req.MessageID); err != nil {
		return MessagesError{Error: "Failed to delete message: " + api.UserMessage(err)}
	}
	h := r.currentHistory()
	h.Remove(req.MessageID)
	return r.snapshot(h)
}

func (r *Relay) editMessage(ctx context.Context, req EditMessageRequest) Response {
	msg, err := r.msgs.EditMessage(ctx, req.MessageID, req.Content)
	if err != nil {
		return MessagesError{Error: "Failed to edit message: " + api.UserMessage(err)}
	}
	h := r.currentHistory()
	h.Replace(*msg)
	return r.snapshot(h)
}

// searchMessages answers with the matches only; the loaded history is kept.
func (r *Relay) searchMessages(ctx context.Context, req SearchMessagesRequest) Response {
	msgs, err := r.msgs.SearchMessages(ctx, req.Query)
	if err != nil {
		return MessagesError{Error: "Failed to search messages: " + api.UserMessage(err)}
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return SetMessages{Messages: msgs, HasMore: false}
}

// ── Generation ──────────────────────────────────────────────────────────────

func (r *Relay) generateTests(ctx context.Context, req GenerateTestsRequest) Response {
	seq := r.seq.Next()
	if !r.auth.IsAuthenticated() {
		return GenerateError{Seq: seq, Error: msgLoginToGenerate}
	}

	lang := req.Language
	if lang == "" {
		lang = r.language
	}
	framework := req.Framework
	if framework == "" {
		framework = r.framework
		if !chat.SupportsFramework(lang, framework) {
			framework = chat.DefaultFramework(lang)
		}
	}

	bound, err := r.bind(ctx, req.ChatID, req.Name)
	if err != nil {
		return GenerateError{Seq: seq, Error: api.UserMessage(err)}
	}
	content, err := bound.SendPrompt(ctx, req.Source, lang, framework)
	if err != nil {
		return r.failed(seq, err)
	}
	return r.generated(seq, bound.ID(), content)
}

func (r *Relay) fixTest(ctx context.Context, req FixTestRequest) Response {
	seq := r.seq.Next()
	if !r.auth.IsAuthenticated() {
		return GenerateError{Seq: seq, Error: msgLoginToGenerate}
	}

	bound, err := r.bind(ctx, req.ChatID, "")
	if err != nil {
		return GenerateError{Seq: seq, Error: api.UserMessage(err)}
	}
	previous := req.PreviousResponse
	if previous == "" {
		if previous, err = bound.FetchLatestResponse(ctx); err != nil {
			return r.failed(seq, err)
		}
	}
	content, err := bound.SendFollowUp(ctx, req.Snippet, previous)
	if err != nil {
		return r.failed(seq, err)
	}
	return r.generated(seq, bound.ID(), content)
}

// bind picks the chat a generation request goes to: the named id, else the
// active chat, else a new chat called name.
func (r *Relay) bind(ctx context.Context, chatID, name string) (*chat.BoundChat, error) {
	if chatID != "" {
		bound, err := r.orch.Resume(chatID)
		if err != nil {
			return nil, err
		}
		r.activate(ctx, bound)
		return bound, nil
	}
	if bound := r.activeChat(); bound != nil {
		return bound, nil
	}
	if name == "" {
		return nil, &chat.ValidationError{Field: "chatId", Message: "Create or open a chat first"}
	}
	bound, err := r.orch.CreateChat(ctx, name)
	if err != nil {
		return nil, err
	}
	r.activate(ctx, bound)
	return bound, nil
}

func (r *Relay) generated(seq uint64, chatID, content string) Response {
	if !r.seq.IsLatest(seq) {
		logger.DebugWithFields("dropping superseded reply", logger.Fields{"seq": seq, "chat_id": chatID})
		return Superseded{Seq: seq}
	}
	return TestsGenerated{Seq: seq, ChatID: chatID, Content: content, Language: chat.LanguageTag(content)}
}

func (r *Relay) failed(seq uint64, err error) Response {
	if !r.seq.IsLatest(seq) {
		return Superseded{Seq: seq}
	}
	return GenerateError{Seq: seq, Error: api.UserMessage(err)}
}

// ── Tests ───────────────────────────────────────────────────────────────────

func (r *Relay) runTest(ctx context.Context, req RunTestRequest) Response {
	if r.tests == nil {
		return TestError{TestID: req.TestID, Error: "running tests is not available"}
	}
	tc, err := r.tests.Run(ctx, req.TestID)
	if err != nil {
		return TestError{TestID: req.TestID, Error: api.UserMessage(err)}
	}
	return TestResult{TestID: req.TestID, Status: string(tc.Status), Message: testcase.RunMessage(tc)}
}
