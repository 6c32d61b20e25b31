package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/testgen/internal/api"
)

// fakeBackend is an in-memory stand-in for the chat endpoints.
type fakeBackend struct {
	mu       sync.Mutex
	requests int
	chats    map[string][]Message
	prompts  []messageRequest
	history  []Message // newest first, as /chat/messages returns it
	nextID   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{chats: make(map[string][]Message)}
}

func (f *fakeBackend) id(prefix string) string {
	f.nextID++
	return prefix + strconv.Itoa(f.nextID)
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/chats", func(w http.ResponseWriter, r *http.Request) {
		var chats []map[string]string
		for id := range f.chats {
			chats = append(chats, map[string]string{"id": id, "name": "chat " + id})
		}
		writeJSON(w, map[string]any{"chats": chats})
	})
	mux.HandleFunc("POST /api/v1/chats", func(w http.ResponseWriter, r *http.Request) {
		id := f.id("chat-")
		f.chats[id] = nil
		writeJSON(w, map[string]string{"chatId": id})
	})
	mux.HandleFunc("POST /api/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		json.NewDecoder(r.Body).Decode(&req)
		if _, ok := f.chats[req.ChatID]; !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"message": "chat not found"})
			return
		}
		f.prompts = append(f.prompts, req)
		content := fmt.Sprintf("```%s\ntest('generated %d', () => {});\n```", req.Model, len(f.prompts))
		f.chats[req.ChatID] = append(f.chats[req.ChatID],
			Message{ID: f.id("m-"), Role: "user", Content: req.Message},
			Message{ID: f.id("m-"), Role: "assistant", Content: content},
		)
		writeJSON(w, map[string]string{"content": content})
	})
	mux.HandleFunc("GET /api/v1/chats/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		msgs, ok := f.chats[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"message": "chat not found"})
			return
		}
		writeJSON(w, map[string]any{"messages": msgs})
	})

	mux.HandleFunc("GET /chat/messages", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		start := 0
		if before := r.URL.Query().Get("before"); before != "" {
			start = slices.IndexFunc(f.history, func(m Message) bool { return m.ID == before }) + 1
		}
		end := min(start+limit, len(f.history))
		writeJSON(w, f.history[start:end])
	})
	mux.HandleFunc("POST /chat/messages", func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		json.NewDecoder(r.Body).Decode(&req)
		m := Message{ID: f.id("h-"), Content: req.Content, Type: req.Type, Metadata: req.Metadata}
		f.history = append([]Message{m}, f.history...)
		writeJSON(w, m)
	})
	mux.HandleFunc("GET /chat/messages/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		out := []Message{}
		for _, m := range f.history {
			if strings.Contains(m.Content, q) {
				out = append(out, m)
			}
		}
		writeJSON(w, out)
	})
	mux.HandleFunc("GET /chat/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		for _, m := range f.history {
			if m.ID == r.PathValue("id") {
				writeJSON(w, m)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("PUT /chat/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for i := range f.history {
			if f.history[i].ID == r.PathValue("id") {
				f.history[i].Content = body.Content
				writeJSON(w, f.history[i])
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("DELETE /chat/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.history = slices.DeleteFunc(f.history, func(m Message) bool { return m.ID == r.PathValue("id") })
		w.WriteHeader(http.StatusNoContent)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests++
		mux.ServeHTTP(w, r)
	})
}

func (f *fakeBackend) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeBackend) *api.Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	c, err := api.New(api.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}
