package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fakeyudi/testgen/internal/chat"
	"github.com/fakeyudi/testgen/internal/testcase"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	return executeWithInput(root, "", args...)
}

// executeWithInput is executeCommand with stdin answering prompts.
func executeWithInput(root *cobra.Command, input string, args ...string) (output string, err error) {
	resetFlags()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(input))
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// resetFlags clears flag variables left over from an earlier run.
func resetFlags() {
	baseURLFlag = ""
	loginUsername, loginPassword = "", ""
	registerUsername, registerEmail, registerPassword = "", "", ""
	chatIDFlag, chatNameFlag, chatLanguage, chatFramework = "", "", "", ""
	chatLines, chatSnippet, chatFile = "", "", ""
	chatPlain = false
	exportFormat, exportOutput = "", ""
	messagesLimit, messagesBefore = chat.DefaultPageSize, ""
	messageType, messageLanguage, messageTestID = string(chat.TypeText), "", ""
	testSaveDir, testName, testDescription, testExpected = "", "", "", ""
	plainOutput = false
	profileUpdate = false
	clearChanged(rootCmd)
}

// clearChanged forgets which flags earlier runs set.
func clearChanged(c *cobra.Command) {
	reset := func(f *pflag.Flag) { f.Changed = false }
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		clearChanged(sub)
	}
}

// fakeBackend serves the endpoints the commands call from memory.
type fakeBackend struct {
	mu      sync.Mutex
	users   map[string]string // registered username -> password
	chats   []chat.Chat
	replies map[string][]chat.Message
	history []chat.Message // newest first
	tests   []testcase.TestCase
	nextID  int
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeBackend) id(prefix string) string {
	f.nextID++
	return prefix + strconv.Itoa(f.nextID)
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Username, Password string }
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		registered, ok := f.users[body.Username]
		f.mu.Unlock()
		if body.Password != "secret" && !(ok && body.Password == registered) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"userId": "u-" + body.Username, "accessToken": "tok-" + body.Username})
	})
	mux.HandleFunc("POST /api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Username, Password string }
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.users == nil {
			f.users = make(map[string]string)
		}
		f.users[body.Username] = body.Password
		writeJSON(w, http.StatusOK, map[string]string{"userId": "u-" + body.Username, "accessToken": "tok-" + body.Username})
	})

	mux.HandleFunc("GET /api/v1/chats", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"chats": f.chats})
	})
	mux.HandleFunc("POST /api/v1/chats", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Name string }
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		id := f.id("chat-")
		f.chats = append(f.chats, chat.Chat{ChatID: id, Name: body.Name, CreatedAt: "2026-10-18T09:00:00Z"})
		writeJSON(w, http.StatusOK, map[string]string{"chatId": id})
	})
	mux.HandleFunc("POST /api/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Model, ChatID, Message string }
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.replies == nil {
			f.replies = make(map[string][]chat.Message)
		}
		content := "```" + req.Model + "\ntest('adds', () => expect(sum(1, 2)).toBe(3));\n```"
		f.replies[req.ChatID] = append(f.replies[req.ChatID],
			chat.Message{ID: f.id("m-"), Role: "user", Content: req.Message},
			chat.Message{ID: f.id("m-"), Role: "assistant", Content: content},
		)
		writeJSON(w, http.StatusOK, map[string]string{"content": content})
	})
	mux.HandleFunc("GET /api/v1/chats/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"messages": f.replies[r.PathValue("id")]})
	})

	mux.HandleFunc("GET /chat/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, f.history[:min(limit, len(f.history))])
	})
	mux.HandleFunc("POST /chat/messages", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content  string
			Type     chat.MessageType
			Metadata *chat.Metadata
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		m := chat.Message{ID: f.id("h-"), Content: req.Content, Type: req.Type, Metadata: req.Metadata}
		f.history = append([]chat.Message{m}, f.history...)
		writeJSON(w, http.StatusOK, m)
	})

	mux.HandleFunc("GET /tests", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.tests)
	})
	mux.HandleFunc("POST /tests", func(w http.ResponseWriter, r *http.Request) {
		var tc testcase.TestCase
		json.NewDecoder(r.Body).Decode(&tc)
		f.mu.Lock()
		defer f.mu.Unlock()
		tc.ID = f.id("t-")
		tc.Status = testcase.StatusPending
		f.tests = append(f.tests, tc)
		writeJSON(w, http.StatusOK, tc)
	})
	mux.HandleFunc("GET /tests/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, tc := range f.tests {
			if tc.ID == r.PathValue("id") {
				writeJSON(w, http.StatusOK, tc)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "test not found"})
	})
	mux.HandleFunc("PUT /tests/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]string
		json.NewDecoder(r.Body).Decode(&patch)
		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.tests {
			if f.tests[i].ID == r.PathValue("id") {
				if name, ok := patch["name"]; ok {
					f.tests[i].Name = name
				}
				if desc, ok := patch["description"]; ok {
					f.tests[i].Description = desc
				}
				writeJSON(w, http.StatusOK, f.tests[i])
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "test not found"})
	})
	mux.HandleFunc("POST /tests/{id}/run", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, tc := range f.tests {
			if tc.ID == r.PathValue("id") {
				writeJSON(w, http.StatusOK, tc)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "test not found"})
	})
	mux.HandleFunc("POST /tests/run-all", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.tests)
	})

	return mux
}

// testEnv points every state path at a temp dir and the backend at a fake.
// It returns the fake and the temp dir.
func testEnv(t *testing.T) (*fakeBackend, string) {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmp, "cache"))
	t.Setenv("TESTGEN_CACHE_PATH", filepath.Join(tmp, "cache.db"))
	t.Setenv("TESTGEN_LOG_LEVEL", "error")

	f := &fakeBackend{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	t.Setenv("TESTGEN_BASE_URL", srv.URL)
	return f, tmp
}

// loginAs logs in through the login command.
func loginAs(t *testing.T, username string) {
	t.Helper()
	out, err := executeCommand(rootCmd, "login", "-u", username, "--password", "secret")
	if err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
}
