package testcase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fakeyudi/testgen/internal/api"
	"github.com/fakeyudi/testgen/internal/source"
)

// fakeTests stores tests in memory; a test whose code contains "fail" fails.
type fakeTests struct {
	mu      sync.Mutex
	tests   []TestCase
	created []map[string]any
}

func (f *fakeTests) handler() http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	find := func(id string) int {
		for i := range f.tests {
			if f.tests[i].ID == id {
				return i
			}
		}
		return -1
	}
	run := func(tc *TestCase) {
		if containsFail(tc.Code) {
			tc.Status = StatusFailed
			tc.Result = &Result{Output: "", Error: "expected 3, got 4", ExecutionTime: 1.5}
		} else {
			tc.Status = StatusPassed
			tc.Result = &Result{Output: "ok", ExecutionTime: 0.5}
		}
	}

	mux.HandleFunc("POST /tests", func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		f.created = append(f.created, raw)
		b, _ := json.Marshal(raw)
		var tc TestCase
		json.Unmarshal(b, &tc)
		tc.ID = "t-" + strconv.Itoa(len(f.tests)+1)
		tc.Status = StatusPending
		f.tests = append(f.tests, tc)
		write(w, tc)
	})
	mux.HandleFunc("GET /tests", func(w http.ResponseWriter, r *http.Request) { write(w, f.tests) })
	mux.HandleFunc("GET /tests/{id}", func(w http.ResponseWriter, r *http.Request) {
		i := find(r.PathValue("id"))
		if i < 0 {
			w.WriteHeader(http.StatusNotFound)
			write(w, map[string]string{"message": "test not found"})
			return
		}
		write(w, f.tests[i])
	})
	mux.HandleFunc("PUT /tests/{id}", func(w http.ResponseWriter, r *http.Request) {
		i := find(r.PathValue("id"))
		var patch map[string]any
		json.NewDecoder(r.Body).Decode(&patch)
		if name, ok := patch["name"].(string); ok {
			f.tests[i].Name = name
		}
		write(w, f.tests[i])
	})
	mux.HandleFunc("DELETE /tests/{id}", func(w http.ResponseWriter, r *http.Request) {
		if i := find(r.PathValue("id")); i >= 0 {
			f.tests = append(f.tests[:i], f.tests[i+1:]...)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /tests/{id}/run", func(w http.ResponseWriter, r *http.Request) {
		i := find(r.PathValue("id"))
		run(&f.tests[i])
		write(w, f.tests[i])
	})
	mux.HandleFunc("POST /tests/run-all", func(w http.ResponseWriter, r *http.Request) {
		for i := range f.tests {
			run(&f.tests[i])
		}
		write(w, f.tests)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func containsFail(code string) bool {
	for i := 0; i+4 <= len(code); i++ {
		if code[i:i+4] == "fail" {
			return true
		}
	}
	return false
}

func newService(t *testing.T) (*Service, *fakeTests) {
	t.Helper()
	f := &fakeTests{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	c, err := api.New(api.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return NewService(c), f
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "calculator.py")
	require.NoError(t, os.WriteFile(p, []byte("def add(a, b):\n    return a + b\n"), 0o644))
	f, err := source.Read(p)
	require.NoError(t, err)

	tc := FromFile(f)
	assert.Equal(t, "calculator", tc.Name)
	assert.Equal(t, "Test for calculator", tc.Description)
	assert.Equal(t, "python", tc.Language)
	assert.Equal(t, StatusPending, tc.Status)
	assert.Empty(t, tc.ID)
	assert.Empty(t, tc.ExpectedOutput)
}

func TestCreateOmitsIDAndStatus(t *testing.T) {
	svc, f := newService(t)
	created, err := svc.Create(context.Background(), &TestCase{ID: "local", Name: "add", Code: "x", Language: "javascript", Status: StatusPassed})
	require.NoError(t, err)
	assert.Equal(t, "t-1", created.ID)
	assert.Equal(t, StatusPending, created.Status, "status comes from the backend")

	require.Len(t, f.created, 1)
	assert.NotContains(t, f.created[0], "id")
	assert.NotContains(t, f.created[0], "status")
}

func TestRunAndSummary(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	ok, err := svc.Create(ctx, &TestCase{Name: "good", Code: "expect(1).toBe(1)"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &TestCase{Name: "bad", Code: "fail()"})
	require.NoError(t, err)

	ran, err := svc.Run(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, `Test "good" passed!`, RunMessage(ran))

	results, err := svc.RunAll(ctx)
	require.NoError(t, err)
	passed, failed := Summary(results)
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, `Test "bad" failed: expected 3, got 4`, RunMessage(&results[1]))
}

func TestCRUD(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &TestCase{Name: "first", Code: "x"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, map[string]any{"name": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	byName, err := svc.FindByName(ctx, "renamed")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, "test not found", api.UserMessage(err))

	_, err = svc.FindByName(ctx, "renamed")
	assert.Error(t, err)
}

func TestFileExtension(t *testing.T) {
	cases := map[string]string{
		"javascript": "js",
		"typescript": "ts",
		"python":     "py",
		"java":       "java",
		"csharp":     "cs",
		"cpp":        "txt",
		"":           "txt",
	}
	for lang, want := range cases {
		assert.Equal(t, want, FileExtension(lang), lang)
	}
}

// Feature: testgen, Property 12: saved test files carry the header and body
func TestSaveToFile(t *testing.T) {
	root := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		tc := &TestCase{
			Name:           rapid.StringMatching(`[a-z][a-z0-9_]{0,12}`).Draw(rt, "name"),
			Description:    rapid.StringMatching(`[A-Za-z ]{0,30}`).Draw(rt, "description"),
			Code:           rapid.String().Draw(rt, "code"),
			ExpectedOutput: rapid.String().Draw(rt, "expected"),
			Language:       rapid.SampledFrom([]string{"javascript", "python", "csharp", "go"}).Draw(rt, "language"),
		}
		path, err := SaveToFile(root, tc)
		if err != nil {
			rt.Fatalf("SaveToFile: %v", err)
		}
		if filepath.Base(path) != tc.Name+"."+FileExtension(tc.Language) {
			rt.Fatalf("file name: got %s", filepath.Base(path))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			rt.Fatal(err)
		}
		want := "// Test: " + tc.Name + "\n// Description: " + tc.Description + "\n\n" +
			tc.Code + "\n\n// Expected output:\n" + tc.ExpectedOutput
		if string(data) != want {
			rt.Fatalf("content mismatch:\n got %q\nwant %q", data, want)
		}
	})
}
