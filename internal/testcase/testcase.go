// Package testcase talks to the backend's /tests endpoints and turns source
// files into test cases and test cases back into files.
package testcase

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/fakeyudi/testgen/internal/source"
)

// Status is set by the backend only.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Result is the outcome of a run.
type Result struct {
	Output        string  `json:"output"`
	Error         string  `json:"error,omitempty"`
	ExecutionTime float64 `json:"executionTime"`
}

// TestCase is a stored test.
type TestCase struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Code           string  `json:"code"`
	ExpectedOutput string  `json:"expectedOutput"`
	Language       string  `json:"language"`
	Status         Status  `json:"status,omitempty"`
	Result         *Result `json:"result,omitempty"`
}

// newTest is the create body: a TestCase without id and status.
type newTest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Code           string `json:"code"`
	ExpectedOutput string `json:"expectedOutput"`
	Language       string `json:"language"`
}

// Backend is the part of api.Client the service needs.
type Backend interface {
	Get(ctx context.Context, path string, params url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// TestsPath is the root of the test API.
const TestsPath = "/tests"

// Service wraps the /tests endpoints.
type Service struct {
	backend Backend
}

// NewService returns a Service using backend.
func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

// Create stores tc. Its id and status are ignored; the backend assigns both.
func (s *Service) Create(ctx context.Context, tc *TestCase) (*TestCase, error) {
	body := newTest{
		Name:           tc.Name,
		Description:    tc.Description,
		Code:           tc.Code,
		ExpectedOutput: tc.ExpectedOutput,
		Language:       tc.Language,
	}
	var out TestCase
	if err := s.backend.Post(ctx, TestsPath, body, &out); err != nil {
		return nil, fmt.Errorf("Failed to create test: %w", err)
	}
	return &out, nil
}

// List returns every stored test.
func (s *Service) List(ctx context.Context) ([]TestCase, error) {
	var out []TestCase
	if err := s.backend.Get(ctx, TestsPath, nil, &out); err != nil {
		return nil, fmt.Errorf("listing tests: %w", err)
	}
	return out, nil
}

// Get returns one test.
func (s *Service) Get(ctx context.Context, id string) (*TestCase, error) {
	var out TestCase
	if err := s.backend.Get(ctx, TestsPath+"/"+id, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching test %s: %w", id, err)
	}
	return &out, nil
}

// FindByName returns the stored test named name. When several share the
// name the last one listed wins.
func (s *Service) FindByName(ctx context.Context, name string) (*TestCase, error) {
	tests, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := len(tests) - 1; i >= 0; i-- {
		if tests[i].Name == name {
			return &tests[i], nil
		}
	}
	return nil, fmt.Errorf("no stored test named %q", name)
}

// Update sends patch as a partial update of the test.
func (s *Service) Update(ctx context.Context, id string, patch map[string]any) (*TestCase, error) {
	var out TestCase
	if err := s.backend.Put(ctx, TestsPath+"/"+id, patch, &out); err != nil {
		return nil, fmt.Errorf("updating test %s: %w", id, err)
	}
	return &out, nil
}

// Delete removes a test.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, TestsPath+"/"+id, nil); err != nil {
		return fmt.Errorf("deleting test %s: %w", id, err)
	}
	return nil
}

// Run executes one test on the backend and returns it with its new status.
func (s *Service) Run(ctx context.Context, id string) (*TestCase, error) {
	var out TestCase
	if err := s.backend.Post(ctx, TestsPath+"/"+id+"/run", nil, &out); err != nil {
		return nil, fmt.Errorf("Failed to run test: %w", err)
	}
	return &out, nil
}

// RunAll executes every stored test.
func (s *Service) RunAll(ctx context.Context) ([]TestCase, error) {
	var out []TestCase
	if err := s.backend.Post(ctx, TestsPath+"/run-all", nil, &out); err != nil {
		return nil, fmt.Errorf("Failed to run tests: %w", err)
	}
	return out, nil
}

// FromFile builds an unsaved test case from a source file.
func FromFile(f *source.File) *TestCase {
	return &TestCase{
		Name:        f.Name,
		Description: "Test for " + f.Name,
		Code:        f.Content,
		Language:    f.LanguageID,
		Status:      StatusPending,
	}
}

// Summary counts passed and failed tests in a run-all result.
func Summary(results []TestCase) (passed, failed int) {
	for _, tc := range results {
		switch tc.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		}
	}
	return passed, failed
}

// RunMessage is the one-line report for a single run.
func RunMessage(tc *TestCase) string {
	if tc.Status == StatusPassed {
		return fmt.Sprintf("Test \"%s\" passed!", tc.Name)
	}
	reason := ""
	if tc.Result != nil {
		reason = tc.Result.Error
	}
	return fmt.Sprintf("Test \"%s\" failed: %s", tc.Name, reason)
}

var extensions = map[string]string{
	"javascript": "js",
	"typescript": "ts",
	"python":     "py",
	"java":       "java",
	"csharp":     "cs",
}

// FileExtension returns the extension a saved test gets for language.
func FileExtension(language string) string {
	if ext, ok := extensions[language]; ok {
		return ext
	}
	return "txt"
}

// FileContent renders the saved form of tc.
func FileContent(tc *TestCase) string {
	return fmt.Sprintf("// Test: %s\n// Description: %s\n\n%s\n\n// Expected output:\n%s",
		tc.Name, tc.Description, tc.Code, tc.ExpectedOutput)
}

// SaveToFile writes tc to <root>/tests/<name>.<ext> and returns the path.
func SaveToFile(root string, tc *TestCase) (string, error) {
	dir := filepath.Join(root, "tests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("Failed to save test: %w", err)
	}
	path := filepath.Join(dir, tc.Name+"."+FileExtension(tc.Language))
	if err := os.WriteFile(path, []byte(FileContent(tc)), 0o644); err != nil {
		return "", fmt.Errorf("Failed to save test: %w", err)
	}
	return path, nil
}
