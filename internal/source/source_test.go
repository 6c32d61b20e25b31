package source

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"pgregory.net/rapid"
)

func writeTestFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDetectLanguageByExtension(t *testing.T) {
	cases := map[string]string{
		"add.js":    "javascript",
		"add.ts":    "typescript",
		"calc.py":   "python",
		"Calc.java": "java",
		"Calc.cs":   "csharp",
		"calc.cpp":  "cpp",
		"main.go":   "go",
	}
	for name, want := range cases {
		if got := DetectLanguage(name, nil); got != want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestGeneratorLanguage(t *testing.T) {
	cases := map[string]string{
		"javascript": "js",
		"typescript": "ts",
		"python":     "python",
		"java":       "java",
		"csharp":     "csh",
		"cpp":        "cpp",
		"go":         "",
	}
	for id, want := range cases {
		if got := GeneratorLanguage(id); got != want {
			t.Errorf("GeneratorLanguage(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	p := writeTestFile(t, dir, "math.utils.js", "function add(a,b){return a+b;}\n")

	f, err := Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.Name != "math.utils" {
		t.Errorf("Name: got %q", f.Name)
	}
	if f.Language() != "js" {
		t.Errorf("Language: got %q", f.Language())
	}
	if f.Content != "function add(a,b){return a+b;}\n" {
		t.Errorf("Content: got %q", f.Content)
	}
}

// Feature: testgen, Property 11: line ranges select exactly the requested lines
func TestReadLinesRange(t *testing.T) {
	dir := t.TempDir()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "lines")
		lines := make([]string, n)
		for i := range lines {
			lines[i] = rapid.StringMatching(`[a-z(){};= ]{0,20}`).Draw(t, "line")
		}
		from := rapid.IntRange(1, n).Draw(t, "from")
		to := rapid.IntRange(from, n).Draw(t, "to")

		body := ""
		for _, l := range lines {
			body += l + "\n"
		}
		p := filepath.Join(dir, "snippet.py")
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}

		f, err := ReadLines(p, from, to)
		if err != nil {
			t.Fatalf("ReadLines: %v", err)
		}
		want := ""
		for i := from - 1; i < to; i++ {
			if i > from-1 {
				want += "\n"
			}
			want += lines[i]
		}
		if f.Content != want {
			t.Fatalf("ReadLines(%d,%d): got %q, want %q", from, to, f.Content, want)
		}
	})
}

func TestReadLinesErrors(t *testing.T) {
	dir := t.TempDir()
	p := writeTestFile(t, dir, "a.js", "one\ntwo\n")

	if _, err := ReadLines(p, 3, 0); err == nil {
		t.Error("expected error for start past end")
	}
	if _, err := ReadLines(p, 2, 1); err == nil {
		t.Error("expected error for inverted range")
	}
	f, err := ReadLines(p, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.Content != "two" {
		t.Errorf("open-ended range: got %q", f.Content)
	}
}

func TestFinderHonoursIgnoreFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "src/add.js", "x")
	writeTestFile(t, dir, "src/sub.py", "x")
	writeTestFile(t, dir, "src/notes.txt", "x")
	writeTestFile(t, dir, "vendor/lib.js", "x")
	writeTestFile(t, dir, "src/gen.min.js", "x")
	writeTestFile(t, dir, ".cache/hidden.js", "x")
	writeTestFile(t, dir, ".gitignore", "# deps\nvendor/\n*.min.js\n")

	fd := &Finder{Root: dir}
	files, warnings, err := fd.Find()
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	var got []string
	for _, f := range files {
		rel, _ := filepath.Rel(dir, f.Path)
		got = append(got, rel)
	}
	sort.Strings(got)
	want := []string{filepath.Join("src", "add.js"), filepath.Join("src", "sub.py")}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Find: got %v, want %v", got, want)
	}
}
