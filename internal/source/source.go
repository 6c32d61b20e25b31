// Package source reads the code that tests are generated for and works out
// which language it is written in.
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// File is a source file, or a line range of one, ready to be sent.
type File struct {
	Path       string
	Name       string // base name without extension
	Content    string
	LanguageID string // editor-style id: "javascript", "python", "csharp", ...
}

// Language returns the generator language code for the file ("js", "csh", ...),
// or "" when the language is not one tests can be generated for.
func (f *File) Language() string {
	return GeneratorLanguage(f.LanguageID)
}

// chroma lexer names mapped to editor-style language ids.
var lexerIDs = map[string]string{
	"javascript": "javascript",
	"typescript": "typescript",
	"tsx":        "typescript",
	"python":     "python",
	"python 2":   "python",
	"java":       "java",
	"c#":         "csharp",
	"c++":        "cpp",
	"go":         "go",
	"rust":       "rust",
	"ruby":       "ruby",
	"php":        "php",
	"c":          "c",
}

// Extensions chroma resolves ambiguously.
var extensionIDs = map[string]string{
	".ts":  "typescript",
	".tsx": "typescript",
	".mjs": "javascript",
	".cjs": "javascript",
}

var generatorCodes = map[string]string{
	"javascript": "js",
	"typescript": "ts",
	"python":     "python",
	"java":       "java",
	"csharp":     "csh",
	"cpp":        "cpp",
}

// GeneratorLanguage maps an editor-style language id to the code the
// generator expects. Unsupported ids return "".
func GeneratorLanguage(languageID string) string {
	return generatorCodes[languageID]
}

// Read loads the whole file at path.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}
	return newFile(path, data), nil
}

// ReadLines loads lines from through to (1-based, inclusive) of the file at
// path. to <= 0 reads to the end of the file.
func ReadLines(path string, from, to int) (*File, error) {
	if from < 1 {
		from = 1
	}
	if to > 0 && to < from {
		return nil, fmt.Errorf("invalid line range %d-%d", from, to)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}

	var buf bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line < from {
			continue
		}
		if to > 0 && line > to {
			break
		}
		buf.Write(scanner.Bytes())
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}
	if line < from {
		return nil, fmt.Errorf("line %d is past the end of %s (%d lines)", from, path, line)
	}

	f := newFile(path, data)
	f.Content = strings.TrimSuffix(buf.String(), "\n")
	return f, nil
}

func newFile(path string, data []byte) *File {
	base := filepath.Base(path)
	return &File{
		Path:       path,
		Name:       strings.TrimSuffix(base, filepath.Ext(base)),
		Content:    string(data),
		LanguageID: DetectLanguage(base, data),
	}
}

// DetectLanguage picks a language id from the file name, falling back to
// content analysis. Unknown files are "plaintext".
func DetectLanguage(filename string, content []byte) string {
	if id, ok := extensionIDs[strings.ToLower(filepath.Ext(filename))]; ok {
		return id
	}
	var lexer chroma.Lexer
	if filename != "" {
		lexer = lexers.Match(filename)
	}
	if lexer == nil && len(content) > 0 {
		lexer = lexers.Analyse(string(content))
	}
	if lexer == nil {
		return "plaintext"
	}
	name := strings.ToLower(lexer.Config().Name)
	if id, ok := lexerIDs[name]; ok {
		return id
	}
	return name
}
