package source

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFiles are read from the root of a Finder walk.
var IgnoreFiles = []string{".gitignore", ".testgenignore"}

// Finder walks a directory for files tests can be generated for.
type Finder struct {
	Root           string
	IgnorePatterns []string
}

// Find returns every file under Root whose language has a generator code,
// skipping hidden directories and anything matching an ignore pattern.
func (fd *Finder) Find() ([]*File, []string, error) {
	root := fd.Root
	if root == "" {
		root = "."
	}
	patterns, warnings := fd.loadIgnorePatterns(root)

	var files []*File
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			warnings = append(warnings, err.Error())
			return nil
		}
		if path != root && isIgnored(root, path, patterns) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if GeneratorLanguage(DetectLanguage(d.Name(), nil)) == "" {
			return nil
		}
		f, err := Read(path)
		if err != nil {
			warnings = append(warnings, err.Error())
			return nil
		}
		files = append(files, f)
		return nil
	})
	return files, warnings, err
}

// isIgnored reports whether path matches any of the glob patterns by base
// name or by path relative to root.
func isIgnored(root, path string, patterns []string) bool {
	rel := path
	if r, err := filepath.Rel(root, path); err == nil {
		rel = r
	}
	base := filepath.Base(path)

	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(strings.TrimPrefix(pattern, "/"), "/")
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// loadIgnorePatterns merges the configured patterns with the ignore files in root.
func (fd *Finder) loadIgnorePatterns(root string) ([]string, []string) {
	patterns := append([]string(nil), fd.IgnorePatterns...)
	var warnings []string
	for _, name := range IgnoreFiles {
		extra, err := readPatternFile(filepath.Join(root, name))
		if err != nil {
			if !os.IsNotExist(err) {
				warnings = append(warnings, "failed to load ignore patterns: "+err.Error())
			}
			continue
		}
		patterns = append(patterns, extra...)
	}
	return patterns, warnings
}

// readPatternFile reads a gitignore-style file and returns non-empty,
// non-comment lines. Negations are not supported and are skipped.
func readPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}
