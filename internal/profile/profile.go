// Package profile manages the user's testgen preferences.
// The profile is stored at ~/.config/testgen/profile.json and is created
// once via the interactive setup flow, then used to fill config gaps.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fakeyudi/testgen/internal/chat"
)

// Profile holds user-level preferences set during first-run setup.
type Profile struct {
	Name         string `json:"name"`          // author shown in exported transcripts
	Language     string `json:"language"`      // default target language code, e.g. "js"
	Framework    string `json:"framework"`     // default test framework for Language
	ExportFormat string `json:"export_format"` // "markdown" | "json"
	TestsDir     string `json:"tests_dir"`     // root under which tests/<name>.<ext> is written
}

// profilePath returns the path to the profile file.
func profilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

// ConfigDir returns the testgen config directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "testgen"), nil
}

// Exists reports whether a profile file is present on disk.
func Exists() bool {
	p, err := profilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads the profile from disk. Returns an error if the file is missing or malformed.
func Load() (*Profile, error) {
	p, err := profilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("profile not found, run 'testgen setup' to configure: %w", err)
	}
	var prof Profile
	if err := json.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("malformed profile at %s: %w", p, err)
	}
	return &prof, nil
}

// Save writes the profile to disk, creating the config directory if needed.
func Save(prof *Profile) error {
	p, err := profilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// Defaults is the profile the wizard starts from on first run.
func Defaults() *Profile {
	return &Profile{
		Language:     "js",
		Framework:    chat.DefaultFramework("js"),
		ExportFormat: "markdown",
		TestsDir:     ".",
	}
}

// RunSetup runs the interactive setup wizard on p and returns the resulting
// profile. If existing is non-nil, it is used as the default for each prompt.
// The profile is not saved.
func RunSetup(p *Prompter, existing *Profile) (*Profile, error) {
	prof := Defaults()
	if existing != nil {
		*prof = *existing
	}

	out := p.out
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │   testgen · first-time setup    │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error
	prof.Name, err = p.Ask("  Your name (shown in exported chats)", prof.Name)
	if err != nil {
		return nil, err
	}

	langPrompt := fmt.Sprintf("  Default language (%s)", strings.Join(chat.Languages, "/"))
	for {
		lang, err := p.Ask(langPrompt, prof.Language)
		if err != nil {
			return nil, err
		}
		if slices.Contains(chat.Languages, lang) {
			if lang != prof.Language {
				prof.Framework = chat.DefaultFramework(lang)
			}
			prof.Language = lang
			break
		}
		fmt.Fprintf(out, "  Unknown language %q\n", lang)
	}

	if !chat.SupportsFramework(prof.Language, prof.Framework) {
		prof.Framework = chat.DefaultFramework(prof.Language)
	}
	fwPrompt := fmt.Sprintf("  Test framework (%s)", strings.Join(chat.Frameworks(prof.Language), "/"))
	for {
		fw, err := p.Ask(fwPrompt, prof.Framework)
		if err != nil {
			return nil, err
		}
		if chat.SupportsFramework(prof.Language, fw) {
			prof.Framework = fw
			break
		}
		fmt.Fprintf(out, "  %s is not offered for %s\n", fw, prof.Language)
	}

	format, err := p.Ask("  Export format (markdown/json)", prof.ExportFormat)
	if err != nil {
		return nil, err
	}
	if format == "json" {
		prof.ExportFormat = "json"
	} else {
		prof.ExportFormat = "markdown"
	}

	prof.TestsDir, err = p.Ask("  Directory for saved tests", prof.TestsDir)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(out)
	return prof, nil
}
