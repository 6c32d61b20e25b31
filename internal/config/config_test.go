package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Feature: testgen, Property 9: Config merge precedence
func TestConfigMergePrecedence(t *testing.T) {
	nonEmptyString := rapid.StringMatching(`[a-zA-Z0-9/_.:-]{1,20}`)

	configGen := rapid.Custom(func(t *rapid.T) *Config {
		cfg := &Config{}
		if rapid.Bool().Draw(t, "hasBaseURL") {
			cfg.BaseURL = nonEmptyString.Draw(t, "baseURL")
		}
		if rapid.Bool().Draw(t, "hasLanguage") {
			cfg.Language = nonEmptyString.Draw(t, "language")
		}
		if rapid.Bool().Draw(t, "hasFramework") {
			cfg.Framework = nonEmptyString.Draw(t, "framework")
		}
		if rapid.Bool().Draw(t, "hasOutputDir") {
			cfg.OutputDir = nonEmptyString.Draw(t, "outputDir")
		}
		return cfg
	})

	rapid.Check(t, func(t *rapid.T) {
		global := configGen.Draw(t, "global")
		project := configGen.Draw(t, "project")

		merged := Merge(global, project)
		defaults := Defaults()

		checkStringField(t, "BaseURL", global.BaseURL, project.BaseURL, defaults.BaseURL, merged.BaseURL)
		checkStringField(t, "Language", global.Language, project.Language, defaults.Language, merged.Language)
		checkStringField(t, "Framework", global.Framework, project.Framework, defaults.Framework, merged.Framework)
		checkStringField(t, "OutputDir", global.OutputDir, project.OutputDir, defaults.OutputDir, merged.OutputDir)
	})
}

// checkStringField asserts the merge precedence rule for a single string field:
//   - project non-empty  → merged == project
//   - project empty, global non-empty → merged == global
//   - both empty → merged == defaultVal
func checkStringField(t *rapid.T, name, globalVal, projectVal, defaultVal, mergedVal string) {
	t.Helper()
	switch {
	case projectVal != "":
		if mergedVal != projectVal {
			t.Fatalf("%s: both set: expected project value %q, got %q", name, projectVal, mergedVal)
		}
	case globalVal != "":
		if mergedVal != globalVal {
			t.Fatalf("%s: only global set: expected global value %q, got %q", name, globalVal, mergedVal)
		}
	default:
		if mergedVal != defaultVal {
			t.Fatalf("%s: neither set: expected default %q, got %q", name, defaultVal, mergedVal)
		}
	}
}

func TestDefaultsValues(t *testing.T) {
	d := Defaults()
	if d.BaseURL != "http://localhost:5001" {
		t.Errorf("BaseURL: want %q, got %q", "http://localhost:5001", d.BaseURL)
	}
	if d.OutputDir != "." {
		t.Errorf("OutputDir: want %q, got %q", ".", d.OutputDir)
	}
	if d.Timeout != 0 {
		t.Errorf("Timeout: want 0, got %v", d.Timeout)
	}
}

func TestLoadGlobalMissingFileReturnsDefaults(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config, got nil")
	}
	if cfg.BaseURL != Defaults().BaseURL {
		t.Errorf("BaseURL: want %q, got %q", Defaults().BaseURL, cfg.BaseURL)
	}
}

func TestLoadGlobalReadsYAML(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfgDir := filepath.Join(tmp, ".config", "testgen")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := "base_url: http://example.test:9000\nframework: Mocha\ntimeout: 30s\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://example.test:9000" {
		t.Errorf("BaseURL: got %q", cfg.BaseURL)
	}
	if cfg.Framework != "Mocha" {
		t.Errorf("Framework: got %q", cfg.Framework)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout: got %v", cfg.Timeout)
	}
}

func TestLoadProjectMissingFileReturnsNil(t *testing.T) {
	tmp := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })

	cfg, err := LoadProject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
}

func TestLoadGlobalParseError(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfgDir := filepath.Join(tmp, ".config", "testgen")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("base_url: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadGlobal()
	if err == nil {
		t.Fatal("expected an error for invalid YAML, got nil")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("TESTGEN_BASE_URL", "http://env.test")
	t.Setenv("TESTGEN_TIMEOUT", "5s")
	t.Setenv("TESTGEN_FRAMEWORK", "")

	cfg := ApplyEnv(Defaults())
	if cfg.BaseURL != "http://env.test" {
		t.Errorf("BaseURL: got %q", cfg.BaseURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout: got %v", cfg.Timeout)
	}
	if cfg.Framework != Defaults().Framework {
		t.Errorf("Framework: empty env var must not override, got %q", cfg.Framework)
	}
}
