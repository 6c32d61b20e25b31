package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the backend the original clients were hard-wired to.
const DefaultBaseURL = "http://localhost:5001"

// Config holds all configurable testgen settings.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`     // overrides the "model" field sent with generation requests
	Language    string        `yaml:"language"`  // default target language, e.g. "js"
	Framework   string        `yaml:"framework"` // default test framework, e.g. "Jest"
	OutputDir   string        `yaml:"output_dir"`
	Timeout     time.Duration `yaml:"timeout"` // 0 = transport default (none)
	LogLevel    string        `yaml:"log_level"`
	SidebarAddr string        `yaml:"sidebar_addr"`
	CachePath   string        `yaml:"cache_path"` // "" = $XDG_CACHE_HOME/testgen/cache.db
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Language:    "js",
		Framework:   "Jest",
		OutputDir:   ".",
		LogLevel:    "warn",
		SidebarAddr: "127.0.0.1:5002",
	}
}

// ConfigDir returns the testgen config directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "testgen"), nil
}

// LoadGlobal reads ~/.config/testgen/config.yaml.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return loadFile(filepath.Join(dir, "config.yaml"), true)
}

// LoadProject reads .testgen.yaml in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".testgen.yaml", false)
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// loadFile reads and parses a YAML config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	overlay(&result, global)
	overlay(&result, project)
	return result
}

func overlay(dst *Config, src *Config) {
	if src == nil {
		return
	}
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Language != "" {
		dst.Language = src.Language
	}
	if src.Framework != "" {
		dst.Framework = src.Framework
	}
	if src.OutputDir != "" {
		dst.OutputDir = src.OutputDir
	}
	if src.Timeout > 0 {
		dst.Timeout = src.Timeout
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.SidebarAddr != "" {
		dst.SidebarAddr = src.SidebarAddr
	}
	if src.CachePath != "" {
		dst.CachePath = src.CachePath
	}
}

// ApplyEnv overrides fields from TESTGEN_* environment variables.
// Unparseable durations are ignored.
func ApplyEnv(cfg Config) Config {
	env := &Config{
		BaseURL:     os.Getenv("TESTGEN_BASE_URL"),
		Model:       os.Getenv("TESTGEN_MODEL"),
		Language:    os.Getenv("TESTGEN_LANGUAGE"),
		Framework:   os.Getenv("TESTGEN_FRAMEWORK"),
		OutputDir:   os.Getenv("TESTGEN_OUTPUT_DIR"),
		LogLevel:    os.Getenv("TESTGEN_LOG_LEVEL"),
		SidebarAddr: os.Getenv("TESTGEN_SIDEBAR_ADDR"),
		CachePath:   os.Getenv("TESTGEN_CACHE_PATH"),
	}
	if v := strings.TrimSpace(os.Getenv("TESTGEN_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			env.Timeout = d
		}
	}
	overlay(&cfg, env)
	return cfg
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
