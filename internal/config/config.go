package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type LookupFunc func(string) (string, bool)

// PromptFunc asks the user for a configuration value. Implementations
// return ErrCanceled when input is aborted (interrupt or end-of-input).
type PromptFunc func(key Key) (string, error)

// ErrCanceled signals that the user aborted an interactive prompt. The
// CLI treats this as a clean exit, not a failure.
var ErrCanceled = errors.New("input canceled")

// Key describes one configuration entry that may be resolved from the
// environment, the saved store, or an interactive prompt.
type Key struct {
	Name        string
	Description string
	Secret      bool
	Default     string
	Example     string
}

var keys = map[string]Key{
	"OPENAI_API_KEY": {
		Name:        "OPENAI_API_KEY",
		Description: "OpenAI API key",
		Secret:      true,
	},
	"OPENAI_MODEL": {
		Name:        "OPENAI_MODEL",
		Description: "OpenAI model name",
		Default:     "gpt-4o",
		Example:     "gpt-4o, gpt-4o-mini, gpt-3.5-turbo",
	},
	"AZURE_OPENAI_API_KEY": {
		Name:        "AZURE_OPENAI_API_KEY",
		Description: "Azure OpenAI API key",
		Secret:      true,
	},
	"AZURE_DEPLOYMENT_TARGET_URL": {
		Name:        "AZURE_DEPLOYMENT_TARGET_URL",
		Description: "Azure OpenAI deployment target URL",
		Example: "https://your-resource.openai.azure.com/openai/" +
			"deployments/gpt-4o/chat/completions?api-version=2024-12-01-preview",
	},
	"ANTHROPIC_API_KEY": {
		Name:        "ANTHROPIC_API_KEY",
		Description: "Anthropic API key",
		Secret:      true,
	},
	"ANTHROPIC_MODEL": {
		Name:        "ANTHROPIC_MODEL",
		Description: "Anthropic model name",
		Default:     "claude-3-5-sonnet-20241022",
		Example:     "claude-3-5-sonnet-20241022, claude-3-5-haiku-20241022",
	},
	"GEMINI_API_KEY": {
		Name:        "GEMINI_API_KEY",
		Description: "Google Gemini API key",
		Secret:      true,
	},
	"GEMINI_MODEL": {
		Name:        "GEMINI_MODEL",
		Description: "Gemini model name",
		Default:     "gemini-1.5-flash",
		Example:     "gemini-1.5-flash, gemini-1.5-pro",
	},
	"OLLAMA_BASE_URL": {
		Name:        "OLLAMA_BASE_URL",
		Description: "Ollama base URL",
		Default:     "http://localhost:11434",
		Example:     "http://localhost:11434",
	},
	"OLLAMA_MODEL": {
		Name:        "OLLAMA_MODEL",
		Description: "Ollama model name",
		Example:     "llama3.1, mistral",
	},
}

// Describe returns the descriptor for a known configuration key.
func Describe(name string) (Key, bool) {
	key, ok := keys[name]
	return key, ok
}

// Dir returns the per-user configuration directory. DATATALK_CONFIG_DIR
// overrides the default location.
func Dir(lookup LookupFunc) (string, error) {
	if lookup != nil {
		if dir, ok := lookup("DATATALK_CONFIG_DIR"); ok && strings.TrimSpace(dir) != "" {
			return strings.TrimSpace(dir), nil
		}
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "datatalk"), nil
}

// Path returns the location of the JSON configuration file.
func Path(lookup LookupFunc) (string, error) {
	dir, err := Dir(lookup)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Store holds the flat string-to-string configuration mapping. Values
// resolve from the process environment first, then the saved file, then
// an interactive prompt whose answer is persisted immediately.
type Store struct {
	path   string
	values map[string]string
	lookup LookupFunc
	prompt PromptFunc
}

// OpenStore loads the saved configuration file if it exists. A nil
// lookup falls back to os.LookupEnv; a nil prompt disables interactive
// resolution (Resolve then fails on missing values).
func OpenStore(lookup LookupFunc, prompt PromptFunc) (*Store, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	path, err := Path(lookup)
	if err != nil {
		return nil, err
	}
	store := &Store{
		path:   path,
		values: map[string]string{},
		lookup: lookup,
		prompt: prompt,
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := json.Unmarshal(raw, &store.values); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return store, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Get checks the environment, then the saved mapping. It never prompts.
func (s *Store) Get(name string) (string, bool) {
	if value, ok := s.lookup(name); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	if value, ok := s.values[name]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	return "", false
}

// Resolve returns the value for a required key, prompting the user and
// persisting the answer when it is absent from both the environment and
// the saved configuration. A key missing from the descriptor table is a
// programming error: the provider table and the descriptor table have
// drifted apart.
func (s *Store) Resolve(name string) (string, error) {
	if value, ok := s.Get(name); ok {
		return value, nil
	}
	key, ok := keys[name]
	if !ok {
		return "", fmt.Errorf("unknown configuration key %q", name)
	}
	if s.prompt == nil {
		return "", fmt.Errorf("%s is not configured (set %s)", key.Description, key.Name)
	}
	value, err := s.prompt(key)
	if err != nil {
		if errors.Is(err, ErrCanceled) {
			return "", ErrCanceled
		}
		return "", fmt.Errorf("read %s: %w", key.Description, err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		value = key.Default
	}
	if value == "" {
		return "", fmt.Errorf("%s is required", key.Description)
	}
	s.values[name] = value
	if err := s.save(); err != nil {
		return "", err
	}
	return value, nil
}

// Values returns a copy of the saved mapping.
func (s *Store) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Names returns the saved key names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset deletes the saved configuration file. Returns os.ErrNotExist
// when there was nothing to delete.
func (s *Store) Reset() error {
	s.values = map[string]string{}
	return os.Remove(s.path)
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	raw, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write config file %q: %w", s.path, err)
	}
	return nil
}

// MaskSecret shortens a sensitive value for display.
func MaskSecret(value string) string {
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
