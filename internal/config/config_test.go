package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func countingPrompt(answer string, count *int) PromptFunc {
	return func(key Key) (string, error) {
		*count++
		return answer, nil
	}
}

func TestResolvePrefersEnvironment(t *testing.T) {
	dir := t.TempDir()
	lookup := mapLookup(map[string]string{
		"DATATALK_CONFIG_DIR": dir,
		"OPENAI_API_KEY":      "sk-env",
	})
	prompts := 0
	store, err := OpenStore(lookup, countingPrompt("sk-prompted", &prompts))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	value, err := store.Resolve("OPENAI_API_KEY")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if value != "sk-env" {
		t.Fatalf("Resolve() = %q, want %q", value, "sk-env")
	}
	if prompts != 0 {
		t.Fatalf("prompt called %d times, want 0", prompts)
	}
}

func TestResolvePromptsOncePerRun(t *testing.T) {
	dir := t.TempDir()
	lookup := mapLookup(map[string]string{"DATATALK_CONFIG_DIR": dir})
	prompts := 0
	store, err := OpenStore(lookup, countingPrompt("sk-answer", &prompts))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}

	first, err := store.Resolve("OPENAI_API_KEY")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := store.Resolve("OPENAI_API_KEY")
	if err != nil {
		t.Fatalf("Resolve() second call error = %v", err)
	}
	if first != "sk-answer" || second != "sk-answer" {
		t.Fatalf("Resolve() = %q then %q", first, second)
	}
	if prompts != 1 {
		t.Fatalf("prompt called %d times, want 1", prompts)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
}

func TestResolvePersistsAcrossStores(t *testing.T) {
	dir := t.TempDir()
	lookup := mapLookup(map[string]string{"DATATALK_CONFIG_DIR": dir})
	prompts := 0
	store, err := OpenStore(lookup, countingPrompt("llama3.1", &prompts))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if _, err := store.Resolve("OLLAMA_MODEL"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	reopened, err := OpenStore(lookup, countingPrompt("other", &prompts))
	if err != nil {
		t.Fatalf("OpenStore() reopen error = %v", err)
	}
	value, err := reopened.Resolve("OLLAMA_MODEL")
	if err != nil {
		t.Fatalf("Resolve() after reopen error = %v", err)
	}
	if value != "llama3.1" {
		t.Fatalf("Resolve() = %q, want persisted %q", value, "llama3.1")
	}
	if prompts != 1 {
		t.Fatalf("prompt called %d times, want 1", prompts)
	}
}

func TestResolveAppliesDefaultOnEmptyAnswer(t *testing.T) {
	dir := t.TempDir()
	lookup := mapLookup(map[string]string{"DATATALK_CONFIG_DIR": dir})
	prompts := 0
	store, err := OpenStore(lookup, countingPrompt("", &prompts))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	value, err := store.Resolve("OPENAI_MODEL")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if value != "gpt-4o" {
		t.Fatalf("Resolve() = %q, want default %q", value, "gpt-4o")
	}
}

func TestResolveUnknownKeyIsAnError(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(mapLookup(map[string]string{"DATATALK_CONFIG_DIR": dir}), nil)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if _, err := store.Resolve("NOT_A_REAL_KEY"); err == nil {
		t.Fatal("Resolve() expected error for unknown key")
	}
}

func TestResolveCanceledPrompt(t *testing.T) {
	dir := t.TempDir()
	prompt := func(Key) (string, error) { return "", ErrCanceled }
	store, err := OpenStore(mapLookup(map[string]string{"DATATALK_CONFIG_DIR": dir}), prompt)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if _, err := store.Resolve("OPENAI_API_KEY"); !errors.Is(err, ErrCanceled) {
		t.Fatalf("Resolve() error = %v, want ErrCanceled", err)
	}
}

func TestResetRemovesConfigFile(t *testing.T) {
	dir := t.TempDir()
	lookup := mapLookup(map[string]string{"DATATALK_CONFIG_DIR": dir})
	prompts := 0
	store, err := OpenStore(lookup, countingPrompt("sk-answer", &prompts))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if _, err := store.Resolve("OPENAI_API_KEY"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if err := store.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("config file still present after reset: %v", err)
	}
}

func TestParseDeploymentURL(t *testing.T) {
	target, err := ParseDeploymentURL("https://x.com/openai/deployments/gpt-4o/chat/completions?api-version=2024-01-01")
	if err != nil {
		t.Fatalf("ParseDeploymentURL() error = %v", err)
	}
	if target.Endpoint != "https://x.com/" {
		t.Fatalf("Endpoint = %q", target.Endpoint)
	}
	if target.Deployment != "gpt-4o" {
		t.Fatalf("Deployment = %q", target.Deployment)
	}
	if target.APIVersion != "2024-01-01" {
		t.Fatalf("APIVersion = %q", target.APIVersion)
	}
}

func TestParseDeploymentURLMissingVersion(t *testing.T) {
	_, err := ParseDeploymentURL("https://x.com/openai/deployments/gpt-4o/chat/completions")
	if !errors.Is(err, ErrInvalidDeploymentURL) {
		t.Fatalf("error = %v, want ErrInvalidDeploymentURL", err)
	}
}

func TestParseDeploymentURLMissingDeployment(t *testing.T) {
	_, err := ParseDeploymentURL("https://x.com/chat/completions?api-version=2024-01-01")
	if !errors.Is(err, ErrInvalidDeploymentURL) {
		t.Fatalf("error = %v, want ErrInvalidDeploymentURL", err)
	}
}

func TestParseDeploymentURLIgnoresExtraQueryParams(t *testing.T) {
	target, err := ParseDeploymentURL("https://x.com/openai/deployments/gpt-4o/chat/completions?api-version=2024-01-01&foo=bar")
	if err != nil {
		t.Fatalf("ParseDeploymentURL() error = %v", err)
	}
	if target.APIVersion != "2024-01-01" {
		t.Fatalf("APIVersion = %q", target.APIVersion)
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("sk-abcdefghijk"); got != "sk-abcde..." {
		t.Fatalf("MaskSecret() = %q", got)
	}
	if got := MaskSecret("short"); got != "***" {
		t.Fatalf("MaskSecret() = %q", got)
	}
}
