package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-ant-test" {
			t.Fatalf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Fatal("anthropic-version header missing")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "SELECT count(*) FROM events"}],
			"usage": {"input_tokens": 42, "output_tokens": 7}
		}`))
	}))
	defer server.Close()

	client, err := NewAnthropic("sk-ant-test", "claude-3-5-sonnet-20241022")
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	client.baseURL = server.URL

	completion, err := client.Complete(context.Background(), "how many rows?", CompletionOptions{MaxTokens: 500})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completion.Text != "SELECT count(*) FROM events" {
		t.Fatalf("text = %q", completion.Text)
	}
	if completion.Usage.PromptTokens != 42 || completion.Usage.CompletionTokens != 7 {
		t.Fatalf("usage = %+v", completion.Usage)
	}
}

func TestAnthropicCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer server.Close()

	client, err := NewAnthropic("sk-ant-bad", "claude-3-5-sonnet-20241022")
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	client.baseURL = server.URL

	_, err = client.Complete(context.Background(), "q", CompletionOptions{MaxTokens: 500})
	var translation *TranslationError
	if !errors.As(err, &translation) {
		t.Fatalf("err = %v, want TranslationError", err)
	}
	if !strings.Contains(translation.Message, "invalid x-api-key") {
		t.Fatalf("message = %q", translation.Message)
	}
}

func TestAnthropicCompleteEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content": [], "usage": {"input_tokens": 1, "output_tokens": 0}}`))
	}))
	defer server.Close()

	client, err := NewAnthropic("sk-ant-test", "claude-3-5-sonnet-20241022")
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	client.baseURL = server.URL

	_, err = client.Complete(context.Background(), "q", CompletionOptions{MaxTokens: 500})
	var translation *TranslationError
	if !errors.As(err, &translation) {
		t.Fatalf("err = %v, want TranslationError", err)
	}
}

func TestNewAnthropicRequiresKey(t *testing.T) {
	if _, err := NewAnthropic("  ", "claude-3-5-sonnet-20241022"); err == nil {
		t.Fatal("expected error for blank key")
	}
}
