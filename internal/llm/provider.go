package llm

import (
	"context"
	"fmt"
)

// Usage reports token consumption for one completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Completion is the raw text answer from a provider plus its usage.
type Completion struct {
	Text  string
	Usage Usage
}

// CompletionOptions bound one request. Temperature is the determinism
// parameter; MaxTokens caps response length.
type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
}

// Provider is one LLM backend. Implementations are stateless beyond
// their client handle; each Complete call is independent.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (Completion, error)
}

// TranslationError wraps a failed or unusable translation attempt with
// a user-readable, vendor-scrubbed message.
type TranslationError struct {
	Message string
	Err     error
}

func (e *TranslationError) Error() string {
	return e.Message
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

func translationFailed(provider string, err error) *TranslationError {
	return &TranslationError{
		Message: fmt.Sprintf("%s request failed: %s", provider, CleanVendorError(err.Error())),
		Err:     err,
	}
}

func emptyCompletion(provider string) *TranslationError {
	return &TranslationError{Message: fmt.Sprintf("no content returned from %s", provider)}
}
