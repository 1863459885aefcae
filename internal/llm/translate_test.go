package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/datatalk/datatalk/internal/geo"
)

type stubProvider struct {
	text       string
	err        error
	lastPrompt string
	lastOpts   CompletionOptions
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(_ context.Context, prompt string, opts CompletionOptions) (Completion, error) {
	p.lastPrompt = prompt
	p.lastOpts = opts
	if p.err != nil {
		return Completion{}, p.err
	}
	return Completion{Text: p.text, Usage: Usage{PromptTokens: 10, CompletionTokens: 5}}, nil
}

func noEnv(string) (string, bool) { return "", false }

func TestToSQLStripsFence(t *testing.T) {
	provider := &stubProvider{text: "```sql\nSELECT count(*) FROM events\n```"}
	translator := NewTranslator(provider, noEnv)

	sql, usage, err := translator.ToSQL(context.Background(), "how many rows?", "id (BIGINT)")
	if err != nil {
		t.Fatalf("ToSQL: %v", err)
	}
	if sql != "SELECT count(*) FROM events" {
		t.Fatalf("sql = %q", sql)
	}
	if usage.PromptTokens != 10 || usage.CompletionTokens != 5 {
		t.Fatalf("usage = %+v", usage)
	}
	if !strings.Contains(provider.lastPrompt, "id (BIGINT)") {
		t.Fatalf("schema missing from prompt: %s", provider.lastPrompt)
	}
	if !strings.Contains(provider.lastPrompt, "how many rows?") {
		t.Fatalf("question missing from prompt: %s", provider.lastPrompt)
	}
	if provider.lastOpts.MaxTokens != queryMaxTokens {
		t.Fatalf("max tokens = %d", provider.lastOpts.MaxTokens)
	}
}

func TestToSQLEmptyResponseFails(t *testing.T) {
	translator := NewTranslator(&stubProvider{text: "```sql"}, noEnv)

	_, _, err := translator.ToSQL(context.Background(), "q", "schema")
	var translation *TranslationError
	if !errors.As(err, &translation) {
		t.Fatalf("err = %v, want TranslationError", err)
	}
}

func TestToSQLPropagatesProviderError(t *testing.T) {
	providerErr := &TranslationError{Message: "stub request failed: boom"}
	translator := NewTranslator(&stubProvider{err: providerErr}, noEnv)

	_, _, err := translator.ToSQL(context.Background(), "q", "schema")
	var translation *TranslationError
	if !errors.As(err, &translation) {
		t.Fatalf("err = %v, want TranslationError", err)
	}
}

func TestTranslatorTemperatureFromEnvironment(t *testing.T) {
	provider := &stubProvider{text: "SELECT 1"}
	lookup := func(name string) (string, bool) {
		if name == "MODEL_TEMPERATURE" {
			return "0.7", true
		}
		return "", false
	}
	translator := NewTranslator(provider, lookup)

	if _, _, err := translator.ToSQL(context.Background(), "q", "schema"); err != nil {
		t.Fatalf("ToSQL: %v", err)
	}
	if provider.lastOpts.Temperature != 0.7 {
		t.Fatalf("temperature = %g, want 0.7", provider.lastOpts.Temperature)
	}
}

func vectorTestInfo() geo.Info {
	return geo.Info{
		Kind: geo.KindVector,
		Vector: &geo.VectorInfo{
			GeometryType: "Point",
			FeatureCount: 4,
			Fields: []geo.FieldInfo{
				{Name: "name", Type: "String", Samples: []string{"North Park"}},
			},
		},
	}
}

func TestToOperationParsesJSON(t *testing.T) {
	provider := &stubProvider{text: "```json\n{\"operation\": \"count_features\", \"where\": {\"field\": \"name\", \"op\": \"contains\", \"value\": \"park\"}}\n```"}
	translator := NewTranslator(provider, noEnv)

	op, _, err := translator.ToOperation(context.Background(), "how many parks?", vectorTestInfo())
	if err != nil {
		t.Fatalf("ToOperation: %v", err)
	}
	if op.Operation != "count_features" || op.Where == nil || op.Where.Field != "name" {
		t.Fatalf("op = %+v", op)
	}
	if !strings.Contains(provider.lastPrompt, "Point") {
		t.Fatalf("dataset info missing from prompt: %s", provider.lastPrompt)
	}
}

func TestToOperationRejectsNonJSON(t *testing.T) {
	translator := NewTranslator(&stubProvider{text: "SELECT * FROM events"}, noEnv)

	_, _, err := translator.ToOperation(context.Background(), "q", vectorTestInfo())
	var translation *TranslationError
	if !errors.As(err, &translation) {
		t.Fatalf("err = %v, want TranslationError", err)
	}
}

func TestToOperationRejectsWrongSchema(t *testing.T) {
	translator := NewTranslator(&stubProvider{text: `{"operation": "band_statistics"}`}, noEnv)

	_, _, err := translator.ToOperation(context.Background(), "q", vectorTestInfo())
	var translation *TranslationError
	if !errors.As(err, &translation) {
		t.Fatalf("err = %v, want TranslationError", err)
	}
}

func TestSuggestQuestionsStripsListMarkers(t *testing.T) {
	provider := &stubProvider{text: "1. What is the average?\n- Show top rows\n* Count by city\n\n2) skipped\nPlain question"}
	translator := NewTranslator(provider, noEnv)

	suggestions, _ := translator.SuggestQuestions(context.Background(), "schema", 10, "")
	want := []string{"What is the average?", "Show top rows", "Count by city", "Plain question"}
	if len(suggestions) != len(want) {
		t.Fatalf("suggestions = %v", suggestions)
	}
	for i, s := range want {
		if suggestions[i] != s {
			t.Fatalf("suggestions[%d] = %q, want %q", i, suggestions[i], s)
		}
	}
}

func TestSuggestQuestionsFallsBackOnError(t *testing.T) {
	translator := NewTranslator(&stubProvider{err: errors.New("down")}, noEnv)

	suggestions, _ := translator.SuggestQuestions(context.Background(), "schema", 10, "")
	if len(suggestions) != 5 {
		t.Fatalf("expected canned suggestions, got %v", suggestions)
	}
	if suggestions[0] != "How many rows are in the dataset?" {
		t.Fatalf("suggestions[0] = %q", suggestions[0])
	}
}

func TestSuggestQuestionsIncludesLastQuestion(t *testing.T) {
	provider := &stubProvider{text: "Follow up one"}
	translator := NewTranslator(provider, noEnv)

	translator.SuggestQuestions(context.Background(), "schema", 10, "top cities by count")
	if !strings.Contains(provider.lastPrompt, "top cities by count") {
		t.Fatalf("previous question missing from prompt: %s", provider.lastPrompt)
	}
}
