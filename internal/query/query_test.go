package query

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/datatalk/datatalk/internal/dataset"
	"github.com/datatalk/datatalk/internal/llm"
)

type stubTranslator struct {
	sql        string
	err        error
	lastSchema string
}

func (s *stubTranslator) ToSQL(_ context.Context, _ string, schema string) (string, llm.Usage, error) {
	s.lastSchema = schema
	if s.err != nil {
		return "", llm.Usage{}, s.err
	}
	return s.sql, llm.Usage{PromptTokens: 20, CompletionTokens: 8}, nil
}

func openTestDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cities.csv")
	content := "city,population\nBerlin,3700000\nHamburg,1900000\nMunich,1500000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	d, err := dataset.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open dataset: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestProcessTranslatesAndExecutes(t *testing.T) {
	translator := &stubTranslator{sql: "SELECT COUNT(*) AS c FROM events"}
	processor := &Processor{Translator: translator, Data: openTestDataset(t)}

	outcome, err := processor.Process(context.Background(), "how many rows?", false)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !outcome.Executed {
		t.Fatal("outcome not executed")
	}
	if len(outcome.Rows) != 1 || outcome.Rows[0][0] != int64(3) {
		t.Fatalf("rows = %#v", outcome.Rows)
	}
	if outcome.Usage.PromptTokens != 20 {
		t.Fatalf("usage = %+v", outcome.Usage)
	}
	if !strings.Contains(translator.lastSchema, "population (BIGINT)") {
		t.Fatalf("schema passed to translator = %q", translator.lastSchema)
	}
}

func TestProcessSQLOnlySkipsExecution(t *testing.T) {
	translator := &stubTranslator{sql: "SELECT city FROM events"}
	processor := &Processor{Translator: translator, Data: openTestDataset(t)}

	outcome, err := processor.Process(context.Background(), "list cities", true)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome.Executed {
		t.Fatal("sql-only outcome was executed")
	}
	if outcome.SQL != "SELECT city FROM events" {
		t.Fatalf("sql = %q", outcome.SQL)
	}
	if len(outcome.Rows) != 0 {
		t.Fatalf("rows = %#v", outcome.Rows)
	}
}

func TestProcessTranslationFailure(t *testing.T) {
	translator := &stubTranslator{err: &llm.TranslationError{Message: "no content returned from stub"}}
	processor := &Processor{Translator: translator, Data: openTestDataset(t)}

	_, err := processor.Process(context.Background(), "q", false)
	var translation *llm.TranslationError
	if !errors.As(err, &translation) {
		t.Fatalf("err = %v, want TranslationError", err)
	}
}

func TestProcessExecutionFailureKeepsSQL(t *testing.T) {
	translator := &stubTranslator{sql: "SELECT nope FROM events"}
	processor := &Processor{Translator: translator, Data: openTestDataset(t)}

	outcome, err := processor.Process(context.Background(), "q", false)
	var execution *dataset.ExecutionError
	if !errors.As(err, &execution) {
		t.Fatalf("err = %v, want ExecutionError", err)
	}
	if outcome.SQL != "SELECT nope FROM events" {
		t.Fatalf("sql = %q", outcome.SQL)
	}
	if outcome.Usage.CompletionTokens != 8 {
		t.Fatalf("usage = %+v", outcome.Usage)
	}
}
