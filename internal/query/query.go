// Package query orchestrates one question round trip: translate the
// question to SQL against the loaded schema, then execute it.
package query

import (
	"context"

	"github.com/datatalk/datatalk/internal/dataset"
	"github.com/datatalk/datatalk/internal/llm"
)

// Translator is the slice of the LLM layer the processor needs.
type Translator interface {
	ToSQL(ctx context.Context, question, schema string) (string, llm.Usage, error)
}

// Outcome is one processed question. SQL is always set on success;
// Columns and Rows stay empty when execution was skipped.
type Outcome struct {
	Question string
	SQL      string
	Columns  []string
	Rows     [][]any
	Usage    llm.Usage
	Executed bool
}

// Processor binds a translator to a loaded dataset.
type Processor struct {
	Translator Translator
	Data       *dataset.Dataset
}

// Process translates the question and, unless sqlOnly is set, runs the
// resulting statement. Translation usage is reported even when the
// execution step fails so token accounting stays accurate.
func (p *Processor) Process(ctx context.Context, question string, sqlOnly bool) (Outcome, error) {
	schema, err := p.Data.Schema(ctx)
	if err != nil {
		return Outcome{Question: question}, err
	}

	sqlText, usage, err := p.Translator.ToSQL(ctx, question, schema)
	outcome := Outcome{Question: question, SQL: sqlText, Usage: usage}
	if err != nil {
		return outcome, err
	}
	if sqlOnly {
		return outcome, nil
	}

	result, err := p.Data.Execute(ctx, sqlText)
	if err != nil {
		return outcome, err
	}
	outcome.Columns = result.Columns
	outcome.Rows = result.Rows
	outcome.Executed = true
	return outcome, nil
}
