package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/datatalk/datatalk/internal/config"
	"github.com/datatalk/datatalk/internal/geo"
)

const (
	defaultTemperature = 0.1
	queryMaxTokens     = 500
	suggestMaxTokens   = 300
	suggestTemperature = 0.3
)

// Translator turns natural-language questions into executable queries
// through one resolved provider. It is stateless: every call is an
// independent request/response round trip.
type Translator struct {
	provider    Provider
	temperature float32
}

// NewTranslator wraps a provider. The determinism parameter comes from
// the MODEL_TEMPERATURE environment variable, defaulting to a low but
// non-zero value.
func NewTranslator(provider Provider, lookup config.LookupFunc) *Translator {
	temperature := float32(defaultTemperature)
	if lookup != nil {
		if raw, ok := lookup("MODEL_TEMPERATURE"); ok {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 32); err == nil {
				temperature = float32(parsed)
			}
		}
	}
	return &Translator{provider: provider, temperature: temperature}
}

// ProviderName reports which backend answers translation requests.
func (t *Translator) ProviderName() string {
	return t.provider.Name()
}

// ToSQL translates a question about the events table into a DuckDB
// SELECT statement. The SELECT convention is instructed through the
// prompt only; it is deliberately not enforced here.
func (t *Translator) ToSQL(ctx context.Context, question, schema string) (string, Usage, error) {
	prompt := fmt.Sprintf(`You are a data assistant.
The user asks questions about a table named 'events'.
Schema of events: %s

Return ONLY valid SQL for DuckDB, nothing else.
SQL should start with SELECT and must reference the 'events' table.

User question: %s`, schema, question)

	completion, err := t.provider.Complete(ctx, prompt, CompletionOptions{
		Temperature: t.temperature,
		MaxTokens:   queryMaxTokens,
	})
	if err != nil {
		return "", completion.Usage, err
	}
	sql := Sanitize(completion.Text)
	if sql == "" {
		return "", completion.Usage, emptyCompletion(t.provider.Name())
	}
	return sql, completion.Usage, nil
}

// ToOperation translates a question about a geospatial dataset into a
// structured operation. The response must be valid JSON for the schema
// matching the dataset kind; anything else is a translation failure,
// never a silent fallback.
func (t *Translator) ToOperation(ctx context.Context, question string, info geo.Info) (geo.Operation, Usage, error) {
	var prompt string
	switch info.Kind {
	case geo.KindVector:
		prompt = vectorOperationPrompt(question, info)
	case geo.KindRaster:
		prompt = rasterOperationPrompt(question, info)
	default:
		return geo.Operation{}, Usage{}, fmt.Errorf("unknown dataset kind %q", info.Kind)
	}

	completion, err := t.provider.Complete(ctx, prompt, CompletionOptions{
		Temperature: t.temperature,
		MaxTokens:   queryMaxTokens,
	})
	if err != nil {
		return geo.Operation{}, completion.Usage, err
	}
	cleaned := Sanitize(completion.Text)
	if cleaned == "" {
		return geo.Operation{}, completion.Usage, emptyCompletion(t.provider.Name())
	}
	op, err := geo.ParseOperation(info.Kind, cleaned)
	if err != nil {
		return geo.Operation{}, completion.Usage, &TranslationError{
			Message: fmt.Sprintf("invalid operation from %s: %s", t.provider.Name(), err),
			Err:     err,
		}
	}
	return op, completion.Usage, nil
}

func vectorOperationPrompt(question string, info geo.Info) string {
	var fields strings.Builder
	for _, field := range info.Vector.Fields {
		fmt.Fprintf(&fields, "%s (%s) - samples: %s\n", field.Name, field.Type, strings.Join(field.Samples, ", "))
	}
	return fmt.Sprintf(`You are a geospatial analyst assistant. Convert the user's question into a structured operation for vector geospatial data.

Dataset Information:
- Type: Vector (%s geometry)
- Feature Count: %d
- Extent: [%g, %g, %g, %g]
- Fields:
%s
Available operations: describe, list_features, count_features, filter_features, spatial_filter, statistics.

Return JSON in this format:
{
  "operation": "operation_name",
  "limit": number (optional, default 10 for list operations),
  "field": "field name for statistics (optional)",
  "bbox": [min_x, min_y, max_x, max_y] (optional, for spatial filter),
  "where": {"field": "name", "op": "=|!=|>|>=|<|<=|contains", "value": ...} (optional attribute filter)
}

CRITICAL RULES:
- Output ONLY valid JSON, nothing else
- No explanations, no markdown, no code blocks
- If unsure, use the "describe" operation
- Use field names from the schema above

User question: %s

JSON response:`,
		info.Vector.GeometryType,
		info.Vector.FeatureCount,
		info.Vector.Extent.MinX, info.Vector.Extent.MinY, info.Vector.Extent.MaxX, info.Vector.Extent.MaxY,
		fields.String(),
		question)
}

func rasterOperationPrompt(question string, info geo.Info) string {
	return fmt.Sprintf(`You are a geospatial analyst assistant. Convert the user's question into a structured operation for raster geospatial data.

Dataset Information:
- Type: Raster
- Dimensions: %d x %d cells
- Cell Size: %g
- Extent: [%g, %g, %g, %g]
- Value range: %g to %g

Available operations: describe, metadata, band_statistics, pixel_value.

Return JSON in this format:
{
  "operation": "operation_name",
  "band": band_number (optional, default 1),
  "x": x_coordinate (for pixel_value),
  "y": y_coordinate (for pixel_value)
}

CRITICAL RULES:
- Output ONLY valid JSON, nothing else
- No explanations, no markdown, no code blocks
- If unsure, use the "describe" operation
- Coordinates are in the dataset's own coordinate system

User question: %s

JSON response:`,
		info.Raster.Width, info.Raster.Height,
		info.Raster.CellSize,
		info.Raster.Extent.MinX, info.Raster.Extent.MinY, info.Raster.Extent.MaxX, info.Raster.Extent.MaxY,
		info.Raster.Min, info.Raster.Max,
		question)
}

// SuggestQuestions asks for follow-up questions grounded in the schema
// and, when present, the previous question. Failures degrade to canned
// suggestions so the interactive loop never stalls on this extra.
func (t *Translator) SuggestQuestions(ctx context.Context, schema string, rowCount int64, lastQuestion string) ([]string, Usage) {
	var prompt string
	if lastQuestion != "" {
		prompt = fmt.Sprintf(`You are a data analyst. A user just asked: %q

Based on this previous question and the dataset below, suggest 5 follow-up questions that build on their previous query.

Dataset Info:
- Schema: %s
- Total rows: %d

Return ONLY the questions, one per line, no numbering or bullet points.`, lastQuestion, schema, rowCount)
	} else {
		prompt = fmt.Sprintf(`You are a data analyst. Given this dataset information, suggest 5 interesting starter questions a user might ask about this data.

Dataset Info:
- Schema: %s
- Total rows: %d

Return ONLY the questions, one per line, no numbering or bullet points.`, schema, rowCount)
	}

	completion, err := t.provider.Complete(ctx, prompt, CompletionOptions{
		Temperature: suggestTemperature,
		MaxTokens:   suggestMaxTokens,
	})
	if err != nil {
		return fallbackSuggestions(lastQuestion), completion.Usage
	}
	suggestions := parseSuggestions(completion.Text)
	if len(suggestions) == 0 {
		return fallbackSuggestions(lastQuestion), completion.Usage
	}
	return suggestions, completion.Usage
}

func parseSuggestions(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•* ")
		// Drop "1. " style prefixes.
		if len(line) > 0 && line[0] >= '0' && line[0] <= '9' {
			if _, rest, found := strings.Cut(line, "."); found {
				line = strings.TrimSpace(rest)
			} else {
				continue
			}
		}
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == 5 {
			break
		}
	}
	return out
}

func fallbackSuggestions(lastQuestion string) []string {
	if lastQuestion != "" {
		return []string{
			"Show me more details about this data",
			"What are some related patterns?",
			"How does this compare to other segments?",
			"What trends can we identify?",
			"Are there any outliers or anomalies?",
		}
	}
	return []string{
		"How many rows are in the dataset?",
		"Show me the first 10 rows",
		"What are the column names?",
		"Show me some summary statistics",
		"What are the unique values in the first column?",
	}
}
