// Package dtalk implements the datatalk command: ask natural-language
// questions about a tabular data file.
package dtalk

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/datatalk/datatalk/internal/config"
	"github.com/datatalk/datatalk/internal/dataset"
	"github.com/datatalk/datatalk/internal/llm"
	"github.com/datatalk/datatalk/internal/observability"
	"github.com/datatalk/datatalk/internal/query"
	"github.com/datatalk/datatalk/internal/render"
)

var quitWords = map[string]bool{
	"quit": true, "exit": true, "q": true, "stop": true, "bye": true, "goodbye": true,
}

// Options carries the process environment so tests can run the command
// hermetically.
type Options struct {
	Lookup config.LookupFunc
	Prompt config.PromptFunc
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// NewProvider overrides provider construction; nil uses the real
	// clients.
	NewProvider func(ctx context.Context, providerType llm.ProviderType, store *config.Store) (llm.Provider, error)
}

type session struct {
	opts       Options
	stdout     io.Writer
	stderr     io.Writer
	logger     *slog.Logger
	quiet      bool
	showSQL    bool
	sqlOnly    bool
	jsonOut    bool
	csvOut     bool
	showTokens bool
	metrics    *observability.Metrics
}

// Run executes the command and returns its exit code: 0 on success or
// clean cancel, 1 on handled errors, 2 on flag errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	s := &session{opts: defaults, stdout: defaults.Stdout, stderr: defaults.Stderr}
	if s.stdout == nil {
		s.stdout = io.Discard
	}
	if s.stderr == nil {
		s.stderr = io.Discard
	}
	if s.opts.Lookup == nil {
		s.opts.Lookup = os.LookupEnv
	}
	s.logger = defaults.Logger
	if s.logger == nil {
		s.logger = observability.NewLogger(s.opts.Lookup, s.stderr)
	}

	fs := flag.NewFlagSet("dtalk", flag.ContinueOnError)
	fs.SetOutput(s.stderr)
	fs.Usage = func() {
		fmt.Fprintln(s.stderr, "usage: dtalk [flags] <file>")
		fmt.Fprintln(s.stderr, "")
		fmt.Fprintln(s.stderr, "Ask questions about CSV, TSV, Parquet or Excel data in natural language.")
		fmt.Fprintln(s.stderr, "")
		fs.PrintDefaults()
	}

	var oneShot string
	fs.StringVar(&oneShot, "p", "", "run a single question in non-interactive mode")
	fs.StringVar(&oneShot, "prompt", "", "run a single question in non-interactive mode")
	fs.BoolVar(&s.showSQL, "q", false, "show generated SQL queries")
	fs.BoolVar(&s.showSQL, "show-sql", false, "show generated SQL queries")
	fs.BoolVar(&s.sqlOnly, "sql-only", false, "print the generated SQL without executing it")
	fs.BoolVar(&s.jsonOut, "json", false, "output results as JSON")
	fs.BoolVar(&s.csvOut, "csv", false, "output results as CSV")
	hideSchema := false
	fs.BoolVar(&hideSchema, "hide-schema", false, "hide the detailed column information table")
	fs.BoolVar(&hideSchema, "no-schema", false, "hide the detailed column information table")
	configInfo := false
	fs.BoolVar(&configInfo, "c", false, "show configuration file location and exit")
	fs.BoolVar(&configInfo, "config-info", false, "show configuration file location and exit")
	resetConfig := fs.Bool("reset-config", false, "reset (clear) all saved configuration and exit")
	fs.BoolVar(&s.showTokens, "t", false, "show token usage statistics")
	fs.BoolVar(&s.showTokens, "show-tokens", false, "show token usage statistics")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (s.jsonOut || s.csvOut) && oneShot == "" {
		fmt.Fprintln(s.stderr, "Error: --json and --csv require -p/--prompt (non-interactive mode)")
		return 2
	}
	if s.jsonOut && s.csvOut {
		fmt.Fprintln(s.stderr, "Error: --json and --csv are mutually exclusive")
		return 2
	}
	s.quiet = s.jsonOut || s.csvOut

	store, err := config.OpenStore(s.opts.Lookup, s.opts.Prompt)
	if err != nil {
		return s.fail(err)
	}
	if configInfo {
		printConfigInfo(s.stdout, store)
		return 0
	}
	if *resetConfig {
		switch err := store.Reset(); {
		case errors.Is(err, os.ErrNotExist):
			fmt.Fprintln(s.stdout, "No configuration file to delete")
		case err != nil:
			return s.fail(err)
		default:
			fmt.Fprintln(s.stdout, "Configuration file deleted")
		}
		return 0
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(s.stderr, "Error: a data file is required")
		fs.Usage()
		return 1
	}
	path := fs.Arg(0)

	if !s.quiet {
		render.Logo(s.stdout)
	}

	var readLine func() (string, error)
	var reader *bufio.Reader
	if s.opts.Stdin != nil {
		reader = bufio.NewReader(s.opts.Stdin)
		readLine = func() (string, error) {
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return "", err
			}
			return strings.TrimSpace(line), nil
		}
	}

	providerType, err := llm.Detect(store, s.logger, s.stdout, readLine)
	if err != nil {
		return s.fail(err)
	}
	newProvider := s.opts.NewProvider
	if newProvider == nil {
		newProvider = func(ctx context.Context, providerType llm.ProviderType, store *config.Store) (llm.Provider, error) {
			return llm.NewProvider(ctx, providerType, store)
		}
	}
	provider, err := newProvider(ctx, providerType, store)
	if err != nil {
		return s.fail(err)
	}

	data, err := dataset.Open(ctx, path)
	if err != nil {
		return s.fail(err)
	}
	defer func() { _ = data.Close() }()

	if !s.quiet {
		fmt.Fprintln(s.stdout, "Data loaded successfully!")
		stats, err := data.Stats(ctx)
		if err != nil {
			return s.fail(err)
		}
		render.Stats(s.stdout, stats, !hideSchema)
	}

	s.metrics = observability.NewMetrics()
	translator := llm.NewTranslator(provider, s.opts.Lookup)
	processor := &query.Processor{Translator: translator, Data: data}

	if oneShot != "" {
		code := s.processQuestion(ctx, processor, oneShot)
		s.reportTokens()
		return code
	}

	if readLine == nil {
		fmt.Fprintln(s.stderr, "Error: interactive mode needs an input stream; use -p for one-shot queries")
		return 1
	}
	code := s.interactive(ctx, processor, translator, data, readLine)
	s.reportTokens()
	return code
}

// processQuestion runs one question end to end and renders the outcome
// in the selected output format.
func (s *session) processQuestion(ctx context.Context, processor *query.Processor, question string) int {
	if !s.quiet {
		fmt.Fprintln(s.stdout, "Analyzing your question...")
	}
	outcome, err := processor.Process(ctx, question, s.sqlOnly)
	s.metrics.Record("query", outcome.Usage.PromptTokens, outcome.Usage.CompletionTokens)
	var translationErr *llm.TranslationError
	if errors.As(err, &translationErr) {
		s.metrics.RecordFailure("query")
	}

	if s.jsonOut {
		if encodeErr := render.QueryJSON(s.stdout, outcome.SQL, outcome.Columns, outcome.Rows, err); encodeErr != nil {
			return s.fail(encodeErr)
		}
		if err != nil {
			return 1
		}
		return 0
	}
	if err != nil {
		return s.fail(err)
	}

	if s.sqlOnly {
		fmt.Fprintln(s.stdout, outcome.SQL)
		return 0
	}
	if s.showSQL {
		fmt.Fprintf(s.stdout, "SQL: %s\n\n", outcome.SQL)
	}
	if s.csvOut {
		if err := render.QueryCSV(s.stdout, outcome.Columns, outcome.Rows); err != nil {
			return s.fail(err)
		}
		return 0
	}
	render.Table(s.stdout, outcome.Columns, outcome.Rows, render.DefaultRowLimit)
	return 0
}

func (s *session) interactive(ctx context.Context, processor *query.Processor, translator *llm.Translator, data *dataset.Dataset, readLine func() (string, error)) int {
	fmt.Fprintln(s.stdout, "AI Assistant Ready!")
	fmt.Fprintln(s.stdout, "Ask questions about your data. Type 'quit', 'exit', or 'stop' to quit.")
	fmt.Fprintln(s.stdout)

	schema, err := data.Schema(ctx)
	if err != nil {
		return s.fail(err)
	}
	var rowCount int64
	if stats, err := data.Stats(ctx); err == nil {
		rowCount = stats.RowCount
	}

	lastQuestion := ""
	suggestions := s.refreshSuggestions(ctx, translator, schema, rowCount, lastQuestion)

	for {
		if ctx.Err() != nil {
			fmt.Fprintln(s.stdout, "Goodbye!")
			return 0
		}
		fmt.Fprint(s.stdout, "Ask a question or choose a number: ")
		line, err := readLine()
		if err != nil {
			fmt.Fprintln(s.stdout)
			fmt.Fprintln(s.stdout, "Goodbye!")
			return 0
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if quitWords[strings.ToLower(line)] {
			fmt.Fprintln(s.stdout, "Goodbye!")
			return 0
		}

		question := line
		if choice, err := strconv.Atoi(line); err == nil {
			if choice < 1 || choice > len(suggestions) {
				fmt.Fprintf(s.stdout, "Please choose 1-%d\n", len(suggestions))
				continue
			}
			question = suggestions[choice-1]
			fmt.Fprintf(s.stdout, "Selected: %s\n", question)
		}

		outcome, err := processor.Process(ctx, question, s.sqlOnly)
		s.metrics.Record("query", outcome.Usage.PromptTokens, outcome.Usage.CompletionTokens)
		var translationErr *llm.TranslationError
		if errors.As(err, &translationErr) {
			s.metrics.RecordFailure("query")
		}
		switch {
		case errors.Is(err, context.Canceled):
			fmt.Fprintln(s.stdout, "Goodbye!")
			return 0
		case err != nil:
			fmt.Fprintf(s.stdout, "Error: %s\n", err)
		case s.sqlOnly:
			fmt.Fprintln(s.stdout, outcome.SQL)
		default:
			if s.showSQL {
				fmt.Fprintf(s.stdout, "SQL: %s\n\n", outcome.SQL)
			}
			render.Table(s.stdout, outcome.Columns, outcome.Rows, render.DefaultRowLimit)
		}

		lastQuestion = question
		fmt.Fprintln(s.stdout)
		suggestions = s.refreshSuggestions(ctx, translator, schema, rowCount, lastQuestion)
	}
}

func (s *session) refreshSuggestions(ctx context.Context, translator *llm.Translator, schema string, rowCount int64, lastQuestion string) []string {
	suggestions, usage := translator.SuggestQuestions(ctx, schema, rowCount, lastQuestion)
	s.metrics.Record("suggestions", usage.PromptTokens, usage.CompletionTokens)
	render.Suggestions(s.stdout, suggestions, lastQuestion != "")
	return suggestions
}

func (s *session) reportTokens() {
	if !s.showTokens || s.metrics == nil {
		return
	}
	snapshot, err := s.metrics.Snapshot()
	if err != nil {
		s.logger.Warn("token snapshot failed", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintln(s.stdout)
	render.TokenReport(s.stdout, snapshot)
}

// fail maps an error to an exit code, keeping user cancellation clean.
func (s *session) fail(err error) int {
	if errors.Is(err, config.ErrCanceled) || errors.Is(err, context.Canceled) {
		fmt.Fprintln(s.stdout, "Goodbye!")
		return 0
	}
	fmt.Fprintf(s.stderr, "Error: %s\n", err)
	return 1
}

func printConfigInfo(w io.Writer, store *config.Store) {
	fmt.Fprintf(w, "Configuration file: %s\n", store.Path())
	values := store.Values()
	if len(values) == 0 {
		fmt.Fprintln(w, "Configuration file is empty")
		return
	}
	fmt.Fprintln(w, "Current configuration:")
	for _, name := range store.Names() {
		value := values[name]
		if key, ok := config.Describe(name); ok && key.Secret {
			value = config.MaskSecret(value)
		}
		fmt.Fprintf(w, "  %s: %s\n", name, value)
	}
}
