// Package gdtalk implements the geodatatalk command: ask natural-
// language questions about vector or raster geospatial files.
package gdtalk

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/datatalk/datatalk/internal/config"
	"github.com/datatalk/datatalk/internal/geo"
	"github.com/datatalk/datatalk/internal/llm"
	"github.com/datatalk/datatalk/internal/observability"
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

	// NewProvider overrides provider construction; nil routes the
	// model identifier to the real clients.
	NewProvider func(ctx context.Context, model string, store *config.Store) (llm.Provider, error)
}

type session struct {
	stdout        io.Writer
	stderr        io.Writer
	logger        *slog.Logger
	quiet         bool
	jsonOut       bool
	showOperation bool
	showTokens    bool
	metrics       *observability.Metrics
}

// Run executes the command and returns its exit code: 0 on success or
// clean cancel, 1 on handled errors, 2 on flag errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	s := &session{stdout: defaults.Stdout, stderr: defaults.Stderr}
	if s.stdout == nil {
		s.stdout = io.Discard
	}
	if s.stderr == nil {
		s.stderr = io.Discard
	}
	lookup := defaults.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	s.logger = defaults.Logger
	if s.logger == nil {
		s.logger = observability.NewLogger(lookup, s.stderr)
	}

	fs := flag.NewFlagSet("gdtalk", flag.ContinueOnError)
	fs.SetOutput(s.stderr)
	fs.Usage = func() {
		fmt.Fprintln(s.stderr, "usage: gdtalk [flags] <file>")
		fmt.Fprintln(s.stderr, "")
		fmt.Fprintln(s.stderr, "Ask questions about GeoJSON or ASCII grid data in natural language.")
		fmt.Fprintln(s.stderr, "")
		fs.PrintDefaults()
	}

	var oneShot string
	fs.StringVar(&oneShot, "p", "", "run a single query in non-interactive mode")
	fs.StringVar(&oneShot, "prompt", "", "run a single query in non-interactive mode")
	fs.BoolVar(&s.jsonOut, "json", false, "output results as JSON (requires -p, for scripting)")
	fs.BoolVar(&s.showOperation, "operation", false, "show generated operation details")
	noSchema := fs.Bool("no-schema", false, "don't show field/band details table when loading data")
	fs.BoolVar(&s.showTokens, "t", false, "show token usage statistics")
	fs.BoolVar(&s.showTokens, "show-tokens", false, "show token usage statistics")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if s.jsonOut && oneShot == "" {
		fmt.Fprintln(s.stderr, "Error: --json requires -p/--prompt (non-interactive mode)")
		return 2
	}
	s.quiet = oneShot != ""

	if !s.quiet {
		render.GeoLogo(s.stdout)
	}

	model, ok := lookup("LLM_MODEL")
	if !ok || strings.TrimSpace(model) == "" {
		printConfigurationHelp(s.stdout)
		return 1
	}
	model = strings.TrimSpace(model)

	if fs.NArg() < 1 {
		printFileRequiredHelp(s.stdout)
		return 1
	}
	path := fs.Arg(0)

	store, err := config.OpenStore(lookup, defaults.Prompt)
	if err != nil {
		return s.fail(err)
	}
	newProvider := defaults.NewProvider
	if newProvider == nil {
		newProvider = func(ctx context.Context, model string, store *config.Store) (llm.Provider, error) {
			return llm.NewProviderForModel(ctx, model, store)
		}
	}
	provider, err := newProvider(ctx, model, store)
	if err != nil {
		return s.fail(err)
	}

	if !s.quiet {
		fmt.Fprintf(s.stdout, "Powered by %s\n\n", model)
		fmt.Fprintf(s.stdout, "Loading geospatial data from %s...\n", path)
	}
	source, err := geo.Open(path)
	if err != nil {
		fmt.Fprintf(s.stderr, "Error loading file: %s\n", err)
		return 1
	}

	if !s.quiet {
		fmt.Fprintln(s.stdout, "Data loaded successfully!")
		fmt.Fprintln(s.stdout)
		render.GeoInfo(s.stdout, source.Info, !*noSchema)
	}

	s.metrics = observability.NewMetrics()
	translator := llm.NewTranslator(provider, lookup)

	if oneShot != "" {
		code := s.processQuestion(ctx, translator, source, oneShot)
		s.reportTokens()
		return code
	}

	if defaults.Stdin == nil {
		fmt.Fprintln(s.stderr, "Error: interactive mode needs an input stream; use -p for one-shot queries")
		return 1
	}
	code := s.interactive(ctx, translator, source, defaults.Stdin)
	s.reportTokens()
	return code
}

func (s *session) processQuestion(ctx context.Context, translator *llm.Translator, source *geo.Source, question string) int {
	op, result, err := s.answer(ctx, translator, source, question)

	if s.jsonOut {
		if encodeErr := render.GeoJSON(s.stdout, op, result, err); encodeErr != nil {
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
	if s.showOperation {
		fmt.Fprintf(s.stdout, "Operation: %+v\n\n", *op)
	}
	render.GeoResult(s.stdout, *result)
	return 0
}

// answer runs one translate-and-execute round trip.
func (s *session) answer(ctx context.Context, translator *llm.Translator, source *geo.Source, question string) (*geo.Operation, *geo.Result, error) {
	if !s.quiet {
		fmt.Fprintln(s.stdout, "Analyzing your question...")
	}
	op, usage, err := translator.ToOperation(ctx, question, source.Info)
	s.metrics.Record("query", usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		s.metrics.RecordFailure("query")
		return nil, nil, err
	}

	if !s.quiet {
		fmt.Fprintln(s.stdout, "Executing geospatial operation...")
	}
	result, err := source.Execute(op)
	if err != nil {
		return &op, nil, err
	}
	return &op, &result, nil
}

func (s *session) interactive(ctx context.Context, translator *llm.Translator, source *geo.Source, stdin io.Reader) int {
	fmt.Fprintln(s.stdout, "Ask questions about your geospatial data. Type 'quit', 'exit', or 'stop' to quit.")
	fmt.Fprintln(s.stdout)

	scanner := newLineReader(stdin)
	for {
		if ctx.Err() != nil {
			fmt.Fprintln(s.stdout, "Goodbye!")
			return 0
		}
		fmt.Fprint(s.stdout, "Question: ")
		line, err := scanner()
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

		op, result, err := s.answer(ctx, translator, source, line)
		switch {
		case errors.Is(err, context.Canceled):
			fmt.Fprintln(s.stdout, "Goodbye!")
			return 0
		case err != nil:
			fmt.Fprintf(s.stdout, "Error: %s\n", err)
		default:
			if s.showOperation {
				fmt.Fprintf(s.stdout, "Operation: %+v\n\n", *op)
			}
			render.GeoResult(s.stdout, *result)
		}
		fmt.Fprintln(s.stdout)
	}
}

func newLineReader(r io.Reader) func() (string, error) {
	reader := bufio.NewReader(r)
	return func() (string, error) {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
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

func (s *session) fail(err error) int {
	if errors.Is(err, config.ErrCanceled) || errors.Is(err, context.Canceled) {
		fmt.Fprintln(s.stdout, "Goodbye!")
		return 0
	}
	fmt.Fprintf(s.stderr, "Error: %s\n", err)
	return 1
}

func printConfigurationHelp(w io.Writer) {
	fmt.Fprintln(w, "Please configure your LLM model first")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Quick setup:")
	fmt.Fprintln(w, "  export LLM_MODEL=gpt-4o")
	fmt.Fprintln(w, "  export OPENAI_API_KEY=your-key")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Popular models:")
	fmt.Fprintln(w, "  - gpt-4o, gpt-4o-mini, gpt-3.5-turbo (OpenAI)")
	fmt.Fprintln(w, "  - azure/gpt-4o (Azure OpenAI)")
	fmt.Fprintln(w, "  - claude-3-5-sonnet-20241022 (Anthropic)")
	fmt.Fprintln(w, "  - gemini-1.5-flash, gemini-1.5-pro (Google)")
	fmt.Fprintln(w, "  - ollama/llama3.1, ollama/mistral (Ollama - local)")
}

func printFileRequiredHelp(w io.Writer) {
	fmt.Fprintln(w, "Please specify a geospatial data file to analyze")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  gdtalk <file> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  gdtalk buildings.geojson -p 'How many buildings?'")
	fmt.Fprintln(w, "  gdtalk elevation.asc -p 'What is the max elevation?'")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Supported formats: GeoJSON (.geojson, .json) and ESRI ASCII grid (.asc)")
}
