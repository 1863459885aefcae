package llm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/datatalk/datatalk/internal/config"
)

// ProviderType identifies one backend in the provider table.
type ProviderType string

const (
	ProviderOllama    ProviderType = "ollama"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGemini    ProviderType = "gemini"
	ProviderOpenAI    ProviderType = "openai"
	ProviderAzure     ProviderType = "azure"
)

// detectionOrder is the fixed precedence used when more than one
// provider is configured: local inference wins, the Azure variant is
// last. When several are present the highest-priority one is preferred
// silently apart from a warning log.
var detectionOrder = []struct {
	Type    ProviderType
	Markers []string
}{
	{ProviderOllama, []string{"OLLAMA_BASE_URL", "OLLAMA_MODEL"}},
	{ProviderAnthropic, []string{"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL"}},
	{ProviderGemini, []string{"GEMINI_API_KEY", "GEMINI_MODEL"}},
	{ProviderOpenAI, []string{"OPENAI_API_KEY", "OPENAI_MODEL"}},
	{ProviderAzure, []string{"AZURE_OPENAI_API_KEY", "AZURE_DEPLOYMENT_TARGET_URL"}},
}

// Detect returns the highest-priority provider whose marker keys are
// present in the environment or saved configuration. With nothing
// configured it falls back to an interactive menu read through
// readLine; a nil readLine makes the missing-configuration case an
// error instead.
func Detect(store *config.Store, logger *slog.Logger, out io.Writer, readLine func() (string, error)) (ProviderType, error) {
	var available []ProviderType
	for _, entry := range detectionOrder {
		for _, marker := range entry.Markers {
			if _, ok := store.Get(marker); ok {
				available = append(available, entry.Type)
				break
			}
		}
	}
	if len(available) > 0 {
		if len(available) > 1 && logger != nil {
			logger.Warn("multiple provider configurations detected",
				slog.String("preferred", string(available[0])))
		}
		return available[0], nil
	}

	if readLine == nil {
		return "", errors.New("no AI provider configured")
	}
	return chooseProvider(out, readLine)
}

func chooseProvider(out io.Writer, readLine func() (string, error)) (ProviderType, error) {
	fmt.Fprintln(out, "No AI provider configuration detected.")
	fmt.Fprintln(out, "Available providers:")
	fmt.Fprintln(out, "  1 - OpenAI (requires API key + model name)")
	fmt.Fprintln(out, "  2 - Azure OpenAI (requires API key + target URL)")
	fmt.Fprintln(out, "  3 - Anthropic Claude (requires API key + model name)")
	fmt.Fprintln(out, "  4 - Ollama (local - requires base URL + model name)")
	fmt.Fprintln(out, "  5 - Google Gemini (requires API key + model name)")

	for {
		fmt.Fprint(out, "Choose provider [1]: ")
		line, err := readLine()
		if err != nil {
			return "", config.ErrCanceled
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "1", "openai":
			return ProviderOpenAI, nil
		case "2", "azure":
			return ProviderAzure, nil
		case "3", "anthropic":
			return ProviderAnthropic, nil
		case "4", "ollama":
			return ProviderOllama, nil
		case "5", "gemini":
			return ProviderGemini, nil
		}
		fmt.Fprintln(out, "Please choose 1 (OpenAI), 2 (Azure), 3 (Anthropic), 4 (Ollama), or 5 (Gemini)")
	}
}

// RouteModel maps a unified model identifier string (the LLM_MODEL
// convention, e.g. "azure/gpt-4o", "ollama/llama3.1",
// "claude-3-5-sonnet-20241022", "gemini-1.5-flash") to a provider type
// and the bare model name for that provider.
func RouteModel(model string) (ProviderType, string) {
	trimmed := strings.TrimSpace(model)
	switch {
	case strings.HasPrefix(trimmed, "ollama/"):
		return ProviderOllama, strings.TrimPrefix(trimmed, "ollama/")
	case strings.HasPrefix(trimmed, "azure/"):
		return ProviderAzure, strings.TrimPrefix(trimmed, "azure/")
	case strings.HasPrefix(trimmed, "anthropic/"):
		return ProviderAnthropic, strings.TrimPrefix(trimmed, "anthropic/")
	case strings.HasPrefix(trimmed, "claude"):
		return ProviderAnthropic, trimmed
	case strings.HasPrefix(trimmed, "gemini/"):
		return ProviderGemini, strings.TrimPrefix(trimmed, "gemini/")
	case strings.HasPrefix(trimmed, "gemini"):
		return ProviderGemini, trimmed
	default:
		return ProviderOpenAI, trimmed
	}
}
