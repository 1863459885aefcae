package llm

import (
	"context"
	"fmt"

	"github.com/datatalk/datatalk/internal/config"
)

// NewProvider constructs the client for an already-detected provider
// type, resolving its required configuration keys through the store
// (which may prompt and persist on first use).
func NewProvider(ctx context.Context, providerType ProviderType, store *config.Store) (Provider, error) {
	switch providerType {
	case ProviderOllama:
		baseURL, err := store.Resolve("OLLAMA_BASE_URL")
		if err != nil {
			return nil, err
		}
		model, err := store.Resolve("OLLAMA_MODEL")
		if err != nil {
			return nil, err
		}
		return NewOllama(baseURL, model)

	case ProviderAnthropic:
		apiKey, err := store.Resolve("ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		model, err := store.Resolve("ANTHROPIC_MODEL")
		if err != nil {
			return nil, err
		}
		return NewAnthropic(apiKey, model)

	case ProviderGemini:
		apiKey, err := store.Resolve("GEMINI_API_KEY")
		if err != nil {
			return nil, err
		}
		model, err := store.Resolve("GEMINI_MODEL")
		if err != nil {
			return nil, err
		}
		return NewGemini(ctx, apiKey, model)

	case ProviderOpenAI:
		apiKey, err := store.Resolve("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		model, err := store.Resolve("OPENAI_MODEL")
		if err != nil {
			return nil, err
		}
		return NewOpenAI(apiKey, model)

	case ProviderAzure:
		targetURL, err := store.Resolve("AZURE_DEPLOYMENT_TARGET_URL")
		if err != nil {
			return nil, err
		}
		apiKey, err := store.Resolve("AZURE_OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		target, err := config.ParseDeploymentURL(targetURL)
		if err != nil {
			return nil, err
		}
		return NewAzure(apiKey, target)

	default:
		return nil, fmt.Errorf("unknown provider type %q", providerType)
	}
}

// NewProviderForModel constructs a client from a unified model
// identifier string ("azure/gpt-4o", "ollama/llama3.1", "claude-...",
// "gemini-...", plain OpenAI model otherwise). The model name embedded
// in the identifier wins over any configured model key.
func NewProviderForModel(ctx context.Context, model string, store *config.Store) (Provider, error) {
	providerType, bare := RouteModel(model)
	switch providerType {
	case ProviderOllama:
		baseURL, err := store.Resolve("OLLAMA_BASE_URL")
		if err != nil {
			return nil, err
		}
		return NewOllama(baseURL, bare)
	case ProviderAnthropic:
		apiKey, err := store.Resolve("ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewAnthropic(apiKey, bare)
	case ProviderGemini:
		apiKey, err := store.Resolve("GEMINI_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewGemini(ctx, apiKey, bare)
	case ProviderAzure:
		targetURL, err := store.Resolve("AZURE_DEPLOYMENT_TARGET_URL")
		if err != nil {
			return nil, err
		}
		apiKey, err := store.Resolve("AZURE_OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		target, err := config.ParseDeploymentURL(targetURL)
		if err != nil {
			return nil, err
		}
		if bare != "" {
			target.Deployment = bare
		}
		return NewAzure(apiKey, target)
	default:
		apiKey, err := store.Resolve("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewOpenAI(apiKey, bare)
	}
}
