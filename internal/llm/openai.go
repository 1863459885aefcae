package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/datatalk/datatalk/internal/config"
)

// OpenAIClient serves every chat-completions-compatible backend: OpenAI
// itself, Azure OpenAI deployments, and local Ollama endpoints.
type OpenAIClient struct {
	name   string
	client *openai.Client
	model  string
}

// NewOpenAI builds a client for the hosted OpenAI API.
func NewOpenAI(apiKey, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &OpenAIClient{
		name:   string(ProviderOpenAI),
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// NewAzure builds a client for an Azure OpenAI deployment described by
// a parsed deployment target.
func NewAzure(apiKey string, target config.DeploymentTarget) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("Azure OpenAI API key is required")
	}
	cfg := openai.DefaultAzureConfig(apiKey, strings.TrimRight(target.Endpoint, "/"))
	cfg.APIVersion = target.APIVersion
	cfg.AzureModelMapperFunc = func(string) string { return target.Deployment }
	return &OpenAIClient{
		name:   string(ProviderAzure),
		client: openai.NewClientWithConfig(cfg),
		model:  target.Deployment,
	}, nil
}

// NewOllama builds a client for a local OpenAI-compatible inference
// server.
func NewOllama(baseURL, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("Ollama base URL is required")
	}
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/v1"
	return &OpenAIClient{
		name:   string(ProviderOllama),
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (c *OpenAIClient) Name() string {
	return c.name
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts CompletionOptions) (Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return Completion{}, translationFailed(c.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Completion{}, emptyCompletion(c.name)
	}
	return Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
