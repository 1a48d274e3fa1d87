// Package llm talks to the hosted chat-completion APIs used to write questions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/examgen/internal/llm/prompts"
)

// Provider names.
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ErrEmptyResponse is returned when the API answers without any content.
var ErrEmptyResponse = errors.New("LLM returned no choices")

// Completer sends one prompt and returns the raw model output.
type Completer interface {
	Complete(ctx context.Context, p prompts.Prompt) (string, error)
}

// Options configures a client.
type Options struct {
	Provider string
	// Endpoint is the Azure resource URL or an OpenAI-compatible base URL.
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	// Temperature defaults to 0.7 when zero.
	Temperature float32
	MaxTokens   int
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	// jsonMode requests response_format=json_object.
	jsonMode bool
}

// New creates a client for Azure OpenAI or an OpenAI-compatible endpoint.
func New(opts Options) *Client {
	var config openai.ClientConfig
	switch opts.Provider {
	case ProviderOpenAI:
		config = openai.DefaultConfig(opts.APIKey)
		if opts.Endpoint != "" {
			config.BaseURL = opts.Endpoint
		}
	default:
		config = openai.DefaultAzureConfig(opts.APIKey, opts.Endpoint)
		if opts.APIVersion != "" {
			config.APIVersion = opts.APIVersion
		}
		deployment := opts.Deployment
		config.AzureModelMapperFunc = func(string) string { return deployment }
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = 0.7
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		model:       opts.Deployment,
		temperature: temp,
		maxTokens:   maxTokens,
		jsonMode:    true,
	}
}

// Complete sends the prompt as a system and a user message.
func (c *Client) Complete(ctx context.Context, p prompts.Prompt) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "tokens", resp.Usage.TotalTokens, "raw", raw)
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyResponse
	}
	return raw, nil
}

// Ping issues a minimal request to check credentials and the deployment name.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 5,
	})
	if err != nil {
		return fmt.Errorf("LLM connection test: %w", err)
	}
	return nil
}

// NewCompleter builds the client for the configured provider.
func NewCompleter(ctx context.Context, opts Options) (Completer, error) {
	switch opts.Provider {
	case ProviderAzure, ProviderOpenAI, "":
		return New(opts), nil
	case ProviderGemini:
		return NewGemini(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}
