package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/pavelanni/examgen/internal/llm/prompts"
)

// Gemini completes prompts with the Google Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini client. Deployment is used as the model name.
func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, errors.New("missing Gemini API key")
	}
	model := opts.Deployment
	if model == "" {
		model = "gemini-2.5-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = 0.7
	}
	return &Gemini{client: c, model: model, temperature: temp}, nil
}

// Complete sends the prompt with the system text as the system instruction.
func (g *Gemini) Complete(ctx context.Context, p prompts.Prompt) (string, error) {
	temp := g.temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		Temperature:       &temp,
		ResponseMIMEType:  "application/json",
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(p.User, genai.RoleUser),
	}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API call: %w", err)
	}
	out := res.Text()
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
