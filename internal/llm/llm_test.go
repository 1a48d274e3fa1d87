package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pavelanni/examgen/internal/llm/prompts"
)

type captured struct {
	path     string
	query    string
	apiKey   string
	auth     string
	model    string
	messages int
	format   string
}

func fakeServer(t *testing.T, content string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model          string            `json:"model"`
			Messages       []json.RawMessage `json:"messages"`
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.apiKey = r.Header.Get("api-key")
		got.auth = r.Header.Get("Authorization")
		got.model = req.Model
		got.messages = len(req.Messages)
		if req.ResponseFormat != nil {
			got.format = req.ResponseFormat.Type
		}
		w.Header().Set("Content-Type", "application/json")
		if content == "" {
			io.WriteString(w, `{"choices":[]}`)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{{
				"index":   0,
				"message": map[string]string{"role": "assistant", "content": content},
			}},
			"usage": map[string]int{"total_tokens": 42},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteAzure(t *testing.T) {
	var got captured
	srv := fakeServer(t, `{"question":"q"}`, &got)
	c := New(Options{
		Provider:   ProviderAzure,
		Endpoint:   srv.URL,
		APIKey:     "secret",
		Deployment: "exam-gpt",
		APIVersion: "2024-02-15-preview",
	})
	out, err := c.Complete(context.Background(), prompts.Prompt{System: "s", User: "u"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"question":"q"}` {
		t.Errorf("Complete() = %q", out)
	}
	if !strings.Contains(got.path, "/openai/deployments/exam-gpt/chat/completions") {
		t.Errorf("path = %q", got.path)
	}
	if !strings.Contains(got.query, "api-version=2024-02-15-preview") {
		t.Errorf("query = %q", got.query)
	}
	if got.apiKey != "secret" {
		t.Errorf("api-key header = %q", got.apiKey)
	}
	if got.messages != 2 {
		t.Errorf("messages = %d, want 2", got.messages)
	}
	if got.format != "json_object" {
		t.Errorf("response_format = %q", got.format)
	}
}

func TestCompleteOpenAICompatible(t *testing.T) {
	var got captured
	srv := fakeServer(t, "ok", &got)
	c := New(Options{Provider: ProviderOpenAI, Endpoint: srv.URL + "/v1", APIKey: "k", Deployment: "gpt-4o-mini"})
	if _, err := c.Complete(context.Background(), prompts.Prompt{User: "u"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.path != "/v1/chat/completions" {
		t.Errorf("path = %q", got.path)
	}
	if got.auth != "Bearer k" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.model != "gpt-4o-mini" {
		t.Errorf("model = %q", got.model)
	}
}

func TestCompleteEmpty(t *testing.T) {
	var got captured
	srv := fakeServer(t, "", &got)
	c := New(Options{Provider: ProviderOpenAI, Endpoint: srv.URL + "/v1", APIKey: "k", Deployment: "m"})
	_, err := c.Complete(context.Background(), prompts.Prompt{User: "u"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestPing(t *testing.T) {
	var got captured
	srv := fakeServer(t, "pong", &got)
	c := New(Options{Provider: ProviderOpenAI, Endpoint: srv.URL + "/v1", APIKey: "k", Deployment: "m"})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer down.Close()
	c = New(Options{Provider: ProviderOpenAI, Endpoint: down.URL + "/v1", APIKey: "k", Deployment: "m"})
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error from unauthorized endpoint")
	}
}

func TestNewCompleter(t *testing.T) {
	ctx := context.Background()
	if _, err := NewCompleter(ctx, Options{Provider: "bard"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewCompleter(ctx, Options{Provider: ProviderGemini}); err == nil {
		t.Error("expected error for gemini without key")
	}
	c, err := NewCompleter(ctx, Options{Provider: ProviderAzure, Endpoint: "https://x.openai.azure.com", APIKey: "k", Deployment: "d"})
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}
	if _, ok := c.(*Client); !ok {
		t.Errorf("azure completer has type %T", c)
	}
}
