package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/examgen/internal/llm"
	"github.com/pavelanni/examgen/internal/model"
)

func TestFromViperDefaults(t *testing.T) {
	c := FromViper(viper.New(), Legacy{})

	assert.Equal(t, llm.ProviderAzure, c.LLM.Provider)
	assert.Equal(t, "2024-02-15-preview", c.LLM.APIVersion)
	assert.Equal(t, 50, c.Defaults.Questions)
	assert.Equal(t, model.TypeRatio{MultipleChoice: 60, ShortAnswer: 25, Essay: 15}, c.Defaults.Types)
	assert.Equal(t, model.DifficultyRatio{Low: 50, Medium: 35, High: 15}, c.Defaults.Difficulty)
	assert.Equal(t, DefaultSubjectAreas, c.Defaults.SubjectAreas)
	assert.Equal(t, "ko", c.Defaults.Language)
	assert.Equal(t, "en", c.Lang)
	assert.Equal(t, "examgen.db", c.DB)
	assert.Equal(t, 2, c.LLM.MaxRetries)
	assert.False(t, c.ArchiveEnabled())
}

func TestFromViperZeroRetries(t *testing.T) {
	v := viper.New()
	v.Set("max-retries", 0)
	assert.Equal(t, 0, FromViper(v, Legacy{}).LLM.MaxRetries)
}

func TestFromViperLegacyFallback(t *testing.T) {
	v := viper.New()
	v.Set("llm-deployment", "from-flag")
	legacy := Legacy{
		Endpoint:      "https://legacy.openai.azure.com/",
		Key:           "legacy-key",
		Deployment:    "legacy-deployment",
		APIVersion:    "2023-05-15",
		QuestionCount: 20,
		Debug:         true,
	}
	c := FromViper(v, legacy)

	assert.Equal(t, "https://legacy.openai.azure.com/", c.LLM.Endpoint)
	assert.Equal(t, "legacy-key", c.LLM.APIKey)
	assert.Equal(t, "from-flag", c.LLM.Deployment, "explicit settings win over legacy variables")
	assert.Equal(t, "2023-05-15", c.LLM.APIVersion)
	assert.Equal(t, 20, c.Defaults.Questions)
	assert.True(t, c.Debug)
	require.NoError(t, c.Validate())
}

func TestFromViperValues(t *testing.T) {
	v := viper.New()
	v.Set("llm-provider", " Gemini ")
	v.Set("llm-key", "k")
	v.Set("questions", 10)
	v.Set("ratio-mc", 100)
	v.Set("ratio-low", 100)
	v.Set("visual", 40)
	v.Set("subject-areas", []string{"a", "b"})
	v.Set("base-path", "exams/")
	v.Set("retention", "12h")
	v.Set("s3-bucket", "bundles")

	c := FromViper(v, Legacy{})
	assert.Equal(t, llm.ProviderGemini, c.LLM.Provider)
	assert.Equal(t, model.TypeRatio{MultipleChoice: 100}, c.Defaults.Types)
	assert.Equal(t, model.DifficultyRatio{Low: 100}, c.Defaults.Difficulty)
	assert.Equal(t, []string{"a", "b"}, c.Defaults.SubjectAreas)
	assert.Equal(t, "/exams", c.Server.BasePath)
	assert.Equal(t, 12*time.Hour, c.Server.Retention)
	assert.True(t, c.ArchiveEnabled())
	require.NoError(t, c.Validate())

	req := c.DefaultRequest()
	req.SourceText = "text"
	assert.Equal(t, 10, req.Total)
	assert.Equal(t, 40, req.VisualPercent)
	require.NoError(t, req.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		llm     LLM
		server  Server
		wantErr error
	}{
		{name: "azure ok", llm: LLM{Provider: llm.ProviderAzure, Endpoint: "e", APIKey: "k", Deployment: "d"}},
		{name: "azure missing key", llm: LLM{Provider: llm.ProviderAzure, Endpoint: "e", Deployment: "d"}, wantErr: ErrMissingCredentials},
		{name: "openai missing model", llm: LLM{Provider: llm.ProviderOpenAI, APIKey: "k"}, wantErr: ErrMissingCredentials},
		{name: "gemini ok", llm: LLM{Provider: llm.ProviderGemini, APIKey: "k"}},
		{name: "gemini missing key", llm: LLM{Provider: llm.ProviderGemini}, wantErr: ErrMissingCredentials},
		{
			name:   "auth user without hash",
			llm:    LLM{Provider: llm.ProviderGemini, APIKey: "k"},
			server: Server{AuthUser: "admin"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{LLM: tt.llm, Server: tt.server}.Validate()
			switch {
			case tt.wantErr != nil:
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			case tt.server.AuthUser != "":
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}

	err := Config{LLM: LLM{Provider: "bedrock"}}.Validate()
	assert.ErrorContains(t, err, "unknown LLM provider")
}

func TestLoadLegacy(t *testing.T) {
	t.Setenv("OPENAI_ENDPOINT", "https://x.openai.azure.com/")
	t.Setenv("OPENAI_KEY", "secret")
	t.Setenv("CHAT_MODEL3", "gpt-4o")
	t.Setenv("DEFAULT_QUESTION_COUNT", "100")
	t.Setenv("DEBUG", "true")

	l, err := LoadLegacy()
	require.NoError(t, err)
	assert.Equal(t, "https://x.openai.azure.com/", l.Endpoint)
	assert.Equal(t, "secret", l.Key)
	assert.Equal(t, "gpt-4o", l.Deployment)
	assert.Equal(t, "2024-02-15-preview", l.APIVersion)
	assert.Equal(t, 100, l.QuestionCount)
	assert.True(t, l.Debug)
}

func TestLoadLegacyBadNumber(t *testing.T) {
	t.Setenv("DEFAULT_QUESTION_COUNT", "many")
	_, err := LoadLegacy()
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXAMGEN_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("EXAMGEN_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("EXAMGEN_TEST_DOTENV"))
}

func TestNormalizeBasePath(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"/":       "",
		"ko":      "/ko",
		"/ko/":    "/ko",
		" /a/b/ ": "/a/b",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeBasePath(in), in)
	}
}
