// Package config gathers settings from flags, EXAMGEN_* variables, config files,
// .env and the variables used by earlier deployments into one Config value.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pavelanni/examgen/internal/llm"
	"github.com/pavelanni/examgen/internal/model"
)

// ErrMissingCredentials is returned when the selected LLM provider lacks an endpoint, key or model.
var ErrMissingCredentials = errors.New("missing LLM credentials")

// DefaultSubjectAreas are the exam blueprint areas of the BA modeling course.
var DefaultSubjectAreas = []string{
	"프로세스 모델링 – 설계 > 단위테스트 케이스 설계",
	"프로세스 모델링 – 분석 > 요구사항 정의",
	"프로세스 모델링 – 분석 > 인터페이스 정의",
	"프로세스 모델링 – 분석 > 개발방법론",
	"프로세스 모델링 – 설계 > 인터페이스 설계",
	"프로세스 모델링 – 설계 > MSA 서비스 설계",
	"프로세스 모델링 – 분석 > 화면정의",
	"데이터 모델링 – 데이터 모델링 > 물리데이터 모델링",
	"데이터 모델링 – 데이터 모델링 > 논리데이터 모델링",
	"데이터 모델링 – 데이터 표준화 > 데이터 표준관리",
	"데이터 모델링 – 데이터 표준화 > 데이터 표준화",
}

const (
	defaultAPIVersion = "2024-02-15-preview"
	defaultMaxRetries = 2
)

// Legacy holds the variables an .env file of the first version of the tool defines.
type Legacy struct {
	Endpoint      string `env:"OPENAI_ENDPOINT"`
	Key           string `env:"OPENAI_KEY"`
	Deployment    string `env:"CHAT_MODEL3"`
	APIVersion    string `env:"AZURE_OPENAI_API_VERSION" envDefault:"2024-02-15-preview"`
	QuestionCount int    `env:"DEFAULT_QUESTION_COUNT" envDefault:"50"`
	Debug         bool   `env:"DEBUG"`
}

// LLM selects and authenticates the question-writing model.
type LLM struct {
	Provider    string
	Endpoint    string
	APIKey      string
	Deployment  string
	APIVersion  string
	Temperature float32
	MaxTokens   int
	MaxRetries  int
	RetryDelay  time.Duration
	SourceChars int
}

// Defaults pre-fills the generation form and the generate command.
type Defaults struct {
	Questions     int
	Types         model.TypeRatio
	Difficulty    model.DifficultyRatio
	VisualPercent int
	SubjectAreas  []string
	Language      string
}

// Server configures the HTTP front end.
type Server struct {
	Addr          string
	BasePath      string
	SecureCookies bool
	// AuthUser and AuthPasswordHash enable HTTP basic auth when both are set.
	AuthUser         string
	AuthPasswordHash string
	Retention        time.Duration
	MaxUploadMB      int
}

// Archive configures the optional S3-compatible bundle upload.
type Archive struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
	PathStyle bool
}

// Config is the complete application configuration.
type Config struct {
	LLM       LLM
	Defaults  Defaults
	Server    Server
	Archive   Archive
	DB        string
	Lang      string
	FontPath  string
	Templates string
	Debug     bool
}

// LoadDotEnv loads .env files, ignoring those that do not exist. Variables
// already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
		slog.Debug("loaded env file", "path", p)
	}
	return nil
}

// LoadLegacy parses the legacy variables from the environment.
func LoadLegacy() (Legacy, error) {
	var l Legacy
	if err := env.Parse(&l); err != nil {
		return Legacy{}, fmt.Errorf("parse legacy environment: %w", err)
	}
	return l, nil
}

// FromViper builds a Config from bound flags and environment. Empty LLM
// settings and a zero question count are filled from the legacy variables.
func FromViper(v *viper.Viper, legacy Legacy) Config {
	c := Config{
		LLM: LLM{
			Provider:    strings.ToLower(strings.TrimSpace(v.GetString("llm-provider"))),
			Endpoint:    v.GetString("llm-endpoint"),
			APIKey:      v.GetString("llm-key"),
			Deployment:  v.GetString("llm-deployment"),
			APIVersion:  v.GetString("llm-api-version"),
			Temperature: float32(v.GetFloat64("llm-temperature")),
			MaxTokens:   v.GetInt("llm-max-tokens"),
			MaxRetries:  maxRetries(v),
			RetryDelay:  v.GetDuration("retry-delay"),
			SourceChars: v.GetInt("source-chars"),
		},
		Defaults: Defaults{
			Questions: v.GetInt("questions"),
			Types: model.TypeRatio{
				MultipleChoice: v.GetInt("ratio-mc"),
				ShortAnswer:    v.GetInt("ratio-short"),
				Essay:          v.GetInt("ratio-essay"),
			},
			Difficulty: model.DifficultyRatio{
				Low:    v.GetInt("ratio-low"),
				Medium: v.GetInt("ratio-medium"),
				High:   v.GetInt("ratio-high"),
			},
			VisualPercent: v.GetInt("visual"),
			SubjectAreas:  v.GetStringSlice("subject-areas"),
			Language:      v.GetString("question-lang"),
		},
		Server: Server{
			Addr:             v.GetString("addr"),
			BasePath:         NormalizeBasePath(v.GetString("base-path")),
			SecureCookies:    v.GetBool("secure-cookies"),
			AuthUser:         v.GetString("auth-user"),
			AuthPasswordHash: v.GetString("auth-password-hash"),
			Retention:        v.GetDuration("retention"),
			MaxUploadMB:      v.GetInt("max-upload-mb"),
		},
		Archive: Archive{
			Bucket:    v.GetString("s3-bucket"),
			Endpoint:  v.GetString("s3-endpoint"),
			Region:    v.GetString("s3-region"),
			AccessKey: v.GetString("s3-access-key"),
			SecretKey: v.GetString("s3-secret-key"),
			Prefix:    v.GetString("s3-prefix"),
			PathStyle: v.GetBool("s3-path-style"),
		},
		DB:        v.GetString("db"),
		Lang:      v.GetString("lang"),
		FontPath:  v.GetString("font"),
		Templates: v.GetString("templates"),
		Debug:     legacy.Debug,
	}
	c.applyLegacy(legacy)
	c.applyDefaults()
	return c
}

// maxRetries distinguishes an explicit 0 (no retries) from an unset value.
func maxRetries(v *viper.Viper) int {
	if !v.IsSet("max-retries") {
		return defaultMaxRetries
	}
	return v.GetInt("max-retries")
}

func (c *Config) applyLegacy(l Legacy) {
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = l.Endpoint
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = l.Key
	}
	if c.LLM.Deployment == "" {
		c.LLM.Deployment = l.Deployment
	}
	if c.LLM.APIVersion == "" {
		c.LLM.APIVersion = l.APIVersion
	}
	if c.Defaults.Questions == 0 {
		c.Defaults.Questions = l.QuestionCount
	}
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = llm.ProviderAzure
	}
	if c.LLM.APIVersion == "" {
		c.LLM.APIVersion = defaultAPIVersion
	}
	if c.Defaults.Questions == 0 {
		c.Defaults.Questions = 50
	}
	if c.Defaults.Types == (model.TypeRatio{}) {
		c.Defaults.Types = model.TypeRatio{MultipleChoice: 60, ShortAnswer: 25, Essay: 15}
	}
	if c.Defaults.Difficulty == (model.DifficultyRatio{}) {
		c.Defaults.Difficulty = model.DifficultyRatio{Low: 50, Medium: 35, High: 15}
	}
	if len(c.Defaults.SubjectAreas) == 0 {
		c.Defaults.SubjectAreas = append([]string(nil), DefaultSubjectAreas...)
	}
	if c.Defaults.Language == "" {
		c.Defaults.Language = "ko"
	}
	if c.Lang == "" {
		c.Lang = "en"
	}
	if c.DB == "" {
		c.DB = "examgen.db"
	}
}

// NormalizeBasePath returns "" or a path with a leading and no trailing slash.
func NormalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Validate checks that the selected provider can be reached.
func (c Config) Validate() error {
	var missing []string
	switch c.LLM.Provider {
	case llm.ProviderAzure:
		if c.LLM.Endpoint == "" {
			missing = append(missing, "endpoint (OPENAI_ENDPOINT)")
		}
		if c.LLM.APIKey == "" {
			missing = append(missing, "API key (OPENAI_KEY)")
		}
		if c.LLM.Deployment == "" {
			missing = append(missing, "deployment (CHAT_MODEL3)")
		}
	case llm.ProviderOpenAI:
		if c.LLM.APIKey == "" {
			missing = append(missing, "API key")
		}
		if c.LLM.Deployment == "" {
			missing = append(missing, "model")
		}
	case llm.ProviderGemini:
		if c.LLM.APIKey == "" {
			missing = append(missing, "API key")
		}
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLM.Provider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s provider needs %s", ErrMissingCredentials, c.LLM.Provider, strings.Join(missing, ", "))
	}
	if c.Server.AuthUser != "" && c.Server.AuthPasswordHash == "" {
		return errors.New("auth-user is set but auth-password-hash is empty")
	}
	return nil
}

// LLMOptions returns the client options for the configured provider.
func (c Config) LLMOptions() llm.Options {
	return llm.Options{
		Provider:    c.LLM.Provider,
		Endpoint:    c.LLM.Endpoint,
		APIKey:      c.LLM.APIKey,
		Deployment:  c.LLM.Deployment,
		APIVersion:  c.LLM.APIVersion,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	}
}

// DefaultRequest returns a generation request pre-filled with the defaults.
// The caller supplies the source text.
func (c Config) DefaultRequest() model.GenerationRequest {
	return model.GenerationRequest{
		Total:         c.Defaults.Questions,
		Types:         c.Defaults.Types,
		Difficulty:    c.Defaults.Difficulty,
		VisualPercent: c.Defaults.VisualPercent,
		SubjectAreas:  append([]string(nil), c.Defaults.SubjectAreas...),
		Language:      c.Defaults.Language,
		Seed:          time.Now().UnixNano(),
	}
}

// ModelName is the human-readable model identifier shown in the UI.
func (c Config) ModelName() string {
	if c.LLM.Deployment != "" {
		return c.LLM.Deployment
	}
	return "-"
}

// ArchiveEnabled reports whether finished bundles are uploaded.
func (c Config) ArchiveEnabled() bool {
	return c.Archive.Bucket != ""
}
