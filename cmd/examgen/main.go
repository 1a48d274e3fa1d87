package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/examgen/internal/config"
	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/diagram/bank"
	"github.com/pavelanni/examgen/internal/fonts"
	"github.com/pavelanni/examgen/internal/generate"
	"github.com/pavelanni/examgen/internal/llm"
	"github.com/pavelanni/examgen/internal/llm/prompts"
	"github.com/pavelanni/examgen/internal/metrics"
)

//go:generate templ generate -path ../../internal/handler/views

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examgen",
		Short: "Generate BA certification exam questions from lecture PDFs",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), renderCmd(), hashPasswordCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examgen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func loggingFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("env-file", ".env", "dotenv file loaded before reading the environment")
}

// llmFlags registers the provider and retry settings. Empty values fall back to
// OPENAI_ENDPOINT, OPENAI_KEY, CHAT_MODEL3 and AZURE_OPENAI_API_VERSION.
func llmFlags(f *pflag.FlagSet) {
	f.String("llm-provider", llm.ProviderAzure, "LLM provider (azure, openai, gemini)")
	f.String("llm-endpoint", "", "Azure resource URL or OpenAI-compatible base URL")
	f.String("llm-key", "", "LLM API key")
	f.String("llm-deployment", "", "Azure deployment or model name")
	f.String("llm-api-version", "", "Azure OpenAI API version")
	f.Float64("llm-temperature", 0.7, "Sampling temperature")
	f.Int("llm-max-tokens", 2000, "Maximum tokens per completion")
	f.Int("max-retries", generate.DefaultMaxRetries, "Retries per question slot (0 for none)")
	f.Duration("retry-delay", generate.DefaultRetryDelay, "Base delay between retries")
	f.Int("source-chars", prompts.DefaultSourceChars, "Characters of source text included in a prompt")
}

// requestFlags registers the generation defaults.
func requestFlags(f *pflag.FlagSet) {
	f.IntP("questions", "n", 0, "Number of questions (default 50 or DEFAULT_QUESTION_COUNT)")
	f.Int("ratio-mc", 0, "Multiple-choice share in percent (default 60)")
	f.Int("ratio-short", 0, "Short-answer share in percent (default 25)")
	f.Int("ratio-essay", 0, "Essay share in percent (default 15)")
	f.Int("ratio-low", 0, "Low difficulty share in percent (default 50)")
	f.Int("ratio-medium", 0, "Medium difficulty share in percent (default 35)")
	f.Int("ratio-high", 0, "High difficulty share in percent (default 15)")
	f.Int("visual", 0, "Share of questions with a diagram, in percent")
	f.StringSlice("subject-areas", nil, "Subject areas (repeatable; default the BA exam blueprint)")
	f.String("question-lang", "ko", "Language of the generated questions (ko, en)")
	f.String("font", "", "TTF/TTC font with Hangul glyphs (default: search system fonts)")
	f.String("templates", "", "YAML diagram template bank (default: built-in)")
}

func archiveFlags(f *pflag.FlagSet) {
	f.String("s3-bucket", "", "Upload finished bundles to this bucket")
	f.String("s3-endpoint", "", "S3-compatible endpoint URL")
	f.String("s3-region", "", "Bucket region")
	f.String("s3-access-key", "", "Access key (default: AWS credential chain)")
	f.String("s3-secret-key", "", "Secret key")
	f.String("s3-prefix", "examgen", "Object key prefix")
	f.Bool("s3-path-style", false, "Use path-style bucket addressing")
}

func setupLogging(cmd *cobra.Command, debug bool) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	// DEBUG=true from an old .env still turns on debug output.
	if debug && !cmd.Flags().Changed("log-level") {
		logLevel = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examgen")
	v.AddConfigPath("/etc/examgen")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadConfig reads .env, sets up logging and assembles the configuration.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}
	legacy, err := config.LoadLegacy()
	if err != nil {
		return config.Config{}, err
	}
	setupLogging(cmd, legacy.Debug)
	return config.FromViper(viperForCmd(cmd), legacy), nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// newGenerator wires the LLM client, prompts, template bank and renderer.
func newGenerator(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*generate.Generator, *bank.Bank, error) {
	b, err := bank.Load(cfg.Templates)
	if err != nil {
		return nil, nil, fmt.Errorf("load template bank: %w", err)
	}
	p, err := prompts.Default()
	if err != nil {
		return nil, nil, fmt.Errorf("load prompts: %w", err)
	}
	p.SourceChars = cfg.LLM.SourceChars

	completer, err := llm.NewCompleter(ctx, cfg.LLMOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("create LLM client: %w", err)
	}
	if pc, ok := completer.(pinger); ok {
		if err := pc.Ping(ctx); err != nil {
			slog.Warn("LLM endpoint check failed, slots will be retried", "error", err)
		} else {
			slog.Info("LLM endpoint OK", "provider", cfg.LLM.Provider, "model", cfg.ModelName())
		}
	}

	font, err := fonts.Resolve(cfg.FontPath)
	if err != nil {
		slog.Warn("no CJK font found, diagrams use the fallback font", "error", err)
	}
	gen := generate.New(completer, p, b, diagram.NewRenderer(font), generate.Options{
		MaxRetries: cfg.LLM.MaxRetries,
		RetryDelay: cfg.LLM.RetryDelay,
		Metrics:    m,
	})
	return gen, b, nil
}
