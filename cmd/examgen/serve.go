package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/pavelanni/examgen/internal/archive"
	"github.com/pavelanni/examgen/internal/handler"
	appI18n "github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/metrics"
	"github.com/pavelanni/examgen/internal/store"
)

const (
	purgeInterval   = time.Hour
	shutdownTimeout = 30 * time.Second
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "examgen.db", "SQLite database path")
	f.StringP("lang", "l", "en", "Default UI language (en, ko)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /examgen)")
	f.Bool("secure-cookies", false, "Set Secure flag on cookies (enable behind HTTPS)")
	f.String("auth-user", "", "Require HTTP basic auth with this user name")
	f.String("auth-password-hash", "", "bcrypt hash of the basic auth password (see hash-password)")
	f.Duration("retention", 0, "Delete runs older than this (0 keeps everything)")
	f.Int("max-upload-mb", 32, "Maximum size of an uploaded PDF in MiB")
	loggingFlags(f)
	llmFlags(f)
	requestFlags(f)
	archiveFlags(f)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := appI18n.Init(cfg.Lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.New(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if n, err := db.FailInterrupted(ctx); err != nil {
		return fmt.Errorf("recover interrupted runs: %w", err)
	} else if n > 0 {
		slog.Warn("marked interrupted runs as failed", "count", n)
	}

	m := metrics.New()
	gen, b, err := newGenerator(ctx, cfg, m)
	if err != nil {
		return err
	}
	arch, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	runner := handler.NewRunner(gen, db, handler.RunnerOptions{
		Archive:  arch,
		Metrics:  m,
		FontPath: cfg.FontPath,
	})
	go runner.Purge(ctx, cfg.Server.Retention, purgeInterval)

	h := handler.New(cfg, db, runner, b, m)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(cfg.Lang))

	basePath := cfg.Server.BasePath
	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(handler.BasePathMiddleware(basePath))
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(handler.BasePathMiddleware(""))
		h.Routes(r)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", cfg.Server.Addr,
		"provider", cfg.LLM.Provider,
		"model", cfg.ModelName(),
		"lang", cfg.Lang,
		"questions", cfg.Defaults.Questions,
		"visual_percent", cfg.Defaults.VisualPercent,
		"base_path", basePath,
		"auth", cfg.Server.AuthUser != "",
		"archive", cfg.ArchiveEnabled(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		slog.Warn("generation did not stop in time", "error", err)
	}
	return nil
}
