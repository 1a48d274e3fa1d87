package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examgen/internal/archive"
	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/diagram/bank"
	"github.com/pavelanni/examgen/internal/export"
	"github.com/pavelanni/examgen/internal/fonts"
	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/pdftext"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate questions from a PDF without the web UI",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.String("pdf", "", "Lecture PDF to generate from (required)")
	f.StringP("output", "o", "", "Output file (default: timestamped name in the current directory)")
	f.StringP("format", "f", string(export.FormatZIP), "Output format (zip, pdf, json, xlsx, stats)")
	f.Int64("seed", 0, "Planning seed (0 picks one)")
	f.StringP("lang", "l", "", "Language of export labels (default: the question language)")
	loggingFlags(f)
	llmFlags(f)
	requestFlags(f)
	archiveFlags(f)
	_ = cmd.MarkFlagRequired("pdf")
	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	format, err := export.ParseFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pdfPath := mustString(cmd, "pdf")
	doc, err := readPDF(pdfPath)
	if err != nil {
		return err
	}

	req := cfg.DefaultRequest()
	req.SourceText = doc.Text()
	req.SourceName = filepath.Base(pdfPath)
	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		req.Seed = seed
	}
	if err := req.Validate(); err != nil {
		return err
	}

	gen, _, err := newGenerator(ctx, cfg, nil)
	if err != nil {
		return err
	}

	slog.Info("generating", "source", req.SourceName, "pages", len(doc.Pages),
		"total", req.Total, "visual_percent", req.VisualPercent, "seed", req.Seed)
	start := time.Now()
	res, genErr := gen.Generate(ctx, req, func(p model.Progress) {
		slog.Info("progress", "done", p.Done, "total", p.Total, "dropped", p.Dropped,
			"type", p.Type, "difficulty", p.Level)
	})
	if genErr != nil {
		if len(res.Questions) == 0 {
			return fmt.Errorf("generate: %w", genErr)
		}
		slog.Warn("generation interrupted, writing partial result", "error", genErr)
	}
	for _, f := range res.Failures {
		slog.Warn("slot dropped", "slot", f.Slot, "type", f.Type, "difficulty", f.Difficulty,
			"attempts", f.Attempts, "error", f.Error)
	}
	slog.Info("generation finished", "questions", len(res.Questions), "dropped", len(res.Failures),
		"visuals", len(res.Visuals), "elapsed", time.Since(start).Round(time.Second))

	exportCtx, err := exportContext(cmd, req.Language)
	if err != nil {
		return err
	}
	font, fontErr := fonts.Resolve(cfg.FontPath)
	at := time.Now()
	opts := export.Options{Font: font, FontErr: fontErr, At: at}

	var data []byte
	if format == export.FormatZIP {
		b, err := export.Build(exportCtx, res, opts)
		if err != nil {
			return err
		}
		for _, w := range b.Warnings {
			slog.Warn("bundle warning", "warning", w)
		}
		data = b.ZIP
	} else {
		if fontErr != nil {
			slog.Warn("no CJK font found, using fallback", "error", fontErr)
		}
		if data, err = export.Render(exportCtx, format, res, opts); err != nil {
			return fmt.Errorf("export %s: %w", format, err)
		}
	}

	out := mustString(cmd, "output")
	if out == "" {
		out = export.FileName(format, at)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	slog.Info("wrote output", "path", out, "bytes", len(data))

	arch, err := archive.New(exportCtx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if arch != nil {
		loc, err := arch.Upload(exportCtx, uuid.NewString(), filepath.Base(out), format.ContentType(), data)
		if err != nil {
			return err
		}
		slog.Info("archived output", "location", loc)
	}
	return nil
}

// exportContext returns the context exports run under. It is detached from the
// signal context so an interrupted run is still written, and carries the label
// language: --lang when given, otherwise the question language.
func exportContext(cmd *cobra.Command, questionLang string) (context.Context, error) {
	lang := questionLang
	if cmd.Flags().Changed("lang") {
		lang, _ = cmd.Flags().GetString("lang")
	}
	if err := i18n.Init(lang); err != nil {
		return nil, err
	}
	return i18n.WithLanguage(context.Background(), lang), nil
}

func readPDF(path string) (pdftext.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return pdftext.Document{}, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return pdftext.Document{}, err
	}
	doc, err := pdftext.Extract(f, st.Size())
	if err != nil {
		return pdftext.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a diagram from the template bank to PNG",
		RunE:  runRender,
	}
	f := cmd.Flags()
	f.String("template", "", "Template name")
	f.String("kind", "", "Render the first template of this kind (erd, uml, flowchart, ui_mockup, table)")
	f.Bool("list", false, "List the templates and exit")
	f.StringP("output", "o", "", "Output PNG (default: <template>.png)")
	f.String("font", "", "TTF/TTC font with Hangul glyphs (default: search system fonts)")
	f.String("templates", "", "YAML diagram template bank (default: built-in)")
	loggingFlags(f)
	return cmd
}

func runRender(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	b, err := bank.Load(cfg.Templates)
	if err != nil {
		return fmt.Errorf("load template bank: %w", err)
	}

	if list, _ := cmd.Flags().GetBool("list"); list {
		w := cmd.OutOrStdout()
		for _, t := range b.Templates() {
			fmt.Fprintf(w, "%-24s %-10s %s\n", t.Name, t.Diagram.Kind, t.Domain)
		}
		return nil
	}

	var t bank.Template
	switch name, kind := mustString(cmd, "template"), mustString(cmd, "kind"); {
	case name != "":
		var ok bool
		if t, ok = b.Get(name); !ok {
			return fmt.Errorf("unknown template %q", name)
		}
	case kind != "":
		k, err := diagram.ParseKind(kind)
		if err != nil {
			return err
		}
		t = b.Pick(k, 0)
	default:
		return errors.New("one of --template, --kind or --list is required")
	}

	font, err := fonts.Resolve(cfg.FontPath)
	if err != nil {
		slog.Warn("no CJK font found, using fallback", "error", err)
	}
	png, err := diagram.NewRenderer(font).Render(t.Diagram)
	if err != nil {
		return fmt.Errorf("render %s: %w", t.Name, err)
	}
	out := mustString(cmd, "output")
	if out == "" {
		out = t.Name + ".png"
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	slog.Info("rendered diagram", "template", t.Name, "kind", t.Diagram.Kind, "path", out)
	return nil
}

// hashPasswordCmd prints the bcrypt hash for --auth-password-hash.
func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}
