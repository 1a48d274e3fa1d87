package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examgen/internal/config"
	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/diagram/bank"
	"github.com/pavelanni/examgen/internal/export"
	"github.com/pavelanni/examgen/internal/fonts"
	"github.com/pavelanni/examgen/internal/handler/views"
	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/metrics"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/pdftext"
	"github.com/pavelanni/examgen/internal/store"
)

const recentRunsLimit = 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	cfg     config.Config
	store   *store.Store
	runner  *Runner
	bank    *bank.Bank
	metrics *metrics.Metrics
}

// New creates a new Handler.
func New(cfg config.Config, s *store.Store, rn *Runner, b *bank.Bank, m *metrics.Metrics) *Handler {
	return &Handler{cfg: cfg, store: s, runner: rn, bank: b, metrics: m}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(h.basicAuth)
		// The websocket upgrade writes its own response headers.
		r.Get("/runs/{runID}/progress", h.handleProgress)

		r.Group(func(r chi.Router) {
			r.Use(h.limitBody)
			r.Use(h.csrfMiddleware)
			r.Get("/", h.handleIndex)
			r.Post("/runs", h.handleCreateRun)
			r.Get("/runs/{runID}", h.handleRun)
			r.Get("/runs/{runID}/visuals/{visualID}.png", h.handleVisual)
			r.Get("/runs/{runID}/download/{format}", h.handleDownload)
			r.Get("/demo", h.handleDemo)
			r.Post("/demo", h.handleDemo)
		})
	})
}

// BasePathMiddleware stores the URL prefix the app is mounted under so views
// can build absolute links.
func BasePathMiddleware(basePath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := model.ContextWithBasePath(r.Context(), basePath)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) path(p string) string {
	return h.cfg.Server.BasePath + p
}

func (h *Handler) limitBody(next http.Handler) http.Handler {
	limit := int64(h.cfg.Server.MaxUploadMB) << 20
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render(w, r, status, views.ErrorPage(msg))
}

// storeError maps store errors to a response.
func storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		renderError(w, r, http.StatusNotFound, err.Error())
		return
	}
	slog.Error("store error", "error", err, "path", r.URL.Path)
	renderError(w, r, http.StatusInternalServerError, "internal error")
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (h *Handler) indexData(r *http.Request, errMsg string) (views.IndexData, error) {
	runs, err := h.store.ListRuns(r.Context(), recentRunsLimit)
	if err != nil {
		return views.IndexData{}, err
	}
	return views.IndexData{
		Provider:   h.cfg.LLM.Provider,
		Model:      h.cfg.ModelName(),
		Configured: h.cfg.Validate() == nil,
		Defaults:   h.cfg.Defaults,
		Runs:       runs,
		Busy:       h.runner.Busy(),
		Error:      errMsg,
	}, nil
}

func (h *Handler) renderIndex(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	data, err := h.indexData(r, errMsg)
	if err != nil {
		storeError(w, r, err)
		return
	}
	render(w, r, status, views.IndexPage(data))
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, "")
}

func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	req, err := h.requestFromForm(r)
	if err != nil {
		h.renderIndex(w, r, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.runner.Start(r.Context(), req)
	switch {
	case errors.Is(err, ErrBusy):
		h.renderIndex(w, r, http.StatusConflict, i18n.T(r.Context(), "RunBusy"))
		return
	case errors.Is(err, model.ErrInvalidRequest):
		h.renderIndex(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("failed to start run", "error", err)
		h.renderIndex(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("run started", "run_id", run.ID, "source", req.SourceName, "total", req.Total)
	http.Redirect(w, r, h.path("/runs/"+run.ID), http.StatusSeeOther)
}

// requestFromForm builds a generation request from the multipart upload form.
// Missing numeric fields fall back to the configured defaults.
func (h *Handler) requestFromForm(r *http.Request) (model.GenerationRequest, error) {
	req := h.cfg.DefaultRequest()
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return req, fmt.Errorf("parse form: %w", err)
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"total", &req.Total},
		{"ratio_mc", &req.Types.MultipleChoice},
		{"ratio_short", &req.Types.ShortAnswer},
		{"ratio_essay", &req.Types.Essay},
		{"ratio_low", &req.Difficulty.Low},
		{"ratio_medium", &req.Difficulty.Medium},
		{"ratio_high", &req.Difficulty.High},
		{"visual", &req.VisualPercent},
	}
	for _, f := range ints {
		v := strings.TrimSpace(r.FormValue(f.name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%s: %q is not a number", f.name, v)
		}
		*f.dst = n
	}
	if v := strings.TrimSpace(r.FormValue("seed")); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("seed: %q is not a number", v)
		}
		req.Seed = seed
	}
	// Unchecked boxes are not submitted, so no subject means none selected.
	req.SubjectAreas = nil
	for _, s := range r.Form["subject"] {
		if s = strings.TrimSpace(s); s != "" {
			req.SubjectAreas = append(req.SubjectAreas, s)
		}
	}
	if lang := r.FormValue("language"); lang != "" {
		req.Language = lang
	}

	text, name, err := sourceFromForm(r)
	if err != nil {
		return req, err
	}
	req.SourceText = text
	req.SourceName = name
	return req, nil
}

// sourceFromForm extracts the text of the uploaded PDF.
func sourceFromForm(r *http.Request) (text, name string, err error) {
	file, header, err := r.FormFile("source")
	if err != nil {
		return "", "", fmt.Errorf("source PDF is required: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", "", fmt.Errorf("read upload: %w", err)
	}
	doc, err := pdftext.ExtractBytes(data)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", header.Filename, err)
	}
	text = doc.Text()
	slog.Debug("source extracted", "file", header.Filename, "pages", len(doc.Pages), "chars", len(text))
	return text, header.Filename, nil
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		storeError(w, r, err)
		return
	}
	progress, ok := h.runner.Hub().Last(run.ID)
	switch {
	case ok:
	case run.Status == model.RunCompleted || run.Status == model.RunFailed:
		progress = finalProgress(run)
	default:
		progress = model.Progress{RunID: run.ID, Total: run.Request.Total, Status: run.Status}
	}
	render(w, r, http.StatusOK, views.RunPage(views.RunData{
		Run:      run,
		Stats:    export.ComputeStatistics(run.Result, run.CreatedAt),
		Progress: progress,
	}))
}

func (h *Handler) handleVisual(w http.ResponseWriter, r *http.Request) {
	visual, err := h.store.GetVisual(r.Context(), chi.URLParam(r, "runID"), chi.URLParam(r, "visualID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("failed to load visual", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	_, _ = w.Write(visual.PNG)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		renderError(w, r, http.StatusNotFound, err.Error())
		return
	}
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		storeError(w, r, err)
		return
	}
	switch run.Status {
	case model.RunCompleted:
	case model.RunFailed:
		renderError(w, r, http.StatusNotFound, i18n.T(r.Context(), "RunFailedNoDownload"))
		return
	default:
		renderError(w, r, http.StatusConflict, i18n.T(r.Context(), "RunNotReady"))
		return
	}

	font, fontErr := fonts.Resolve(h.cfg.FontPath)
	if fontErr != nil {
		slog.Warn("no CJK font found, using fallback", "error", fontErr)
	}
	at := time.Now()
	data, err := export.Render(r.Context(), format, run.Result, export.Options{
		Font:    font,
		FontErr: fontErr,
		Metrics: h.metrics,
		At:      at,
	})
	if err != nil {
		slog.Error("export failed", "run_id", run.ID, "format", format, "error", err)
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(format, at)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// handleDemo renders a bank template without calling the LLM.
func (h *Handler) handleDemo(w http.ResponseWriter, r *http.Request) {
	templates := h.bank.Templates()
	data := views.DemoData{Templates: templates}
	if len(templates) == 0 {
		render(w, r, http.StatusOK, views.DemoPage(data))
		return
	}

	name := r.FormValue("template")
	t, ok := h.bank.Get(name)
	if !ok {
		if name != "" {
			data.Error = fmt.Sprintf("unknown template %q", name)
		}
		t = templates[0]
	}
	data.Selected = t.Name

	font, fontErr := fonts.Resolve(h.cfg.FontPath)
	if fontErr != nil {
		slog.Warn("no CJK font found, using fallback", "error", fontErr)
	}
	png, err := diagram.NewRenderer(font).Render(t.Diagram)
	if err != nil {
		data.Error = err.Error()
		render(w, r, http.StatusOK, views.DemoPage(data))
		return
	}
	h.metrics.DiagramRendered(string(t.Diagram.Kind))
	q := t.Question(model.DifficultyMedium)
	q.SubjectArea = t.Domain
	data.PNG = png
	data.Question = &q
	render(w, r, http.StatusOK, views.DemoPage(data))
}
