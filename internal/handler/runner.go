package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/examgen/internal/archive"
	"github.com/pavelanni/examgen/internal/export"
	"github.com/pavelanni/examgen/internal/fonts"
	"github.com/pavelanni/examgen/internal/generate"
	"github.com/pavelanni/examgen/internal/metrics"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/store"
)

// ErrBusy is returned by Runner.Start while another run is generating.
var ErrBusy = errors.New("a generation run is already in progress")

// Generator is the question pipeline the runner drives.
type Generator interface {
	Generate(ctx context.Context, req model.GenerationRequest, progress generate.ProgressFunc) (model.Result, error)
}

// Runner executes one generation run at a time in the background.
type Runner struct {
	gen     Generator
	store   *store.Store
	hub     *Hub
	archive *archive.Client
	metrics *metrics.Metrics
	font    string

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RunnerOptions holds the optional collaborators of a Runner.
type RunnerOptions struct {
	Archive  *archive.Client
	Metrics  *metrics.Metrics
	FontPath string
}

func NewRunner(gen Generator, s *store.Store, opts RunnerOptions) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		gen:     gen,
		store:   s,
		hub:     NewHub(),
		archive: opts.Archive,
		metrics: opts.Metrics,
		font:    opts.FontPath,
		sem:     make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Hub returns the progress hub of the runner.
func (rn *Runner) Hub() *Hub {
	return rn.hub
}

// Start creates a run for req and generates it in the background. It returns
// ErrBusy without creating a run when another generation is active.
func (rn *Runner) Start(ctx context.Context, req model.GenerationRequest) (model.Run, error) {
	if err := req.Validate(); err != nil {
		return model.Run{}, err
	}
	select {
	case rn.sem <- struct{}{}:
	default:
		return model.Run{}, ErrBusy
	}
	run, err := rn.store.CreateRun(ctx, req)
	if err != nil {
		<-rn.sem
		return model.Run{}, fmt.Errorf("create run: %w", err)
	}
	rn.hub.Publish(model.Progress{RunID: run.ID, Total: req.Total, Status: model.RunPending})

	rn.wg.Add(1)
	go func() {
		defer rn.wg.Done()
		defer func() { <-rn.sem }()
		rn.execute(run.ID, req)
	}()
	return run, nil
}

func (rn *Runner) execute(runID string, req model.GenerationRequest) {
	ctx := rn.ctx
	log := slog.With("run_id", runID)
	start := time.Now()
	log.Info("generation started", "total", req.Total, "visual_percent", req.VisualPercent)

	if err := rn.store.SetRunStatus(ctx, runID, model.RunRunning, ""); err != nil {
		log.Error("failed to mark run running", "error", err)
	}
	res, err := rn.gen.Generate(ctx, req, func(p model.Progress) {
		p.RunID = runID
		rn.hub.Publish(p)
	})

	final := model.Progress{
		RunID:    runID,
		Done:     len(res.Questions) + len(res.Failures),
		Total:    req.Total,
		Visuals:  len(res.Visuals),
		Dropped:  len(res.Failures),
		Finished: true,
		Status:   model.RunCompleted,
	}
	// The store writes use a fresh context so a cancelled run is still recorded.
	saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err != nil && len(res.Questions) == 0 {
		final.Status = model.RunFailed
		final.LastError = err.Error()
		if serr := rn.store.SetRunStatus(saveCtx, runID, model.RunFailed, err.Error()); serr != nil {
			log.Error("failed to mark run failed", "error", serr)
		}
		log.Warn("generation failed", "error", err, "elapsed", time.Since(start))
	} else {
		if err != nil {
			final.LastError = err.Error()
			log.Warn("generation interrupted, keeping partial result", "error", err, "questions", len(res.Questions))
		}
		if serr := rn.store.SaveResult(saveCtx, runID, res); serr != nil {
			final.Status = model.RunFailed
			final.LastError = serr.Error()
			log.Error("failed to save result", "error", serr)
			_ = rn.store.SetRunStatus(saveCtx, runID, model.RunFailed, serr.Error())
		} else {
			log.Info("generation finished",
				"questions", len(res.Questions), "dropped", len(res.Failures),
				"visuals", len(res.Visuals), "elapsed", time.Since(start))
			rn.archiveBundle(saveCtx, runID, res)
		}
	}
	rn.metrics.RunFinished(string(final.Status))
	rn.hub.Publish(final)
}

// archiveBundle uploads the ZIP of a finished run when archiving is configured.
func (rn *Runner) archiveBundle(ctx context.Context, runID string, res model.Result) {
	if rn.archive == nil {
		return
	}
	font, fontErr := fonts.Resolve(rn.font)
	at := time.Now()
	b, err := export.Build(ctx, res, export.Options{Font: font, FontErr: fontErr, Metrics: rn.metrics, At: at})
	if err != nil {
		slog.Warn("bundle not archived", "run_id", runID, "error", err)
		return
	}
	name := export.FileName(export.FormatZIP, at)
	if _, err := rn.archive.Upload(ctx, runID, name, export.FormatZIP.ContentType(), b.ZIP); err != nil {
		slog.Warn("bundle upload failed", "run_id", runID, "error", err)
	}
}

// Busy reports whether a run is generating.
func (rn *Runner) Busy() bool {
	return len(rn.sem) > 0
}

// Shutdown cancels the active run and waits for it to record its result.
func (rn *Runner) Shutdown(ctx context.Context) error {
	rn.cancel()
	done := make(chan struct{})
	go func() {
		rn.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Purge deletes runs older than retention every interval until ctx is done.
func (rn *Runner) Purge(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := rn.store.PurgeOlderThan(ctx, time.Now().Add(-retention)); err != nil {
			slog.Warn("purge failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
