// Package generate turns a generation request into exam questions: it plans the
// slots, renders diagrams for visual slots and asks the LLM for one question per slot.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/diagram/bank"
	"github.com/pavelanni/examgen/internal/llm"
	"github.com/pavelanni/examgen/internal/llm/prompts"
	"github.com/pavelanni/examgen/internal/metrics"
	"github.com/pavelanni/examgen/internal/model"
)

// Defaults for Options.
const (
	DefaultMaxRetries = 2
	DefaultRetryDelay = 2 * time.Second
)

// Options tunes the retry policy.
type Options struct {
	// MaxRetries is the number of retries after the first attempt. Zero or negative means none.
	MaxRetries int
	RetryDelay time.Duration
	Metrics    *metrics.Metrics
}

// ProgressFunc receives a snapshot after each completed or dropped slot.
type ProgressFunc func(model.Progress)

// Generator produces questions. It is safe for sequential reuse across runs.
type Generator struct {
	llm      llm.Completer
	prompts  *prompts.Set
	bank     *bank.Bank
	renderer *diagram.Renderer
	opts     Options

	now   func() time.Time
	newID func() string
}

// New creates a Generator.
func New(c llm.Completer, p *prompts.Set, b *bank.Bank, r *diagram.Renderer, opts Options) *Generator {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Generator{
		llm:      c,
		prompts:  p,
		bank:     b,
		renderer: r,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Generate runs the whole request. Slots are processed one at a time. A slot that
// still fails after all retries is dropped and recorded in Result.Failures, so
// len(Questions)+len(Failures) always equals the requested total. The returned
// error is non-nil only for an invalid request or a cancelled context; in the
// latter case the partial result is returned with the unprocessed slots marked
// as failures.
func (g *Generator) Generate(ctx context.Context, req model.GenerationRequest, progress ProgressFunc) (model.Result, error) {
	if err := req.Validate(); err != nil {
		return model.Result{}, err
	}
	slots := Plan(req)
	res := model.Result{Requested: req.Total}
	picks := make(map[diagram.Kind]int)
	lang := prompts.LanguageName(req.Language)

	report := func(slot Slot, lastErr string) {
		if progress == nil {
			return
		}
		progress(model.Progress{
			Done:      len(res.Questions) + len(res.Failures),
			Total:     req.Total,
			Visuals:   len(res.Visuals),
			Dropped:   len(res.Failures),
			Type:      slot.Type,
			Level:     slot.Difficulty,
			Status:    model.RunRunning,
			LastError: lastErr,
		})
	}

	for i, slot := range slots {
		if err := ctx.Err(); err != nil {
			for _, rest := range slots[i:] {
				res.Failures = append(res.Failures, failure(rest, 0, err))
			}
			return res, err
		}

		var art *diagram.Artifact
		data := prompts.QuestionData{
			Type:        slot.Type,
			Difficulty:  slot.Difficulty,
			SubjectArea: slot.SubjectArea,
			Language:    lang,
			Source:      req.SourceText,
		}
		if slot.Visual {
			tmpl := g.bank.Pick(slot.VisualKind, picks[slot.VisualKind])
			picks[slot.VisualKind]++
			a, err := g.render(tmpl.Diagram)
			if err != nil {
				slog.Warn("dropping slot, diagram render failed", "slot", slot.Index, "template", tmpl.Name, "error", err)
				res.Failures = append(res.Failures, failure(slot, 0, err))
				g.opts.Metrics.SlotDropped()
				report(slot, err.Error())
				continue
			}
			art = &a
			data.Diagram = diagram.Describe(tmpl.Diagram)
			data.DiagramKind = string(a.Kind)
		}

		q, attempts, err := g.question(ctx, slot, data)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				for _, rest := range slots[i:] {
					res.Failures = append(res.Failures, failure(rest, attempts, ctx.Err()))
				}
				return res, ctx.Err()
			}
			slog.Warn("dropping slot after retries",
				"slot", slot.Index, "type", slot.Type, "difficulty", slot.Difficulty,
				"attempts", attempts, "error", err)
			res.Failures = append(res.Failures, failure(slot, attempts, err))
			g.opts.Metrics.SlotDropped()
			report(slot, err.Error())
			continue
		}
		if art != nil {
			q.VisualID = art.ID
			q.VisualKind = art.Kind
			res.Visuals = append(res.Visuals, *art)
		}
		res.Questions = append(res.Questions, q)
		g.opts.Metrics.QuestionGenerated(string(q.Type))
		report(slot, "")
	}
	return res, nil
}

func failure(slot Slot, attempts int, err error) model.SlotFailure {
	return model.SlotFailure{
		Slot:       slot.Index,
		Type:       slot.Type,
		Difficulty: slot.Difficulty,
		Visual:     slot.Visual,
		Attempts:   attempts,
		Error:      err.Error(),
	}
}

func (g *Generator) render(spec diagram.Spec) (diagram.Artifact, error) {
	png, err := g.renderer.Render(spec)
	if err != nil {
		return diagram.Artifact{}, fmt.Errorf("render %s: %w", spec.Kind, err)
	}
	g.opts.Metrics.DiagramRendered(string(spec.Kind))
	return diagram.Artifact{ID: g.newID(), Kind: spec.Kind, Spec: spec, PNG: png}, nil
}

// question makes up to MaxRetries+1 attempts for one slot and returns the
// number of attempts used.
func (g *Generator) question(ctx context.Context, slot Slot, data prompts.QuestionData) (model.Question, int, error) {
	p, err := g.prompts.Build(data)
	if err != nil {
		return model.Question{}, 0, fmt.Errorf("build prompt: %w", err)
	}

	var q model.Question
	attempts := 0
	backoff := retry.WithMaxRetries(uint64(g.opts.MaxRetries), retry.NewConstant(g.opts.RetryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		start := time.Now()
		raw, err := g.llm.Complete(ctx, p)
		g.opts.Metrics.LLMCall(time.Since(start), err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("LLM call failed", "slot", slot.Index, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		parsed, err := parseQuestion(raw, slot)
		if err != nil {
			slog.Debug("LLM response rejected", "slot", slot.Index, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		q = parsed
		return nil
	})
	if err != nil {
		return model.Question{}, attempts, err
	}
	q.ID = g.newID()
	q.GeneratedAt = g.now()
	return q, attempts, nil
}
