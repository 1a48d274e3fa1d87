package generate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/diagram/bank"
	"github.com/pavelanni/examgen/internal/llm/prompts"
	"github.com/pavelanni/examgen/internal/model"
)

const (
	mcJSON    = `{"title":"t","scenario":"s","question":"Which?","choices":["a","b","c","d","e"],"correct_answer":"3","explanation":"x"}`
	shortJSON = `{"title":"t","question":"Name it","correct_answer":"Entity","alternative_answers":["엔티티"]}`
	essayJSON = "```json\n" + `{"title":"t","question":"Explain","model_answer":"Because","grading_criteria":["a","b"]}` + "\n```"
)

// fakeCompleter answers by question type. fail decides, per call number
// (starting at 1), whether that call returns garbage.
type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	fail  func(call int) bool
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, p prompts.Prompt) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.fail != nil && f.fail(call) {
		if f.err != nil {
			return "", f.err
		}
		return "sorry, I cannot help with that", nil
	}
	switch {
	case strings.Contains(p.User, "Multiple-choice format"):
		return mcJSON, nil
	case strings.Contains(p.User, "Short-answer format"):
		return shortJSON, nil
	default:
		return essayJSON, nil
	}
}

func newTestGenerator(t *testing.T, c *fakeCompleter, retries int) *Generator {
	t.Helper()
	p, err := prompts.Default()
	require.NoError(t, err)
	b, err := bank.Default()
	require.NoError(t, err)
	return New(c, p, b, diagram.NewRenderer(nil), Options{MaxRetries: retries, RetryDelay: time.Millisecond})
}

func TestGenerateAllSucceed(t *testing.T) {
	g := newTestGenerator(t, &fakeCompleter{}, 2)
	req := testRequest(6, 0)

	var events []model.Progress
	res, err := g.Generate(context.Background(), req, func(p model.Progress) { events = append(events, p) })
	require.NoError(t, err)
	assert.Len(t, res.Questions, 6)
	assert.Empty(t, res.Failures)
	assert.Empty(t, res.Visuals)
	assert.Equal(t, 6, res.Requested)
	require.Len(t, events, 6)
	assert.Equal(t, 6, events[5].Done)

	ids := map[string]bool{}
	for _, q := range res.Questions {
		assert.NotEmpty(t, q.Prompt)
		assert.NotEmpty(t, q.Answer())
		assert.Equal(t, q.Difficulty.DefaultPoints(), q.Points)
		assert.False(t, ids[q.ID], "duplicate id %s", q.ID)
		ids[q.ID] = true
		if q.Type == model.TypeMultipleChoice {
			assert.Equal(t, "3", q.CorrectAnswer)
			assert.Len(t, q.Choices, 5)
		}
	}
}

func TestGenerateDropsMalformedSlot(t *testing.T) {
	// With one retry each slot gets two attempts; calls 1 and 2 both fail, so
	// the first slot is dropped and the rest succeed.
	c := &fakeCompleter{fail: func(call int) bool { return call <= 2 }}
	g := newTestGenerator(t, c, 1)

	res, err := g.Generate(context.Background(), testRequest(5, 0), nil)
	require.NoError(t, err)
	assert.Len(t, res.Questions, 4)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 0, res.Failures[0].Slot)
	assert.Equal(t, 2, res.Failures[0].Attempts)
	assert.Equal(t, res.Requested, len(res.Questions)+len(res.Failures))
}

func TestGenerateRetryRecovers(t *testing.T) {
	c := &fakeCompleter{
		fail: func(call int) bool { return call == 1 },
		err:  errors.New("429 too many requests"),
	}
	g := newTestGenerator(t, c, 2)
	res, err := g.Generate(context.Background(), testRequest(3, 0), nil)
	require.NoError(t, err)
	assert.Len(t, res.Questions, 3)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 4, c.calls)
}

func TestGenerateEveryAttemptFails(t *testing.T) {
	c := &fakeCompleter{fail: func(int) bool { return true }}
	g := newTestGenerator(t, c, 2)
	res, err := g.Generate(context.Background(), testRequest(4, 50), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Questions)
	assert.Empty(t, res.Visuals, "visuals of dropped slots are discarded")
	assert.Len(t, res.Failures, 4)
	assert.Equal(t, 12, c.calls)
}

func TestGenerateZeroRetriesMeansSingleAttempt(t *testing.T) {
	c := &fakeCompleter{fail: func(int) bool { return true }}
	g := newTestGenerator(t, c, 0)
	res, err := g.Generate(context.Background(), testRequest(3, 0), nil)
	require.NoError(t, err)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, 3, c.calls, "one call per slot")
	for _, f := range res.Failures {
		assert.Equal(t, 1, f.Attempts)
	}
}

func TestGenerateVisualRatio(t *testing.T) {
	g := newTestGenerator(t, &fakeCompleter{}, 0)

	res, err := g.Generate(context.Background(), testRequest(5, 100), nil)
	require.NoError(t, err)
	require.Len(t, res.Questions, 5)
	assert.Len(t, res.Visuals, 5)
	for _, q := range res.Questions {
		require.True(t, q.HasVisual())
		v, ok := res.Visual(q.VisualID)
		require.True(t, ok, "visual %s missing", q.VisualID)
		assert.Equal(t, v.Kind, q.VisualKind)
		assert.NotEmpty(t, v.PNG)
	}

	res, err = g.Generate(context.Background(), testRequest(5, 0), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Visuals)
}

func TestGenerateInvalidRequest(t *testing.T) {
	g := newTestGenerator(t, &fakeCompleter{}, 0)
	req := testRequest(5, 0)
	req.Types.Essay = 50
	_, err := g.Generate(context.Background(), req, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &fakeCompleter{}
	g := newTestGenerator(t, c, 0)
	done := 0
	res, err := g.Generate(ctx, testRequest(6, 0), func(p model.Progress) {
		done = p.Done
		if done == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Questions, 2)
	assert.Len(t, res.Failures, 4)
	assert.Equal(t, 6, len(res.Questions)+len(res.Failures))
}
