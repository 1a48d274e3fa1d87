package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRequest() model.GenerationRequest {
	return model.GenerationRequest{
		Total:         3,
		Types:         model.TypeRatio{MultipleChoice: 50, ShortAnswer: 30, Essay: 20},
		Difficulty:    model.DifficultyRatio{Low: 30, Medium: 50, High: 20},
		VisualPercent: 40,
		SourceText:    "long course material",
		SourceName:    "course.pdf",
		SubjectAreas:  []string{"데이터 모델링 > 논리 모델링"},
		Language:      "ko",
		Seed:          7,
	}
}

func testResult() model.Result {
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	return model.Result{
		Requested: 3,
		Questions: []model.Question{
			{ID: "q1", Type: model.TypeMultipleChoice, Difficulty: model.DifficultyLow, Title: "one",
				Prompt: "first?", Choices: []string{"a", "b"}, CorrectAnswer: "1", Points: 3,
				VisualID: "v1", VisualKind: diagram.KindTable, GeneratedAt: at},
			{ID: "q2", Type: model.TypeEssay, Difficulty: model.DifficultyHigh, Title: "two",
				Prompt: "second?", ModelAnswer: "because", Points: 5, GeneratedAt: at},
		},
		Visuals: []diagram.Artifact{{
			ID:   "v1",
			Kind: diagram.KindTable,
			Spec: diagram.Spec{Kind: diagram.KindTable, Columns: []string{"a"}, Rows: [][]string{{"1"}}},
			PNG:  []byte{0x89, 'P', 'N', 'G'},
		}},
		Failures: []model.SlotFailure{{Slot: 2, Type: model.TypeShortAnswer, Difficulty: model.DifficultyMedium, Attempts: 3, Error: "boom"}},
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testRequest())
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == "" || run.Status != model.RunPending {
		t.Fatalf("unexpected run %+v", run)
	}

	if err := s.SetRunStatus(ctx, run.ID, model.RunRunning, ""); err != nil {
		t.Fatalf("SetRunStatus: %v", err)
	}
	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.RunRunning {
		t.Errorf("status = %q, want running", got.Status)
	}
	if got.Request.SourceText != "" {
		t.Error("source text should not be persisted")
	}
	if got.Request.SourceName != "course.pdf" || got.Request.Seed != 7 {
		t.Errorf("request not round-tripped: %+v", got.Request)
	}

	if err := s.SaveResult(ctx, run.ID, testResult()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	got, err = s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.RunCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if len(got.Result.Questions) != 2 || got.Result.Questions[0].ID != "q1" || got.Result.Questions[1].ID != "q2" {
		t.Errorf("questions = %+v", got.Result.Questions)
	}
	if got.Result.Questions[0].Choices[1] != "b" {
		t.Errorf("choices not round-tripped: %v", got.Result.Questions[0].Choices)
	}
	if len(got.Result.Visuals) != 1 || string(got.Result.Visuals[0].PNG) != "\x89PNG" {
		t.Errorf("visuals = %+v", got.Result.Visuals)
	}
	if got.Result.Visuals[0].Spec.Columns[0] != "a" {
		t.Errorf("visual spec not round-tripped: %+v", got.Result.Visuals[0].Spec)
	}
	if len(got.Result.Failures) != 1 || got.Result.Failures[0].Error != "boom" {
		t.Errorf("failures = %+v", got.Result.Failures)
	}
	if got.Result.Requested != 3 {
		t.Errorf("requested = %d, want 3", got.Result.Requested)
	}

	// Saving again replaces rather than duplicates.
	res := testResult()
	res.Questions = res.Questions[:1]
	if err := s.SaveResult(ctx, run.ID, res); err != nil {
		t.Fatalf("SaveResult again: %v", err)
	}
	got, _ = s.GetRun(ctx, run.ID)
	if len(got.Result.Questions) != 1 {
		t.Errorf("expected 1 question after resave, got %d", len(got.Result.Questions))
	}
}

func TestNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun: expected ErrNotFound, got %v", err)
	}
	if err := s.SetRunStatus(ctx, "missing", model.RunFailed, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRunStatus: expected ErrNotFound, got %v", err)
	}
	if err := s.SaveResult(ctx, "missing", testResult()); !errors.Is(err, ErrNotFound) {
		t.Errorf("SaveResult: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetVisual(ctx, "missing", "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVisual: expected ErrNotFound, got %v", err)
	}
}

func TestGetVisual(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run, _ := s.CreateRun(ctx, testRequest())
	if err := s.SaveResult(ctx, run.ID, testResult()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	a, err := s.GetVisual(ctx, run.ID, "v1")
	if err != nil {
		t.Fatalf("GetVisual: %v", err)
	}
	if a.Kind != diagram.KindTable {
		t.Errorf("kind = %q, want table", a.Kind)
	}
	if _, err := s.GetVisual(ctx, run.ID, "v2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown visual, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := range 3 {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		run, err := s.CreateRun(ctx, testRequest())
		if err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		ids = append(ids, run.ID)
	}
	if err := s.SaveResult(ctx, ids[0], testResult()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	list, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(list))
	}
	if list[0].ID != ids[2] || list[1].ID != ids[1] {
		t.Errorf("runs not newest first: %v", list)
	}

	list, _ = s.ListRuns(ctx, 10)
	last := list[len(list)-1]
	if last.ID != ids[0] || last.Questions != 2 || last.Dropped != 1 || last.Status != model.RunCompleted {
		t.Errorf("unexpected summary %+v", last)
	}
}

func TestFailInterrupted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pending, _ := s.CreateRun(ctx, testRequest())
	done, _ := s.CreateRun(ctx, testRequest())
	if err := s.SaveResult(ctx, done.ID, testResult()); err != nil {
		t.Fatal(err)
	}

	n, err := s.FailInterrupted(ctx)
	if err != nil {
		t.Fatalf("FailInterrupted: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 interrupted run, got %d", n)
	}
	got, _ := s.GetRun(ctx, pending.ID)
	if got.Status != model.RunFailed || got.Error != "interrupted" {
		t.Errorf("unexpected run %+v", got)
	}
	got, _ = s.GetRun(ctx, done.ID)
	if got.Status != model.RunCompleted {
		t.Errorf("completed run changed to %q", got.Status)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	old, _ := s.CreateRun(ctx, testRequest())
	if err := s.SaveResult(ctx, old.ID, testResult()); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	fresh, _ := s.CreateRun(ctx, testRequest())

	n, err := s.PurgeOlderThan(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged run, got %d", n)
	}
	if _, err := s.GetRun(ctx, old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old run still present: %v", err)
	}
	if _, err := s.GetVisual(ctx, old.ID, "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old visual still present: %v", err)
	}
	if _, err := s.GetRun(ctx, fresh.ID); err != nil {
		t.Errorf("fresh run purged: %v", err)
	}
}
