package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examgen/internal/config"
	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/diagram/bank"
	"github.com/pavelanni/examgen/internal/export"
	"github.com/pavelanni/examgen/internal/generate"
	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/store"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeGenerator reports one progress step, then waits for release (if set) or
// cancellation before returning res.
type fakeGenerator struct {
	release chan struct{}
	res     model.Result
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, req model.GenerationRequest, progress generate.ProgressFunc) (model.Result, error) {
	progress(model.Progress{Done: 1, Total: req.Total, Status: model.RunRunning})
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return f.res, ctx.Err()
		}
	}
	return f.res, f.err
}

type testEnv struct {
	cfg    config.Config
	store  *store.Store
	runner *Runner
	router http.Handler
}

func newTestEnv(t *testing.T, gen Generator, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.FromViper(viper.New(), config.Legacy{})
	cfg.LLM.Endpoint = "https://example.openai.azure.com"
	cfg.LLM.APIKey = "key"
	cfg.LLM.Deployment = "gpt-4o"
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b, err := bank.Default()
	require.NoError(t, err)

	rn := NewRunner(gen, s, RunnerOptions{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rn.Shutdown(ctx)
	})

	h := New(cfg, s, rn, b, nil)
	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	r.Use(BasePathMiddleware(cfg.Server.BasePath))
	h.Routes(r)
	return &testEnv{cfg: cfg, store: s, runner: rn, router: r}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func testRequest() model.GenerationRequest {
	return model.GenerationRequest{
		Total:         2,
		Types:         model.TypeRatio{MultipleChoice: 100},
		Difficulty:    model.DifficultyRatio{Medium: 100},
		VisualPercent: 50,
		SourceText:    "Entities and relationships.",
		SourceName:    "notes.pdf",
		SubjectAreas:  []string{"데이터 모델링"},
		Language:      "en",
		Seed:          1,
	}
}

func testResult(t *testing.T) model.Result {
	t.Helper()
	b, err := bank.Default()
	require.NoError(t, err)
	tpl := b.Templates()[0]
	png, err := diagram.NewRenderer(nil).Render(tpl.Diagram)
	require.NoError(t, err)

	q := tpl.Question(model.DifficultyMedium)
	q.ID = "q-1"
	q.SubjectArea = "데이터 모델링"
	q.VisualID = "v-1"
	return model.Result{
		Requested: 2,
		Questions: []model.Question{q},
		Visuals:   []diagram.Artifact{{ID: "v-1", Kind: tpl.Diagram.Kind, Spec: tpl.Diagram, PNG: png}},
		Failures: []model.SlotFailure{{
			Slot: 1, Type: model.TypeMultipleChoice, Difficulty: model.DifficultyMedium, Attempts: 3, Error: "malformed JSON",
		}},
	}
}

// savedRun stores a completed run directly, bypassing the runner.
func savedRun(t *testing.T, e *testEnv) model.Run {
	t.Helper()
	ctx := context.Background()
	run, err := e.store.CreateRun(ctx, testRequest())
	require.NoError(t, err)
	require.NoError(t, e.store.SaveResult(ctx, run.ID, testResult(t)))
	run, err = e.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	return run
}

// waitFinished waits until the run is final in the store and the hub has let go
// of it, then returns the progress a late client would see.
func waitFinished(t *testing.T, rn *Runner, runID string) model.Progress {
	t.Helper()
	var run model.Run
	require.Eventually(t, func() bool {
		if _, active := rn.Hub().Last(runID); active {
			return false
		}
		got, err := rn.store.GetRun(context.Background(), runID)
		if err != nil {
			return false
		}
		run = got
		return got.Status == model.RunCompleted || got.Status == model.RunFailed
	}, 5*time.Second, 10*time.Millisecond)
	return finalProgress(run)
}

func hubTopics(h *Hub) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics)
}

// csrfForm returns a multipart POST carrying a matching CSRF cookie and field.
func csrfForm(t *testing.T, target string, fields map[string][]string, file []byte) *http.Request {
	t.Helper()
	const token = "test-token"
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("csrf_token", token))
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(name, v))
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("source", "notes.pdf")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
	return req
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestIndex(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	run := savedRun(t, e)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="csrf_token"`)
	assert.Contains(t, body, `name="ratio_mc"`)
	assert.Contains(t, body, "/runs/"+run.ID)
	assert.Contains(t, body, "gpt-4o")

	var csrf *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName {
			csrf = c
		}
	}
	require.NotNil(t, csrf)
	assert.NotEmpty(t, csrf.Value)
}

func TestIndexBasePath(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, func(c *config.Config) { c.Server.BasePath = "/exam" })
	rec := e.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/exam/runs"`)
}

func TestCreateRunRejectsMissingCSRF(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("total=5"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := e.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateRunRejectsCSRFMismatch(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	req := csrfForm(t, "/runs", nil, nil)
	req.Header.Del("Cookie")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "other-token"})
	rec := e.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateRunFormErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string][]string
		file   []byte
		want   string
	}{
		{
			name:   "missing source",
			fields: map[string][]string{"total": {"5"}, "subject": {"데이터 모델링"}},
			want:   "source PDF is required",
		},
		{
			name:   "bad number",
			fields: map[string][]string{"total": {"many"}},
			file:   []byte("%PDF-1.4"),
			want:   "is not a number",
		},
		{
			name:   "not a pdf",
			fields: map[string][]string{"total": {"5"}, "subject": {"데이터 모델링"}},
			file:   []byte("plain text, not a PDF"),
			want:   "notes.pdf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, &fakeGenerator{}, nil)
			rec := e.do(csrfForm(t, "/runs", tt.fields, tt.file))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.False(t, e.runner.Busy())
		})
	}
}

func TestRunnerCompletes(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{res: testResult(t)}, nil)
	run, err := e.runner.Start(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, model.RunPending, run.Status)

	final := waitFinished(t, e.runner, run.ID)
	assert.Equal(t, model.RunCompleted, final.Status)
	assert.Equal(t, 2, final.Done)
	assert.Equal(t, 1, final.Dropped)
	assert.Equal(t, 1, final.Visuals)

	got, err := e.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, got.Status)
	assert.Len(t, got.Result.Questions, 1)
	assert.Empty(t, got.Request.SourceText)
	assert.Eventually(t, func() bool { return !e.runner.Busy() }, time.Second, 10*time.Millisecond)
}

func TestRunnerBusy(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{}), res: testResult(t)}
	e := newTestEnv(t, gen, nil)

	first, err := e.runner.Start(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, e.runner.Busy())

	_, err = e.runner.Start(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrBusy)

	runs, err := e.store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	close(gen.release)
	waitFinished(t, e.runner, first.ID)
	assert.Eventually(t, func() bool { return !e.runner.Busy() }, time.Second, 10*time.Millisecond)
}

func TestRunnerFailure(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{err: errors.New("provider unreachable")}, nil)
	run, err := e.runner.Start(context.Background(), testRequest())
	require.NoError(t, err)

	final := waitFinished(t, e.runner, run.ID)
	assert.Equal(t, model.RunFailed, final.Status)
	assert.Contains(t, final.LastError, "provider unreachable")

	got, err := e.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, got.Status)
	assert.Contains(t, got.Error, "provider unreachable")
}

func TestRunnerShutdownKeepsPartialResult(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{}), res: testResult(t)}
	e := newTestEnv(t, gen, nil)
	run, err := e.runner.Start(context.Background(), testRequest())
	require.NoError(t, err)
	updates, _, ok, unsubscribe := e.runner.Hub().Subscribe(run.ID)
	require.True(t, ok)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.runner.Shutdown(ctx))

	got, err := e.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, got.Status)
	assert.Len(t, got.Result.Questions, 1)

	var final model.Progress
	for p := range updates {
		final = p
	}
	assert.True(t, final.Finished)
	assert.Contains(t, final.LastError, context.Canceled.Error())
	assert.Zero(t, hubTopics(e.runner.Hub()))
}

func TestRunnerInvalidRequest(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	req := testRequest()
	req.Total = 0
	_, err := e.runner.Start(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	assert.False(t, e.runner.Busy())
}

func TestRunPage(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	run := savedRun(t, e)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "notes.pdf")
	assert.Contains(t, body, "/runs/"+run.ID+"/download/zip")
	assert.Contains(t, body, "/runs/"+run.ID+"/visuals/v-1.png")
	assert.Contains(t, body, "malformed JSON")
	assert.NotContains(t, body, `id="progress"`)
}

func TestRunPagePending(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	run, err := e.store.CreateRun(context.Background(), testRequest())
	require.NoError(t, err)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-ws="/runs/`+run.ID+`/progress"`)
}

func TestRunNotFound(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVisual(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	run := savedRun(t, e)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/visuals/v-1.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = e.do(httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/visuals/v-9.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownload(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	run := savedRun(t, e)

	t.Run("json", func(t *testing.T) {
		rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/download/json", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "BA_questions_")
		res, err := export.ImportJSON(rec.Body)
		require.NoError(t, err)
		require.Len(t, res.Questions, 1)
		assert.Len(t, res.Visuals, 1)
	})

	t.Run("stats", func(t *testing.T) {
		rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/download/stats", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "BA_question_stats_")
		var stats map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.NotEmpty(t, stats)
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/download/docx", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown run", func(t *testing.T) {
		rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/missing/download/json", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDownloadPendingRun(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	run, err := e.store.CreateRun(context.Background(), testRequest())
	require.NoError(t, err)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/download/json", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "still being generated")
	assert.NotContains(t, rec.Body.String(), "Another generation")
}

func TestDownloadFailedRun(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	ctx := context.Background()
	run, err := e.store.CreateRun(ctx, testRequest())
	require.NoError(t, err)
	require.NoError(t, e.store.SetRunStatus(ctx, run.ID, model.RunFailed, "provider unreachable"))

	rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/download/pdf", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "has no questions to download")
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	e := newTestEnv(t, &fakeGenerator{}, func(c *config.Config) {
		c.Server.AuthUser = "grader"
		c.Server.AuthPasswordHash = string(hash)
	})

	tests := []struct {
		name       string
		user, pass string
		want       int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"wrong password", "grader", "guess", http.StatusUnauthorized},
		{"wrong user", "student", "secret", http.StatusUnauthorized},
		{"valid", "grader", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := e.do(req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
			}
		})
	}

	rec := e.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDemo(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/demo", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "data:image/png;base64,")
	assert.Contains(t, body, `name="template"`)

	rec = e.do(httptest.NewRequest(http.MethodGet, "/demo?template=no-such-template", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown template")
}

func TestProgressFinishedRun(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	run := savedRun(t, e)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/runs/" + run.ID + "/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var p model.Progress
	require.NoError(t, conn.ReadJSON(&p))
	assert.True(t, p.Finished)
	assert.Equal(t, model.RunCompleted, p.Status)
	assert.Equal(t, 2, p.Done)
	assert.Equal(t, 2, p.Total)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestProgressStreamsActiveRun(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{}), res: testResult(t)}
	e := newTestEnv(t, gen, nil)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	run, err := e.runner.Start(context.Background(), testRequest())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		p, ok := e.runner.Hub().Last(run.ID)
		return ok && p.Status == model.RunRunning
	}, 5*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/runs/" + run.ID + "/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var p model.Progress
	require.NoError(t, conn.ReadJSON(&p))
	assert.False(t, p.Finished)
	assert.Equal(t, 1, p.Done)

	close(gen.release)
	for !p.Finished {
		require.NoError(t, conn.ReadJSON(&p))
	}
	assert.Equal(t, model.RunCompleted, p.Status)
}

func TestProgressUnknownRun(t *testing.T) {
	e := newTestEnv(t, &fakeGenerator{}, nil)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/runs/missing/progress", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHub(t *testing.T) {
	h := NewHub()
	h.Publish(model.Progress{RunID: "r1", Total: 3, Status: model.RunPending})
	updates, last, ok, cancel := h.Subscribe("r1")
	defer cancel()
	require.True(t, ok)
	assert.Equal(t, model.RunPending, last.Status)

	h.Publish(model.Progress{RunID: "r1", Done: 1, Total: 3})
	h.Publish(model.Progress{RunID: "r2", Done: 5, Total: 5})
	assert.Equal(t, 1, (<-updates).Done)
	assert.Equal(t, 2, hubTopics(h))

	h.Publish(model.Progress{RunID: "r1", Done: 3, Total: 3, Finished: true})
	final := <-updates
	assert.True(t, final.Finished)
	_, open := <-updates
	assert.False(t, open)

	// Finished runs are forgotten.
	_, ok = h.Last("r1")
	assert.False(t, ok)
	assert.Equal(t, 1, hubTopics(h))
	h.Publish(model.Progress{RunID: "r2", Done: 5, Total: 5, Finished: true})
	assert.Zero(t, hubTopics(h))
}

func TestHubUnknownRun(t *testing.T) {
	h := NewHub()
	updates, _, ok, cancel := h.Subscribe("missing")
	defer cancel()
	assert.False(t, ok)
	_, open := <-updates
	assert.False(t, open)
	assert.Zero(t, hubTopics(h), "subscribing must not register a run")

	h.Publish(model.Progress{RunID: "missing", Finished: true})
	assert.Zero(t, hubTopics(h))
}

func TestHubSlowSubscriberGetsFinal(t *testing.T) {
	h := NewHub()
	h.Publish(model.Progress{RunID: "r1", Total: 21})
	updates, _, _, cancel := h.Subscribe("r1")
	defer cancel()
	for i := 1; i <= 20; i++ {
		h.Publish(model.Progress{RunID: "r1", Done: i, Total: 21})
	}
	h.Publish(model.Progress{RunID: "r1", Done: 21, Total: 21, Finished: true})

	var last model.Progress
	for p := range updates {
		last = p
	}
	assert.True(t, last.Finished)
	assert.Equal(t, 21, last.Done)
}
