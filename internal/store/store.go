package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run or visual does not exist.
var ErrNotFound = errors.New("not found")

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// RunSummary is a row of the recent-runs list.
type RunSummary struct {
	ID        string
	CreatedAt time.Time
	Status    model.RunStatus
	Requested int
	Questions int
	Dropped   int
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; an in-memory database also lives on a single connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// CreateRun stores a new pending run. The source text is not persisted.
func (s *Store) CreateRun(ctx context.Context, req model.GenerationRequest) (model.Run, error) {
	req.SourceText = ""
	data, err := json.Marshal(req)
	if err != nil {
		return model.Run{}, fmt.Errorf("encode request: %w", err)
	}
	run := model.Run{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Status:    model.RunPending,
		Request:   req,
		Result:    model.Result{Requested: req.Total},
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, status, request, requested) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.Status, string(data), req.Total,
	)
	if err != nil {
		return model.Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// SetRunStatus updates the status of a run. A non-empty errMsg is recorded.
func (s *Store) SetRunStatus(ctx context.Context, id string, status model.RunStatus, errMsg string) error {
	var finished any
	if status == model.RunCompleted || status == model.RunFailed {
		finished = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = COALESCE(?, finished_at) WHERE id = ?`,
		status, errMsg, finished, id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	return expectRow(res, id)
}

// SaveResult stores the questions, visuals and failures of a run and marks it completed.
// Saving twice replaces the previous result.
func (s *Store) SaveResult(ctx context.Context, id string, res model.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, requested = ?, finished_at = ?, error = '' WHERE id = ?`,
		model.RunCompleted, res.Requested, s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if err := expectRow(r, id); err != nil {
		return err
	}
	for _, table := range []string{"questions", "visuals", "failures"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, q := range res.Questions {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("encode question %s: %w", q.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (id, run_id, position, question_type, difficulty, subject_area, visual_id, payload)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, id, i, q.Type, q.Difficulty, q.SubjectArea, q.VisualID, string(data),
		)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}
	for _, v := range res.Visuals {
		spec, err := json.Marshal(v.Spec)
		if err != nil {
			return fmt.Errorf("encode visual %s: %w", v.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO visuals (id, run_id, kind, spec, png) VALUES (?, ?, ?, ?, ?)`,
			v.ID, id, v.Kind, string(spec), v.PNG,
		)
		if err != nil {
			return fmt.Errorf("insert visual %s: %w", v.ID, err)
		}
	}
	for _, f := range res.Failures {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encode failure: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, slot, payload) VALUES (?, ?, ?)`, id, f.Slot, string(data),
		); err != nil {
			return fmt.Errorf("insert failure for slot %d: %w", f.Slot, err)
		}
	}
	return tx.Commit()
}

// GetRun returns a run with its full result.
func (s *Store) GetRun(ctx context.Context, id string) (model.Run, error) {
	var (
		run     model.Run
		request string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, status, request, requested, error FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.CreatedAt, &run.Status, &request, &run.Result.Requested, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(request), &run.Request); err != nil {
		return model.Run{}, fmt.Errorf("decode request of run %s: %w", id, err)
	}

	if run.Result.Questions, err = s.questions(ctx, id); err != nil {
		return model.Run{}, err
	}
	if run.Result.Visuals, err = s.visuals(ctx, id); err != nil {
		return model.Run{}, err
	}
	if run.Result.Failures, err = s.failures(ctx, id); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (s *Store) questions(ctx context.Context, runID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM questions WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	var out []model.Question
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var q model.Question
		if err := json.Unmarshal([]byte(payload), &q); err != nil {
			return nil, fmt.Errorf("decode question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) visuals(ctx context.Context, runID string) ([]diagram.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, spec, png FROM visuals WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list visuals: %w", err)
	}
	defer rows.Close()
	var out []diagram.Artifact
	for rows.Next() {
		a, err := scanVisual(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVisual(sc scanner) (diagram.Artifact, error) {
	var (
		a    diagram.Artifact
		spec string
	)
	if err := sc.Scan(&a.ID, &a.Kind, &spec, &a.PNG); err != nil {
		return diagram.Artifact{}, err
	}
	if err := json.Unmarshal([]byte(spec), &a.Spec); err != nil {
		return diagram.Artifact{}, fmt.Errorf("decode visual spec %s: %w", a.ID, err)
	}
	return a, nil
}

func (s *Store) failures(ctx context.Context, runID string) ([]model.SlotFailure, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM failures WHERE run_id = ? ORDER BY slot`, runID)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()
	var out []model.SlotFailure
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var f model.SlotFailure
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			return nil, fmt.Errorf("decode failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetVisual returns one rendered diagram of a run.
func (s *Store) GetVisual(ctx context.Context, runID, visualID string) (diagram.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, spec, png FROM visuals WHERE run_id = ? AND id = ?`, runID, visualID)
	a, err := scanVisual(row)
	if errors.Is(err, sql.ErrNoRows) {
		return diagram.Artifact{}, fmt.Errorf("visual %s: %w", visualID, ErrNotFound)
	}
	if err != nil {
		return diagram.Artifact{}, fmt.Errorf("get visual %s: %w", visualID, err)
	}
	return a, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.status, r.requested,
			(SELECT COUNT(*) FROM questions q WHERE q.run_id = r.id),
			(SELECT COUNT(*) FROM failures f WHERE f.run_id = r.id)
		FROM runs r ORDER BY r.created_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.ID, &rs.CreatedAt, &rs.Status, &rs.Requested, &rs.Questions, &rs.Dropped); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// FailInterrupted marks runs left pending or running by a previous process as failed.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE status IN (?, ?)`,
		model.RunFailed, "interrupted", s.now().UTC(), model.RunPending, model.RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

// PurgeOlderThan deletes runs created before cutoff together with their questions and visuals.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("purged old runs", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}
