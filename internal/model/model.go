package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/examgen/internal/diagram"
)

// ErrInvalidRequest is returned when a generation request fails validation.
var ErrInvalidRequest = errors.New("invalid generation request")

// QuestionType is the answer format of a question.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeEssay          QuestionType = "essay"
)

// QuestionTypes lists the types in display order.
var QuestionTypes = []QuestionType{TypeMultipleChoice, TypeShortAnswer, TypeEssay}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyLow    Difficulty = "low"
	DifficultyMedium Difficulty = "medium"
	DifficultyHigh   Difficulty = "high"
)

// Difficulties lists the levels in display order.
var Difficulties = []Difficulty{DifficultyLow, DifficultyMedium, DifficultyHigh}

// DefaultPoints returns the points awarded for a question of the given difficulty.
func (d Difficulty) DefaultPoints() int {
	switch d {
	case DifficultyLow:
		return 3
	case DifficultyHigh:
		return 5
	default:
		return 4
	}
}

// TypeRatio holds the percentage of each question type. The values sum to 100.
type TypeRatio struct {
	MultipleChoice int `json:"multiple_choice"`
	ShortAnswer    int `json:"short_answer"`
	Essay          int `json:"essay"`
}

// Percent returns the share of the given type.
func (r TypeRatio) Percent(t QuestionType) int {
	switch t {
	case TypeMultipleChoice:
		return r.MultipleChoice
	case TypeShortAnswer:
		return r.ShortAnswer
	case TypeEssay:
		return r.Essay
	}
	return 0
}

// DifficultyRatio holds the percentage of each difficulty level. The values sum to 100.
type DifficultyRatio struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Percent returns the share of the given difficulty.
func (r DifficultyRatio) Percent(d Difficulty) int {
	switch d {
	case DifficultyLow:
		return r.Low
	case DifficultyMedium:
		return r.Medium
	case DifficultyHigh:
		return r.High
	}
	return 0
}

// GenerationRequest describes one generation run. It is not modified once the run starts.
type GenerationRequest struct {
	Total         int             `json:"total"`
	Types         TypeRatio       `json:"types"`
	Difficulty    DifficultyRatio `json:"difficulty"`
	VisualPercent int             `json:"visual_percent"`
	SourceText    string          `json:"source_text"`
	SourceName    string          `json:"source_name,omitempty"`
	SubjectAreas  []string        `json:"subject_areas"`
	Language      string          `json:"language"`
	Seed          int64           `json:"seed"`
}

// MaxQuestions caps the size of a single run.
const MaxQuestions = 500

// Validate checks counts and ratios.
func (r GenerationRequest) Validate() error {
	var errs []error
	if r.Total < 1 || r.Total > MaxQuestions {
		errs = append(errs, fmt.Errorf("total must be between 1 and %d, got %d", MaxQuestions, r.Total))
	}
	types := []int{r.Types.MultipleChoice, r.Types.ShortAnswer, r.Types.Essay}
	if err := checkPercents("type ratio", types); err != nil {
		errs = append(errs, err)
	}
	levels := []int{r.Difficulty.Low, r.Difficulty.Medium, r.Difficulty.High}
	if err := checkPercents("difficulty ratio", levels); err != nil {
		errs = append(errs, err)
	}
	if r.VisualPercent < 0 || r.VisualPercent > 100 {
		errs = append(errs, fmt.Errorf("visual ratio must be between 0 and 100, got %d", r.VisualPercent))
	}
	if len(r.SubjectAreas) == 0 {
		errs = append(errs, errors.New("at least one subject area is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}
	return nil
}

func checkPercents(name string, values []int) error {
	sum := 0
	for _, v := range values {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s values must be between 0 and 100", name)
		}
		sum += v
	}
	if sum != 100 {
		return fmt.Errorf("%s must sum to 100, got %d", name, sum)
	}
	return nil
}

// Question is one generated exam question.
type Question struct {
	ID                 string       `json:"question_id"`
	Type               QuestionType `json:"question_type"`
	Difficulty         Difficulty   `json:"difficulty"`
	SubjectArea        string       `json:"subject_area"`
	Title              string       `json:"title"`
	Scenario           string       `json:"scenario,omitempty"`
	Prompt             string       `json:"question"`
	Choices            []string     `json:"choices,omitempty"`
	CorrectAnswer      string       `json:"correct_answer,omitempty"`
	AlternativeAnswers []string     `json:"alternative_answers,omitempty"`
	ModelAnswer        string       `json:"model_answer,omitempty"`
	GradingCriteria    []string     `json:"grading_criteria,omitempty"`
	Explanation        string       `json:"explanation,omitempty"`
	Points             int          `json:"points"`
	VisualID           string       `json:"visual_id,omitempty"`
	VisualKind         diagram.Kind `json:"visual_type,omitempty"`
	GeneratedAt        time.Time    `json:"generated_at"`
}

// HasVisual reports whether the question references a rendered diagram.
func (q Question) HasVisual() bool {
	return q.VisualID != ""
}

// Answer returns the reference answer regardless of question type.
func (q Question) Answer() string {
	if q.Type == TypeEssay {
		return q.ModelAnswer
	}
	return q.CorrectAnswer
}

// SlotFailure records a question slot that was dropped after exhausting retries.
type SlotFailure struct {
	Slot       int          `json:"slot"`
	Type       QuestionType `json:"question_type"`
	Difficulty Difficulty   `json:"difficulty"`
	Visual     bool         `json:"visual"`
	Attempts   int          `json:"attempts"`
	Error      string       `json:"error"`
}

// Result is the outcome of a generation run.
type Result struct {
	Requested int                `json:"requested"`
	Questions []Question         `json:"questions"`
	Visuals   []diagram.Artifact `json:"visuals"`
	Failures  []SlotFailure      `json:"failures,omitempty"`
}

// Visual returns the artifact with the given id.
func (r Result) Visual(id string) (diagram.Artifact, bool) {
	for _, v := range r.Visuals {
		if v.ID == id {
			return v, true
		}
	}
	return diagram.Artifact{}, false
}

// RunStatus represents the lifecycle of a generation run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is a persisted generation run.
type Run struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Status    RunStatus         `json:"status"`
	Request   GenerationRequest `json:"request"`
	Result    Result            `json:"result"`
	Error     string            `json:"error,omitempty"`
}

// Progress reports how far a run has advanced.
type Progress struct {
	RunID     string       `json:"run_id"`
	Done      int          `json:"done"`
	Total     int          `json:"total"`
	Visuals   int          `json:"visuals"`
	Dropped   int          `json:"dropped"`
	Type      QuestionType `json:"question_type,omitempty"`
	Level     Difficulty   `json:"difficulty,omitempty"`
	Finished  bool         `json:"finished"`
	Status    RunStatus    `json:"status"`
	LastError string       `json:"last_error,omitempty"`
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
