package export

import (
	"encoding/json"
	"io"
	"math"
	"strings"
	"time"

	"github.com/pavelanni/examgen/internal/model"
)

// VisualStats summarizes diagram usage.
type VisualStats struct {
	Visual  int            `json:"visual_questions"`
	Text    int            `json:"text_questions"`
	Percent float64        `json:"visual_percent"`
	ByKind  map[string]int `json:"by_kind"`
}

// Statistics describes a finished question set.
type Statistics struct {
	Total        int            `json:"total_questions"`
	Requested    int            `json:"requested"`
	Dropped      int            `json:"dropped"`
	GeneratedAt  time.Time      `json:"generated_at"`
	ByType       map[string]int `json:"by_type"`
	ByDifficulty map[string]int `json:"by_difficulty"`
	BySubject    map[string]int `json:"by_subject"`
	Visuals      VisualStats    `json:"visuals"`
}

// ComputeStatistics counts questions by type, difficulty, subject and visual kind.
// Subjects are keyed by the last " > " segment of the subject area.
func ComputeStatistics(res model.Result, at time.Time) Statistics {
	s := Statistics{
		Total:        len(res.Questions),
		Requested:    res.Requested,
		Dropped:      len(res.Failures),
		GeneratedAt:  at,
		ByType:       map[string]int{},
		ByDifficulty: map[string]int{},
		BySubject:    map[string]int{},
		Visuals:      VisualStats{ByKind: map[string]int{}},
	}
	for _, q := range res.Questions {
		s.ByType[string(q.Type)]++
		s.ByDifficulty[string(q.Difficulty)]++
		s.BySubject[ShortSubject(q.SubjectArea)]++
		if q.HasVisual() {
			s.Visuals.Visual++
			s.Visuals.ByKind[string(q.VisualKind)]++
		}
	}
	s.Visuals.Text = s.Total - s.Visuals.Visual
	if s.Total > 0 {
		s.Visuals.Percent = math.Round(float64(s.Visuals.Visual)/float64(s.Total)*1000) / 10
	}
	return s
}

// ShortSubject returns the last segment of a "a > b > c" subject path.
func ShortSubject(subject string) string {
	if i := strings.LastIndex(subject, " > "); i >= 0 {
		return strings.TrimSpace(subject[i+3:])
	}
	if subject == "" {
		return "-"
	}
	return subject
}

// WriteStatistics encodes s as indented JSON.
func WriteStatistics(w io.Writer, s Statistics) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(s)
}
