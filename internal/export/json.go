package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/model"
)

// Document is the JSON export format. PNG bytes are base64-encoded.
type Document struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Questions   []model.Question   `json:"questions"`
	Visuals     []diagram.Artifact `json:"visuals"`
}

// WriteJSON encodes the questions and the visuals they reference.
func WriteJSON(w io.Writer, res model.Result, at time.Time) error {
	doc := Document{
		GeneratedAt: at,
		Questions:   res.Questions,
		Visuals:     referencedVisuals(res),
	}
	if doc.Questions == nil {
		doc.Questions = []model.Question{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json export: %w", err)
	}
	return nil
}

// ImportJSON reads a document written by WriteJSON.
func ImportJSON(r io.Reader) (model.Result, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return model.Result{}, fmt.Errorf("decode json export: %w", err)
	}
	res := model.Result{
		Requested: len(doc.Questions),
		Questions: doc.Questions,
		Visuals:   doc.Visuals,
	}
	for _, q := range res.Questions {
		if q.HasVisual() {
			if _, ok := res.Visual(q.VisualID); !ok {
				return model.Result{}, fmt.Errorf("question %s references missing visual %s", q.ID, q.VisualID)
			}
		}
	}
	return res, nil
}

// referencedVisuals keeps visuals in question order and drops orphans.
func referencedVisuals(res model.Result) []diagram.Artifact {
	out := []diagram.Artifact{}
	for _, q := range res.Questions {
		if !q.HasVisual() {
			continue
		}
		if v, ok := res.Visual(q.VisualID); ok {
			out = append(out, v)
		}
	}
	return out
}
