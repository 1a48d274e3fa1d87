// Package bank holds the diagram templates used for visual questions.
package bank

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/model"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Sample is a hand-written question that accompanies a template. It is shown on
// the demo page and never sent to the LLM.
type Sample struct {
	Type               model.QuestionType `yaml:"question_type"`
	Title              string             `yaml:"title"`
	Scenario           string             `yaml:"scenario"`
	Prompt             string             `yaml:"question"`
	Choices            []string           `yaml:"choices"`
	CorrectAnswer      string             `yaml:"correct_answer"`
	AlternativeAnswers []string           `yaml:"alternative_answers"`
	ModelAnswer        string             `yaml:"model_answer"`
	GradingCriteria    []string           `yaml:"grading_criteria"`
	Explanation        string             `yaml:"explanation"`
}

// Template is a named diagram with its domain and sample question.
type Template struct {
	Name    string       `yaml:"name"`
	Domain  string       `yaml:"domain"`
	Diagram diagram.Spec `yaml:"diagram"`
	Sample  Sample       `yaml:"sample"`
}

// Question converts the sample into a question for the given difficulty.
func (t Template) Question(d model.Difficulty) model.Question {
	s := t.Sample
	return model.Question{
		Type:               s.Type,
		Difficulty:         d,
		Title:              s.Title,
		Scenario:           s.Scenario,
		Prompt:             s.Prompt,
		Choices:            s.Choices,
		CorrectAnswer:      s.CorrectAnswer,
		AlternativeAnswers: s.AlternativeAnswers,
		ModelAnswer:        s.ModelAnswer,
		GradingCriteria:    s.GradingCriteria,
		Explanation:        s.Explanation,
		Points:             d.DefaultPoints(),
		VisualKind:         t.Diagram.Kind,
	}
}

// Bank is an immutable set of templates.
type Bank struct {
	templates []Template
	byKind    map[diagram.Kind][]int
}

type file struct {
	Templates []Template `yaml:"templates"`
}

// Default returns the embedded bank.
func Default() (*Bank, error) {
	return Parse(defaultTemplates)
}

// Load reads a bank from a YAML file. An empty path returns the embedded bank.
func Load(path string) (*Bank, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template bank: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a bank. Unknown fields are rejected.
func Parse(data []byte) (*Bank, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse template bank: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("parse template bank: multiple YAML documents are not supported")
		}
		return nil, fmt.Errorf("parse template bank: %w", err)
	}
	if len(f.Templates) == 0 {
		return nil, errors.New("template bank is empty")
	}
	b := &Bank{templates: f.Templates, byKind: make(map[diagram.Kind][]int)}
	seen := make(map[string]bool)
	for i, t := range f.Templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template %d has no name", i)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate template %q", t.Name)
		}
		seen[t.Name] = true
		if err := t.Diagram.Validate(); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}
		b.byKind[t.Diagram.Kind] = append(b.byKind[t.Diagram.Kind], i)
	}
	return b, nil
}

// Templates returns all templates in file order.
func (b *Bank) Templates() []Template {
	return append([]Template(nil), b.templates...)
}

// Get returns the template with the given name.
func (b *Bank) Get(name string) (Template, bool) {
	for _, t := range b.templates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

// Pick returns a template of the requested kind. n selects among templates of
// that kind so successive slots cycle through them. When the bank has no
// template of that kind, the n-th template overall is returned.
func (b *Bank) Pick(kind diagram.Kind, n int) Template {
	if n < 0 {
		n = -n
	}
	if idx := b.byKind[kind]; len(idx) > 0 {
		return b.templates[idx[n%len(idx)]]
	}
	return b.templates[n%len(b.templates)]
}

// Kinds reports which diagram kinds the bank covers.
func (b *Bank) Kinds() []diagram.Kind {
	var kinds []diagram.Kind
	for _, k := range diagram.Kinds {
		if len(b.byKind[k]) > 0 {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
