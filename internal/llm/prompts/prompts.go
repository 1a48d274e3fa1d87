package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/examgen/internal/model"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// DefaultSourceChars is how much of the source text is included in a prompt.
const DefaultSourceChars = 4000

var sourceTagRegex = regexp.MustCompile(`(?i)</?\s*source-text\b[^>]*>`)

// QuestionData holds template data for one question slot.
type QuestionData struct {
	Type        model.QuestionType
	Difficulty  model.Difficulty
	SubjectArea string
	Language    string
	Source      string
	// Diagram is the textual description of the visual, empty for text questions.
	Diagram     string
	DiagramKind string
}

// TypeLabel is the human-readable question type used in prompts.
func (d QuestionData) TypeLabel() string {
	return strings.ReplaceAll(string(d.Type), "_", "-")
}

// Prompt is a rendered system/user message pair.
type Prompt struct {
	System string
	User   string
}

// Set is a parsed collection of question templates.
type Set struct {
	system    *template.Template
	questions map[model.QuestionType]*template.Template
	// SourceChars limits the source excerpt; zero means DefaultSourceChars.
	SourceChars int
}

// Default parses the embedded templates.
func Default() (*Set, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load parses templates from fsys. It expects system.tmpl, base.tmpl and one
// <question_type>.tmpl per question type.
func Load(fsys fs.FS) (*Set, error) {
	sysContent, err := fs.ReadFile(fsys, "system.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read prompt file system.tmpl: %w", err)
	}
	sys, err := template.New("system").Parse(string(sysContent))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template system.tmpl: %w", err)
	}
	base, err := fs.ReadFile(fsys, "base.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read prompt file base.tmpl: %w", err)
	}

	s := &Set{system: sys, questions: make(map[model.QuestionType]*template.Template)}
	for _, qt := range model.QuestionTypes {
		file := string(qt) + ".tmpl"
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", file, err)
		}
		tmpl, err := template.New(string(qt)).Parse(string(base))
		if err == nil {
			tmpl, err = tmpl.Parse(string(content))
		}
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", file, err)
		}
		s.questions[qt] = tmpl
	}
	return s, nil
}

// Build renders the prompt for one slot.
func (s *Set) Build(data QuestionData) (Prompt, error) {
	tmpl, ok := s.questions[data.Type]
	if !ok {
		return Prompt{}, fmt.Errorf("invalid question type: %q", data.Type)
	}
	limit := s.SourceChars
	if limit <= 0 {
		limit = DefaultSourceChars
	}
	data.Source = sanitizeSource(data.Source, limit)
	if data.Language == "" {
		data.Language = LanguageName("")
	}

	var sys, user bytes.Buffer
	if err := s.system.Execute(&sys, data); err != nil {
		return Prompt{}, err
	}
	if err := tmpl.Execute(&user, data); err != nil {
		return Prompt{}, err
	}
	return Prompt{System: strings.TrimSpace(sys.String()), User: strings.TrimSpace(user.String())}, nil
}

// LanguageName maps a language tag to the name used in prompts.
func LanguageName(tag string) string {
	switch strings.ToLower(tag) {
	case "en", "english":
		return "English"
	default:
		return "Korean"
	}
}

func sanitizeSource(text string, limit int) string {
	text = sourceTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return "[No study material provided. Use general BA modeling knowledge.]"
	}
	if utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		text = string(runes[:limit])
	}
	return text
}
