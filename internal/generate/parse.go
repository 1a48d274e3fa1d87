package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/examgen/internal/model"
)

// ErrMalformed marks a model response that could not be turned into a question.
var ErrMalformed = errors.New("malformed LLM response")

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexStrings accepts a JSON array of strings or a single string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	var list []flexString
	if err := json.Unmarshal(b, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, s := range list {
			out = append(out, string(s))
		}
		*f = out
		return nil
	}
	var s flexString
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s != "" {
		*f = []string{string(s)}
	}
	return nil
}

type rawQuestion struct {
	Title              string      `json:"title"`
	Scenario           string      `json:"scenario"`
	Question           string      `json:"question"`
	Choices            flexStrings `json:"choices"`
	CorrectAnswer      flexString  `json:"correct_answer"`
	AlternativeAnswers flexStrings `json:"alternative_answers"`
	ModelAnswer        string      `json:"model_answer"`
	GradingCriteria    flexStrings `json:"grading_criteria"`
	Explanation        string      `json:"explanation"`
}

// parseQuestion extracts, validates and normalizes the question in raw for the slot.
func parseQuestion(raw string, slot Slot) (model.Question, error) {
	obj := findFirstJSON(stripCodeFences(raw))
	if obj == "" {
		return model.Question{}, fmt.Errorf("%w: no JSON object found", ErrMalformed)
	}
	var rq rawQuestion
	if err := json.Unmarshal([]byte(obj), &rq); err != nil {
		return model.Question{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	q := model.Question{
		Type:        slot.Type,
		Difficulty:  slot.Difficulty,
		SubjectArea: slot.SubjectArea,
		Title:       strings.TrimSpace(rq.Title),
		Scenario:    strings.TrimSpace(rq.Scenario),
		Prompt:      strings.TrimSpace(rq.Question),
		Explanation: strings.TrimSpace(rq.Explanation),
		Points:      slot.Difficulty.DefaultPoints(),
	}
	if q.Prompt == "" {
		return model.Question{}, fmt.Errorf("%w: empty question text", ErrMalformed)
	}

	switch slot.Type {
	case model.TypeMultipleChoice:
		choices := nonEmpty(rq.Choices, stripChoiceMarker)
		if len(choices) < 2 {
			return model.Question{}, fmt.Errorf("%w: multiple choice needs at least 2 choices, got %d", ErrMalformed, len(choices))
		}
		n, ok := resolveChoice(string(rq.CorrectAnswer), choices)
		if !ok {
			return model.Question{}, fmt.Errorf("%w: answer %q does not match any choice", ErrMalformed, rq.CorrectAnswer)
		}
		q.Choices = choices
		q.CorrectAnswer = strconv.Itoa(n)
	case model.TypeShortAnswer:
		q.CorrectAnswer = strings.TrimSpace(string(rq.CorrectAnswer))
		if q.CorrectAnswer == "" {
			return model.Question{}, fmt.Errorf("%w: short answer has no correct_answer", ErrMalformed)
		}
		q.AlternativeAnswers = nonEmpty(rq.AlternativeAnswers, strings.TrimSpace)
	case model.TypeEssay:
		q.ModelAnswer = strings.TrimSpace(rq.ModelAnswer)
		if q.ModelAnswer == "" {
			return model.Question{}, fmt.Errorf("%w: essay has no model_answer", ErrMalformed)
		}
		q.GradingCriteria = nonEmpty(rq.GradingCriteria, strings.TrimSpace)
	default:
		return model.Question{}, fmt.Errorf("%w: unknown question type %q", ErrMalformed, slot.Type)
	}
	if q.Title == "" {
		q.Title = truncateRunes(q.Prompt, 40)
	}
	return q, nil
}

func nonEmpty(in []string, clean func(string) string) []string {
	var out []string
	for _, s := range in {
		if s = clean(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// choiceMarker matches a leading enumeration such as "①", "2)", "(3)" or "B.".
// ASCII markers must be followed by whitespace or the end of the string so that
// text like "3.5 정규형" is left alone.
var choiceMarker = regexp.MustCompile(`^\s*(?:[①-⑩]\s*|\(?(?:[0-9]{1,2}|[A-Ja-j])[.)](?:\s+|$))`)

func stripChoiceMarker(s string) string {
	return strings.TrimSpace(choiceMarker.ReplaceAllString(s, ""))
}

// resolveChoice maps an answer given as a number, a circled digit, a letter or
// the choice text to a 1-based choice number.
func resolveChoice(answer string, choices []string) (int, bool) {
	a := strings.TrimSpace(answer)
	if a == "" {
		return 0, false
	}
	text := stripChoiceMarker(a)
	for i, c := range choices {
		if strings.EqualFold(c, text) {
			return i + 1, true
		}
	}
	inRange := func(n int) (int, bool) { return n, n >= 1 && n <= len(choices) }

	// "(B)", "B." and "(2)" all reduce to the bare letter or number.
	core := strings.TrimSpace(strings.Trim(a, "()."))
	r, _ := utf8.DecodeRuneInString(core)
	switch {
	case r >= '①' && r <= '⑩':
		return inRange(int(r-'①') + 1)
	case len(core) == 1 && r >= 'A' && r <= 'J':
		return inRange(int(r-'A') + 1)
	case len(core) == 1 && r >= 'a' && r <= 'j':
		return inRange(int(r-'a') + 1)
	}
	if d := leadingDigits(core); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return 0, false
		}
		return inRange(n)
	}
	return 0, false
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// findFirstJSON returns the first balanced {...} object in s, skipping braces
// that appear inside JSON strings.
func findFirstJSON(s string) string {
	start, depth := -1, 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if start != -1 {
				inString = true
			}
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if start != -1 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
