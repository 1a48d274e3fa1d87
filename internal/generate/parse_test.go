package generate

import (
	"errors"
	"testing"

	"github.com/pavelanni/examgen/internal/model"
)

func TestParseQuestion(t *testing.T) {
	mc := Slot{Type: model.TypeMultipleChoice, Difficulty: model.DifficultyHigh, SubjectArea: "s"}
	short := Slot{Type: model.TypeShortAnswer, Difficulty: model.DifficultyLow}
	essay := Slot{Type: model.TypeEssay, Difficulty: model.DifficultyMedium}

	tests := []struct {
		name       string
		raw        string
		slot       Slot
		wantErr    bool
		wantAnswer string
	}{
		{"plain mc", `{"question":"Q","choices":["a","b","c"],"correct_answer":"2"}`, mc, false, "2"},
		{"numeric answer", `{"question":"Q","choices":["a","b","c"],"correct_answer":3}`, mc, false, "3"},
		{"circled answer", `{"question":"Q","choices":["① a","② b","③ c"],"correct_answer":"②"}`, mc, false, "2"},
		{"letter answer", `{"question":"Q","choices":["A) a","B) b","C) c"],"correct_answer":"C"}`, mc, false, "3"},
		{"answer by text", `{"question":"Q","choices":["1. red","2. blue"],"correct_answer":"blue"}`, mc, false, "2"},
		{"answer with suffix", `{"question":"Q","choices":["a","b","c"],"correct_answer":"1번"}`, mc, false, "1"},
		{"answer out of range", `{"question":"Q","choices":["a","b"],"correct_answer":"4"}`, mc, true, ""},
		{"one choice", `{"question":"Q","choices":["a"],"correct_answer":"1"}`, mc, true, ""},
		{"fenced with prose", "Here you go:\n```json\n{\"question\":\"Q {x}\",\"correct_answer\":\"Entity\"}\n```\nThanks", short, false, "Entity"},
		{"short missing answer", `{"question":"Q"}`, short, true, ""},
		{"essay", `{"question":"Q","model_answer":"M","grading_criteria":"one criterion"}`, essay, false, "M"},
		{"essay missing model answer", `{"question":"Q","correct_answer":"x"}`, essay, true, ""},
		{"empty question", `{"question":"  ","correct_answer":"x"}`, short, true, ""},
		{"no json", "I cannot do that.", short, true, ""},
		{"broken json", `{"question": "Q", "correct_answer": }`, short, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parseQuestion(tt.raw, tt.slot)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseQuestion: %v", err)
			}
			if got := q.Answer(); got != tt.wantAnswer {
				t.Errorf("answer = %q, want %q", got, tt.wantAnswer)
			}
			if q.Points != tt.slot.Difficulty.DefaultPoints() {
				t.Errorf("points = %d", q.Points)
			}
			if q.Title == "" {
				t.Error("title should default from the question text")
			}
		})
	}
}

func TestParseStripsChoiceMarkers(t *testing.T) {
	q, err := parseQuestion(`{"question":"Q","choices":["① 첫째","② 둘째"],"correct_answer":"①"}`,
		Slot{Type: model.TypeMultipleChoice, Difficulty: model.DifficultyLow})
	if err != nil {
		t.Fatalf("parseQuestion: %v", err)
	}
	if q.Choices[0] != "첫째" || q.Choices[1] != "둘째" {
		t.Errorf("choices = %q", q.Choices)
	}

	q, err = parseQuestion(`{"question":"Q","choices":["1NF","2NF","3NF","3.5 정규형(BCNF)"],"correct_answer":"4"}`,
		Slot{Type: model.TypeMultipleChoice, Difficulty: model.DifficultyLow})
	if err != nil {
		t.Fatalf("parseQuestion: %v", err)
	}
	if q.Choices[3] != "3.5 정규형(BCNF)" {
		t.Errorf("choice text altered: %q", q.Choices[3])
	}
}

func TestStripChoiceMarker(t *testing.T) {
	tests := []struct{ in, want string }{
		{"① 첫째", "첫째"},
		{"②둘째", "둘째"},
		{"1. 제1정규형", "제1정규형"},
		{"(3) 제3정규형", "제3정규형"},
		{"B) 릴레이션", "릴레이션"},
		{"3.5 정규형(BCNF)", "3.5 정규형(BCNF)"},
		{"A.B 테스트", "A.B 테스트"},
		{"2)", ""},
	}
	for _, tt := range tests {
		if got := stripChoiceMarker(tt.in); got != tt.want {
			t.Errorf("stripChoiceMarker(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveChoice(t *testing.T) {
	choices := []string{"1NF", "2NF", "3NF", "3.5 정규형(BCNF)"}
	tests := []struct {
		answer string
		want   int
		ok     bool
	}{
		{"2", 2, true},
		{"②", 2, true},
		{"B", 2, true},
		{"b", 2, true},
		{"(B)", 2, true},
		{"B.", 2, true},
		{"(2)", 2, true},
		{"2)", 2, true},
		{"3nf", 3, true},
		{"④ 3.5 정규형(BCNF)", 4, true},
		{"3.5 정규형(BCNF)", 4, true},
		{"5", 5, false},
		{"(K)", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := resolveChoice(tt.answer, choices)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("resolveChoice(%q) = %d, %v; want %d, %v", tt.answer, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFindFirstJSON(t *testing.T) {
	tests := []struct{ in, want string }{
		{`x {"a":"}"} y`, `{"a":"}"}`},
		{`{"a":{"b":1}} {"c":2}`, `{"a":{"b":1}}`},
		{`{"a":"\"{"}`, `{"a":"\"{"}`},
		{`no object`, ``},
	}
	for _, tt := range tests {
		if got := findFirstJSON(tt.in); got != tt.want {
			t.Errorf("findFirstJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
