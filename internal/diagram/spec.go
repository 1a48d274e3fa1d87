package diagram

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSpec is returned when a diagram spec cannot be rendered.
var ErrInvalidSpec = errors.New("invalid diagram spec")

// Kind identifies the type of diagram.
type Kind string

const (
	KindERD       Kind = "erd"
	KindUML       Kind = "uml"
	KindFlowchart Kind = "flowchart"
	KindUIMockup  Kind = "ui_mockup"
	KindTable     Kind = "table"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindERD, KindUML, KindFlowchart, KindUIMockup, KindTable}

// ParseKind converts a user-supplied string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s)
}

// Entity is an ERD entity box.
type Entity struct {
	Name       string   `json:"name" yaml:"name"`
	Attributes []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Relationship connects two entities with a cardinality label such as "1:N".
type Relationship struct {
	From        string `json:"from" yaml:"from"`
	To          string `json:"to" yaml:"to"`
	Cardinality string `json:"type" yaml:"type"`
}

// Class is a UML class box.
type Class struct {
	Name       string   `json:"name" yaml:"name"`
	Attributes []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Methods    []string `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// Association links two UML classes.
type Association struct {
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// StepType selects the flowchart shape.
type StepType string

const (
	StepStart    StepType = "start"
	StepEnd      StepType = "end"
	StepProcess  StepType = "process"
	StepDecision StepType = "decision"
	StepIO       StepType = "io"
)

// Step is one flowchart node. Steps are connected top to bottom in order.
type Step struct {
	ID   string   `json:"id,omitempty" yaml:"id,omitempty"`
	Type StepType `json:"type" yaml:"type"`
	Text string   `json:"text" yaml:"text"`
}

// Branch is an extra flowchart edge between two steps, e.g. the "No" path of a decision.
type Branch struct {
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// ComponentType selects the widget drawn in a UI mockup.
type ComponentType string

const (
	ComponentLabel    ComponentType = "label"
	ComponentInput    ComponentType = "input"
	ComponentButton   ComponentType = "button"
	ComponentCheckbox ComponentType = "checkbox"
	ComponentDropdown ComponentType = "dropdown"
)

// Component is a UI mockup widget. Coordinates are in grid units on a 10x8 canvas
// with the origin at the bottom left.
type Component struct {
	Type        ComponentType `json:"type" yaml:"type"`
	X           float64       `json:"x" yaml:"x"`
	Y           float64       `json:"y" yaml:"y"`
	Width       float64       `json:"width" yaml:"width"`
	Height      float64       `json:"height" yaml:"height"`
	Text        string        `json:"text,omitempty" yaml:"text,omitempty"`
	Placeholder string        `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// Spec is a declarative diagram description. Only the fields for its Kind are used.
type Spec struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	Entities      []Entity       `json:"entities,omitempty" yaml:"entities,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`

	Classes      []Class       `json:"classes,omitempty" yaml:"classes,omitempty"`
	Associations []Association `json:"associations,omitempty" yaml:"associations,omitempty"`

	Steps    []Step   `json:"steps,omitempty" yaml:"steps,omitempty"`
	Branches []Branch `json:"branches,omitempty" yaml:"branches,omitempty"`

	Components []Component `json:"components,omitempty" yaml:"components,omitempty"`

	Columns []string   `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows    [][]string `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// Artifact is a rendered diagram together with the spec it was rendered from.
type Artifact struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	Spec Spec   `json:"spec"`
	PNG  []byte `json:"image_png"`
}

// Validate reports the first structural problem in the spec.
func (s Spec) Validate() error {
	var err error
	switch s.Kind {
	case KindERD:
		err = s.validateERD()
	case KindUML:
		err = s.validateUML()
	case KindFlowchart:
		err = s.validateFlowchart()
	case KindUIMockup:
		err = s.validateMockup()
	case KindTable:
		err = s.validateTable()
	default:
		err = fmt.Errorf("unknown kind %q", s.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSpec, s.Kind, err)
	}
	return nil
}

func (s Spec) validateERD() error {
	if len(s.Entities) == 0 {
		return errors.New("at least one entity is required")
	}
	names, err := uniqueNames(len(s.Entities), func(i int) string { return s.Entities[i].Name })
	if err != nil {
		return err
	}
	for _, r := range s.Relationships {
		if !names[r.From] || !names[r.To] {
			return fmt.Errorf("relationship %s -> %s references an unknown entity", r.From, r.To)
		}
	}
	return nil
}

func (s Spec) validateUML() error {
	if len(s.Classes) == 0 {
		return errors.New("at least one class is required")
	}
	names, err := uniqueNames(len(s.Classes), func(i int) string { return s.Classes[i].Name })
	if err != nil {
		return err
	}
	for _, a := range s.Associations {
		if !names[a.From] || !names[a.To] {
			return fmt.Errorf("association %s -> %s references an unknown class", a.From, a.To)
		}
	}
	return nil
}

func (s Spec) validateFlowchart() error {
	if len(s.Steps) == 0 {
		return errors.New("at least one step is required")
	}
	ids := make(map[string]bool)
	for i, st := range s.Steps {
		switch st.Type {
		case StepStart, StepEnd, StepProcess, StepDecision, StepIO:
		default:
			return fmt.Errorf("step %d has unknown type %q", i, st.Type)
		}
		if strings.TrimSpace(st.Text) == "" {
			return fmt.Errorf("step %d has no text", i)
		}
		if st.ID != "" {
			if ids[st.ID] {
				return fmt.Errorf("duplicate step id %q", st.ID)
			}
			ids[st.ID] = true
		}
	}
	for _, b := range s.Branches {
		if !ids[b.From] || !ids[b.To] {
			return fmt.Errorf("branch %s -> %s references an unknown step", b.From, b.To)
		}
	}
	return nil
}

func (s Spec) validateMockup() error {
	if len(s.Components) == 0 {
		return errors.New("at least one component is required")
	}
	for i, c := range s.Components {
		switch c.Type {
		case ComponentLabel, ComponentInput, ComponentButton, ComponentCheckbox, ComponentDropdown:
		default:
			return fmt.Errorf("component %d has unknown type %q", i, c.Type)
		}
		if c.Width <= 0 || c.Height <= 0 {
			return fmt.Errorf("component %d must have a positive size", i)
		}
		if c.X < 0 || c.Y < 0 || c.X+c.Width > mockupGridW || c.Y+c.Height > mockupGridH {
			return fmt.Errorf("component %d lies outside the %gx%g canvas", i, mockupGridW, mockupGridH)
		}
	}
	return nil
}

func (s Spec) validateTable() error {
	if len(s.Columns) == 0 {
		return errors.New("at least one column is required")
	}
	for i, row := range s.Rows {
		if len(row) != len(s.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(s.Columns))
		}
	}
	return nil
}

func uniqueNames(n int, name func(int) string) (map[string]bool, error) {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		nm := strings.TrimSpace(name(i))
		if nm == "" {
			return nil, fmt.Errorf("item %d has no name", i)
		}
		if seen[nm] {
			return nil, fmt.Errorf("duplicate name %q", nm)
		}
		seen[nm] = true
	}
	return seen, nil
}

// Describe renders the spec as plain text so it can be embedded in an LLM prompt.
func Describe(s Spec) string {
	var sb strings.Builder
	if s.Title != "" {
		sb.WriteString("Title: " + s.Title + "\n")
	}
	switch s.Kind {
	case KindERD:
		sb.WriteString("Entity-relationship diagram.\nEntities:\n")
		for _, e := range s.Entities {
			sb.WriteString("- " + e.Name)
			if len(e.Attributes) > 0 {
				sb.WriteString(" (" + strings.Join(e.Attributes, ", ") + ")")
			}
			sb.WriteString("\n")
		}
		if len(s.Relationships) > 0 {
			sb.WriteString("Relationships:\n")
			for _, r := range s.Relationships {
				fmt.Fprintf(&sb, "- %s -> %s [%s]\n", r.From, r.To, r.Cardinality)
			}
		}
	case KindUML:
		sb.WriteString("UML class diagram.\nClasses:\n")
		for _, c := range s.Classes {
			fmt.Fprintf(&sb, "- %s; attributes: %s; methods: %s\n",
				c.Name, strings.Join(c.Attributes, ", "), strings.Join(c.Methods, ", "))
		}
		if len(s.Associations) > 0 {
			sb.WriteString("Associations:\n")
			for _, a := range s.Associations {
				fmt.Fprintf(&sb, "- %s -> %s %s\n", a.From, a.To, a.Label)
			}
		}
	case KindFlowchart:
		sb.WriteString("Process flowchart, steps in order:\n")
		for i, st := range s.Steps {
			fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, st.Type, st.Text)
		}
		if len(s.Branches) > 0 {
			sb.WriteString("Additional branches:\n")
			for _, b := range s.Branches {
				fmt.Fprintf(&sb, "- %s -> %s (%s)\n", b.From, b.To, b.Label)
			}
		}
	case KindUIMockup:
		sb.WriteString("UI screen mockup with components:\n")
		for _, c := range s.Components {
			label := c.Text
			if label == "" {
				label = c.Placeholder
			}
			fmt.Fprintf(&sb, "- %s: %q\n", c.Type, label)
		}
	case KindTable:
		sb.WriteString("Data table.\nColumns: " + strings.Join(s.Columns, " | ") + "\n")
		for _, row := range s.Rows {
			sb.WriteString("  " + strings.Join(row, " | ") + "\n")
		}
	}
	return sb.String()
}
