// Package dispatch runs suggested questions: direct ones are sent as-is,
// templated ones first collect parameters through a Form.
package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuestion is returned by the question constructors.
var ErrInvalidQuestion = errors.New("dispatch: invalid suggested question")

// FieldType selects the control rendered for a field.
type FieldType string

const (
	FieldRemote    FieldType = "remote"     // select filled from the option source
	FieldDate      FieldType = "date"       // single ISO date
	FieldDateRange FieldType = "date_range" // two ISO dates under key_start / key_end
	FieldText      FieldType = "text"       // free input
	FieldSelect    FieldType = "select"     // static choices
)

// ParseFieldType accepts the canonical names plus "kelas", the roster
// field name used by the backend.
func ParseFieldType(s string) (FieldType, error) {
	switch t := FieldType(strings.ToLower(strings.TrimSpace(s))); t {
	case FieldRemote, FieldDate, FieldDateRange, FieldText, FieldSelect:
		return t, nil
	case "kelas", "class":
		return FieldRemote, nil
	}
	return "", fmt.Errorf("%w: unknown field type %q", ErrInvalidQuestion, s)
}

// Choice is one selectable value.
type Choice struct {
	Value string
	Label string
}

// Field describes one form control.
type Field struct {
	Key          string
	Label        string
	Type         FieldType
	Required     bool
	Default      string
	DefaultToday bool // date fields only
	Placeholder  string
	Options      []Choice // select fields only
}

// StartKey and EndKey name the two values collected by a date-range field.
func StartKey(key string) string { return key + "_start" }
func EndKey(key string) string   { return key + "_end" }

// ValueKeys returns the keys under which f stores its values.
func (f Field) ValueKeys() []string {
	if f.Type == FieldDateRange {
		return []string{StartKey(f.Key), EndKey(f.Key)}
	}
	return []string{f.Key}
}

// ParamSpec is the form definition of a templated question.
type ParamSpec struct {
	Title  string
	Fields []Field
}

// ValueKeys returns every value key of the spec, in field order.
func (s ParamSpec) ValueKeys() []string {
	var keys []string
	for _, f := range s.Fields {
		keys = append(keys, f.ValueKeys()...)
	}
	return keys
}

// normalize validates the spec and canonicalizes field types in place.
func (s *ParamSpec) normalize() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: parameter spec %q has no fields", ErrInvalidQuestion, s.Title)
	}
	seen := make(map[string]bool)
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Key == "" {
			return fmt.Errorf("%w: field without key in %q", ErrInvalidQuestion, s.Title)
		}
		t, err := ParseFieldType(string(f.Type))
		if err != nil {
			return err
		}
		f.Type = t
		if f.Type == FieldSelect && len(f.Options) == 0 {
			return fmt.Errorf("%w: select field %q has no options", ErrInvalidQuestion, f.Key)
		}
		for _, k := range f.ValueKeys() {
			if seen[k] {
				return fmt.Errorf("%w: duplicate field key %q", ErrInvalidQuestion, k)
			}
			seen[k] = true
		}
	}
	return nil
}

// Template renders collected values into the final message. It must be
// pure.
type Template func(values map[string]string) (string, error)

// Question is a suggested question: exactly one of *Direct or *Templated.
type Question interface {
	Label() string
	Icon() string
	question()
}

// Direct is sent as soon as it is selected.
type Direct struct {
	label string
	icon  string
	text  string
}

// NewDirect builds a direct question. text must not be blank.
func NewDirect(label, icon, text string) (*Direct, error) {
	if strings.TrimSpace(label) == "" {
		return nil, fmt.Errorf("%w: missing label", ErrInvalidQuestion)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: direct question %q has no text", ErrInvalidQuestion, label)
	}
	return &Direct{label: label, icon: icon, text: text}, nil
}

func (d *Direct) Label() string { return d.label }
func (d *Direct) Icon() string  { return d.icon }
func (d *Direct) Text() string  { return d.text }
func (d *Direct) question()     {}

// Templated collects parameters before it is sent.
type Templated struct {
	label    string
	icon     string
	spec     ParamSpec
	template Template
}

// NewTemplated builds a templated question. The spec needs at least one
// field and tmpl must be non-nil.
func NewTemplated(label, icon string, spec ParamSpec, tmpl Template) (*Templated, error) {
	if strings.TrimSpace(label) == "" {
		return nil, fmt.Errorf("%w: missing label", ErrInvalidQuestion)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("%w: templated question %q has no template", ErrInvalidQuestion, label)
	}
	if spec.Title == "" {
		spec.Title = label
	}
	spec.Fields = append([]Field(nil), spec.Fields...)
	if err := spec.normalize(); err != nil {
		return nil, err
	}
	return &Templated{label: label, icon: icon, spec: spec, template: tmpl}, nil
}

func (t *Templated) Label() string   { return t.label }
func (t *Templated) Icon() string    { return t.icon }
func (t *Templated) Spec() ParamSpec { return t.spec }
func (t *Templated) question()       {}

// Render applies the template to values.
func (t *Templated) Render(values map[string]string) (string, error) {
	return t.template(values)
}
