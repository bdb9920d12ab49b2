package config

import "fmt"

// HeuristicsConfig tunes the date-context heuristics. Empty lists fall back to
// the built-in lists of the selected locale.
type HeuristicsConfig struct {
	Locale        string   `yaml:"locale"`                   // BCP 47 tag, e.g. "id" or "en-US"
	DateKeywords  []string `yaml:"date_keywords,omitempty"`  // substring keywords
	RangePatterns []string `yaml:"range_patterns,omitempty"` // case-insensitive patterns
}

// QuestionConfig declares an extra suggested question. Exactly one of Text or
// Template must be set; Template requires at least one field.
type QuestionConfig struct {
	Label    string        `yaml:"label"`
	Icon     string        `yaml:"icon,omitempty"`
	Text     string        `yaml:"text,omitempty"`
	Title    string        `yaml:"title,omitempty"`
	Template string        `yaml:"template,omitempty"`
	Fields   []FieldConfig `yaml:"fields,omitempty"`
}

// FieldConfig declares one parameter field of a templated question.
type FieldConfig struct {
	Key          string         `yaml:"key"`
	Label        string         `yaml:"label"`
	Type         string         `yaml:"type"`
	Required     bool           `yaml:"required,omitempty"`
	Default      string         `yaml:"default,omitempty"`
	DefaultToday bool           `yaml:"default_today,omitempty"`
	Placeholder  string         `yaml:"placeholder,omitempty"`
	Options      []OptionConfig `yaml:"options,omitempty"`
}

// OptionConfig is a static choice of a select field.
type OptionConfig struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

func (q QuestionConfig) validate() error {
	if q.Label == "" {
		return fmt.Errorf("label is required")
	}
	hasText := q.Text != ""
	hasTemplate := q.Template != ""
	if hasText == hasTemplate {
		return fmt.Errorf("question %q must set exactly one of text or template", q.Label)
	}
	if hasTemplate && len(q.Fields) == 0 {
		return fmt.Errorf("templated question %q has no fields", q.Label)
	}
	for _, f := range q.Fields {
		if f.Key == "" {
			return fmt.Errorf("question %q has a field without key", q.Label)
		}
	}
	return nil
}
