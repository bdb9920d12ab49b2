package dispatch

import (
	"context"
	"fmt"
	"time"

	"eduattend/internal/logging"
)

// ISODate is the layout of date values collected by a form.
const ISODate = "2006-01-02"

// OptionSource supplies the choices of remote fields.
type OptionSource interface {
	Options(ctx context.Context) ([]Choice, error)
}

// OptionSourceFunc adapts a function to OptionSource.
type OptionSourceFunc func(ctx context.Context) ([]Choice, error)

func (f OptionSourceFunc) Options(ctx context.Context) ([]Choice, error) { return f(ctx) }

// Form is the transient state of one parameter-collection interaction. Its
// option cache lives and dies with the form.
type Form struct {
	question *Templated
	values   map[string]string

	loadStarted bool
	loaded      bool
	options     []Choice
	loadErr     error
}

func newForm(q *Templated, now time.Time) *Form {
	f := &Form{question: q, values: make(map[string]string)}
	today := now.Format(ISODate)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(ISODate)

	for _, field := range q.spec.Fields {
		switch {
		case field.Type == FieldDateRange:
			f.values[StartKey(field.Key)] = monthStart
			f.values[EndKey(field.Key)] = today
		case field.Type == FieldDate && field.DefaultToday:
			f.values[field.Key] = today
		default:
			f.values[field.Key] = field.Default
		}
	}
	return f
}

// Question returns the question the form collects parameters for.
func (f *Form) Question() *Templated { return f.question }

// Spec returns the form definition.
func (f *Form) Spec() ParamSpec { return f.question.spec }

// NeedsOptions reports whether the form has remote fields.
func (f *Form) NeedsOptions() bool {
	for _, field := range f.question.spec.Fields {
		if field.Type == FieldRemote {
			return true
		}
	}
	return false
}

// BeginLoad reports whether the caller should fetch remote options now. It
// returns true at most once per form.
func (f *Form) BeginLoad() bool {
	if f.loadStarted || !f.NeedsOptions() {
		return false
	}
	f.loadStarted = true
	return true
}

// Loading reports whether a fetch was started and has not completed.
func (f *Form) Loading() bool { return f.loadStarted && !f.loaded }

// ApplyOptions stores the result of the fetch started after BeginLoad. On
// failure remote fields are disabled and left empty; the rest of the form
// stays usable.
func (f *Form) ApplyOptions(choices []Choice, err error) {
	f.loaded = true
	if err != nil {
		f.loadErr = err
		f.options = nil
		logging.DispatchWarn("form %q: option fetch failed, remote fields disabled: %v", f.question.spec.Title, err)
		return
	}
	f.options = choices
	logging.Dispatch("form %q: loaded %d options", f.question.spec.Title, len(choices))
}

// Load fetches remote options synchronously, at most once per form.
func (f *Form) Load(ctx context.Context, src OptionSource) error {
	if !f.BeginLoad() {
		return f.loadErr
	}
	if src == nil {
		f.ApplyOptions(nil, fmt.Errorf("no option source configured"))
		return f.loadErr
	}
	choices, err := src.Options(ctx)
	f.ApplyOptions(choices, err)
	return err
}

// LoadErr returns the error of a failed option fetch.
func (f *Form) LoadErr() error { return f.loadErr }

// Choices returns the choices of the field with key.
func (f *Form) Choices(key string) []Choice {
	field, ok := f.field(key)
	if !ok {
		return nil
	}
	switch field.Type {
	case FieldSelect:
		return field.Options
	case FieldRemote:
		return f.options
	}
	return nil
}

// Disabled reports whether the field with key cannot be edited.
func (f *Form) Disabled(key string) bool {
	field, ok := f.field(key)
	return ok && field.Type == FieldRemote && f.loadErr != nil
}

// Set stores a value. key is a field key, or StartKey/EndKey of a
// date-range field.
func (f *Form) Set(key, value string) error {
	field, ok := f.fieldForValue(key)
	if !ok {
		return fmt.Errorf("unknown form field %q", key)
	}
	if f.Disabled(field.Key) {
		return fmt.Errorf("form field %q is disabled", field.Key)
	}
	f.values[key] = value
	return nil
}

// Value returns the value stored under key.
func (f *Form) Value(key string) string { return f.values[key] }

// Values returns a copy of the collected values.
func (f *Form) Values() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Missing returns the value keys of required fields that are still empty,
// in field order.
func (f *Form) Missing() []string {
	var missing []string
	for _, field := range f.question.spec.Fields {
		if !field.Required {
			continue
		}
		for _, k := range field.ValueKeys() {
			if f.values[k] == "" {
				missing = append(missing, k)
			}
		}
	}
	return missing
}

// Invalid returns the value keys holding malformed dates or a range end
// before its start.
func (f *Form) Invalid() []string {
	var invalid []string
	for _, field := range f.question.spec.Fields {
		switch field.Type {
		case FieldDate:
			if v := f.values[field.Key]; v != "" && !validDate(v) {
				invalid = append(invalid, field.Key)
			}
		case FieldDateRange:
			start, end := f.values[StartKey(field.Key)], f.values[EndKey(field.Key)]
			if start != "" && !validDate(start) {
				invalid = append(invalid, StartKey(field.Key))
			}
			if end != "" && (!validDate(end) || (validDate(start) && end < start)) {
				invalid = append(invalid, EndKey(field.Key))
			}
		}
	}
	return invalid
}

// CanSubmit reports whether every required value is present and valid.
func (f *Form) CanSubmit() bool {
	return len(f.Missing()) == 0 && len(f.Invalid()) == 0
}

func (f *Form) field(key string) (Field, bool) {
	for _, field := range f.question.spec.Fields {
		if field.Key == key {
			return field, true
		}
	}
	return Field{}, false
}

func (f *Form) fieldForValue(key string) (Field, bool) {
	for _, field := range f.question.spec.Fields {
		for _, k := range field.ValueKeys() {
			if k == key {
				return field, true
			}
		}
	}
	return Field{}, false
}

func validDate(s string) bool {
	_, err := time.Parse(ISODate, s)
	return err == nil
}
