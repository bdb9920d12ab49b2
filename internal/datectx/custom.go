package datectx

import (
	"errors"
	"fmt"
)

// ErrIncompletePick is returned when a custom pick cannot be submitted yet.
var ErrIncompletePick = errors.New("datectx: custom date selection incomplete")

// CustomPicker holds the free-form date inputs. The end input is only shown
// for ranges and its minimum bound is the start value.
type CustomPicker struct {
	IsRange bool
	Start   string
	End     string
}

// MinEnd is the lowest value accepted for End.
func (p CustomPicker) MinEnd() string { return p.Start }

// CanSubmit reports whether every required input holds a valid date and,
// for a range, End is not before Start.
func (p CustomPicker) CanSubmit() bool {
	start, err := ParseISO(p.Start)
	if err != nil {
		return false
	}
	if !p.IsRange {
		return true
	}
	end, err := ParseISO(p.End)
	if err != nil {
		return false
	}
	return !end.Before(start)
}

// Pick resolves the inputs into a Pick labelled with the readable dates.
func (p CustomPicker) Pick(loc *Locale) (Pick, error) {
	if !p.CanSubmit() {
		return Pick{}, fmt.Errorf("%w: start=%q end=%q", ErrIncompletePick, p.Start, p.End)
	}
	start, _ := ParseISO(p.Start)
	if !p.IsRange {
		d := loc.FormatDate(start)
		return Pick{Label: d, Detail: d, Start: p.Start}, nil
	}
	end, _ := ParseISO(p.End)
	label := loc.FormatDate(start) + " - " + loc.FormatDate(end)
	return Pick{Label: label, Detail: label, Start: p.Start, End: p.End}, nil
}
