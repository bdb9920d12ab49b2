package datectx

import "time"

// ISOLayout is the machine date format.
const ISOLayout = "2006-01-02"

// Pick is one resolved date choice. End is empty for a single date.
type Pick struct {
	Label  string // "Kemarin"
	Detail string // "9 Juni 2025"
	Start  string // ISO date
	End    string // ISO date, range picks only
}

// IsRange reports whether the pick spans two dates.
func (p Pick) IsRange() bool { return p.End != "" }

// ISO formats t as YYYY-MM-DD.
func ISO(t time.Time) string { return t.Format(ISOLayout) }

// ParseISO parses a YYYY-MM-DD date in the local time zone.
func ParseISO(s string) (time.Time, error) {
	return time.ParseInLocation(ISOLayout, s, time.Local)
}

// QuickPicks returns the quick choices for now's local calendar date:
// today, yesterday and start of month for a single date; this week, this
// month and last month for a range.
func QuickPicks(loc *Locale, isRange bool, now time.Time) []Pick {
	today := midnight(now)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())

	if !isRange {
		yesterday := today.AddDate(0, 0, -1)
		return []Pick{
			singlePick(loc, loc.Labels.Today, today),
			singlePick(loc, loc.Labels.Yesterday, yesterday),
			singlePick(loc, loc.Labels.StartOfMonth, monthStart),
		}
	}

	lastMonthStart := monthStart.AddDate(0, -1, 0)
	lastMonthEnd := monthStart.AddDate(0, 0, -1)
	return []Pick{
		rangePick(loc, loc.Labels.ThisWeek, WeekStart(today), today),
		rangePick(loc, loc.Labels.ThisMonth, monthStart, today),
		rangePick(loc, loc.Labels.LastMonth, lastMonthStart, lastMonthEnd),
	}
}

// WeekStart returns the Monday of t's week. Sunday closes the week that
// started six days earlier.
func WeekStart(t time.Time) time.Time {
	d := midnight(t)
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return d.AddDate(0, 0, -offset)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func singlePick(loc *Locale, label string, d time.Time) Pick {
	return Pick{Label: label, Detail: loc.FormatDate(d), Start: ISO(d)}
}

func rangePick(loc *Locale, label string, start, end time.Time) Pick {
	return Pick{
		Label:  label,
		Detail: loc.FormatDate(start) + " - " + loc.FormatDate(end),
		Start:  ISO(start),
		End:    ISO(end),
	}
}
