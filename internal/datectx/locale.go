// Package datectx decides whether the conversation is about dates, proposes
// date picks and composes the follow-up message for a chosen date or range.
//
// Everything here is a pure function of the message log and a clock.
package datectx

import (
	"fmt"
	"regexp"
	"time"

	"golang.org/x/text/language"
)

// Labels are the user-facing strings of the date picker.
type Labels struct {
	Header       string
	Today        string
	Yesterday    string
	StartOfMonth string
	ThisWeek     string
	ThisMonth    string
	LastMonth    string
	Custom       string
	Start        string
	End          string
}

// Locale holds the language-specific keyword lists and phrasing.
type Locale struct {
	Tag language.Tag

	DateKeywords  []string
	RangePatterns []string
	Labels        Labels

	onDate   string // " pada tanggal D"
	fromDate string // " dari tanggal D1 ..."
	toDate   string // "... sampai D2"
	fallback string // subject used when there is no prior question
	months   [12]string
	suffix   *regexp.Regexp
}

// Indonesian is the default locale.
var Indonesian = &Locale{
	Tag: language.Indonesian,
	DateKeywords: []string{
		"tanggal", "bulan", "hari", "kapan", "periode",
		"dari tanggal", "sampai tanggal", "mulai", "hingga",
		"rentang waktu", "minggu", "semester", "tahun",
		"antara tanggal", "sejak", "berapa lama",
		"rekap", "laporan", "absensi", "kehadiran",
		"start_date", "end_date", "date",
	},
	RangePatterns: []string{
		"dari tanggal", "sampai tanggal", "rentang", "periode",
		"mulai.*hingga", "antara tanggal", "start.*end",
		"dari.*sampai", "range",
	},
	Labels: Labels{
		Header:       "Pilih Tanggal",
		Today:        "Hari Ini",
		Yesterday:    "Kemarin",
		StartOfMonth: "Awal Bulan",
		ThisWeek:     "Minggu Ini",
		ThisMonth:    "Bulan Ini",
		LastMonth:    "Bulan Lalu",
		Custom:       "Pilih Tanggal Lain",
		Start:        "Mulai",
		End:          "Sampai",
	},
	onDate:   "pada tanggal",
	fromDate: "dari tanggal",
	toDate:   "sampai",
	fallback: "Tampilkan data absensi",
	months: [12]string{
		"Januari", "Februari", "Maret", "April", "Mei", "Juni",
		"Juli", "Agustus", "September", "Oktober", "November", "Desember",
	},
	suffix: regexp.MustCompile(`(?i)\s+(pada tanggal|dari tanggal)\s+\d{4}-\d{2}-\d{2}(\s+sampai\s+\d{4}-\d{2}-\d{2})?`),
}

// English phrasing and keywords.
var English = &Locale{
	Tag: language.English,
	DateKeywords: []string{
		"date", "day", "month", "week", "year", "semester",
		"period", "when", "since", "between", "how long",
		"from date", "to date", "range",
		"report", "recap", "attendance", "absence",
		"start_date", "end_date",
	},
	RangePatterns: []string{
		"from date", "to date", "range", "period",
		"between", "from.*to", "start.*end", "since.*until",
	},
	Labels: Labels{
		Header:       "Pick a Date",
		Today:        "Today",
		Yesterday:    "Yesterday",
		StartOfMonth: "Start of Month",
		ThisWeek:     "This Week",
		ThisMonth:    "This Month",
		LastMonth:    "Last Month",
		Custom:       "Other Date",
		Start:        "From",
		End:          "To",
	},
	onDate:   "on date",
	fromDate: "from date",
	toDate:   "to",
	fallback: "Show attendance data",
	months: [12]string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	},
	suffix: regexp.MustCompile(`(?i)\s+(on date|from date)\s+\d{4}-\d{2}-\d{2}(\s+to\s+\d{4}-\d{2}-\d{2})?`),
}

var (
	locales       = []*Locale{Indonesian, English}
	localeMatcher = language.NewMatcher([]language.Tag{language.Indonesian, language.English})
)

// LocaleFor picks the closest supported locale for a BCP 47 tag such as
// "id", "id-ID" or "en-US". Unknown or empty tags resolve to Indonesian.
func LocaleFor(tag string) *Locale {
	if tag == "" {
		return Indonesian
	}
	_, idx := language.MatchStrings(localeMatcher, tag)
	if idx < 0 || idx >= len(locales) {
		return Indonesian
	}
	return locales[idx]
}

// FormatDate renders t for display, e.g. "9 Juni 2025".
func (l *Locale) FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), l.months[t.Month()-1], t.Year())
}

// StripSuffix removes date suffixes previously appended by the composer.
func (l *Locale) StripSuffix(text string) string {
	return l.suffix.ReplaceAllString(text, "")
}

func (l *Locale) single(subject, date string) string {
	return fmt.Sprintf("%s %s %s", subject, l.onDate, date)
}

func (l *Locale) span(subject, start, end string) string {
	return fmt.Sprintf("%s %s %s %s %s", subject, l.fromDate, start, l.toDate, end)
}
