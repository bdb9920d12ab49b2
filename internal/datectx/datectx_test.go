package datectx

import (
	"testing"
	"time"

	"eduattend/internal/config"
	"eduattend/internal/session"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(role session.Role, text string) session.Message {
	return session.Message{Role: role, Content: text}
}

// =============================================================================
// MATCHER
// =============================================================================

func TestNewMatcher(t *testing.T) {
	m := NewMatcher("mulai.*hingga")
	assert.True(t, m.Matches("Data MULAI Senin HINGGA Jumat"))
	assert.False(t, m.Matches("hingga mulai"))

	// Unbalanced group cannot compile: degrade to substring containment.
	bad := NewMatcher("dari (tanggal")
	assert.Contains(t, bad.String(), "substring")
	assert.True(t, bad.Matches("rekap DARI (TANGGAL 1"))
	assert.False(t, bad.Matches("dari tanggal 1"))
}

func TestNewMatchers_SkipsBlanks(t *testing.T) {
	assert.Len(t, NewMatchers([]string{"a", " ", "", "b"}), 2)
}

// =============================================================================
// CLASSIFIER
// =============================================================================

func TestClassify(t *testing.T) {
	en := NewClassifier(English.DateKeywords, English.RangePatterns)
	id := NewClassifier(Indonesian.DateKeywords, Indonesian.RangePatterns)

	tests := []struct {
		name string
		c    *Classifier
		text string
		want Context
	}{
		{"attendance report", en, "Here is the attendance report you asked for.", Context{Show: true}},
		{"attendance report with range", en, "The attendance report from date 2025-06-01 to date 2025-06-09 is ready.", Context{Show: true, IsRange: true}},
		{"no date words", en, "Hello! How can I help?", Context{}},
		{"indonesian single", id, "Untuk tanggal berapa datanya?", Context{Show: true}},
		{"indonesian range", id, "Sebutkan periode yang diinginkan, dari tanggal berapa sampai kapan?", Context{Show: true, IsRange: true}},
		{"case-insensitive keywords", id, "REKAP KEHADIRAN", Context{Show: true}},
		{"empty", id, "", Context{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.ClassifyText(tt.text))
		})
	}
}

func TestClassify_UsesOnlyLastAssistantMessage(t *testing.T) {
	c := NewClassifier(English.DateKeywords, English.RangePatterns)
	log := []session.Message{
		msg(session.RoleUser, "attendance report from date x to date y"),
		msg(session.RoleAssistant, "Which period do you want?"),
		msg(session.RoleUser, "yesterday"),
		msg(session.RoleAssistant, "Done. Anything else?"),
	}
	assert.Equal(t, Context{}, c.Classify(log))

	assert.Equal(t, Context{}, c.Classify(nil))
	assert.Equal(t, Context{}, c.Classify(log[:1]), "user messages alone never trigger")
	assert.Equal(t, Context{Show: true, IsRange: true}, c.Classify(log[:2]))
}

func TestClassify_MalformedPatternDegrades(t *testing.T) {
	c := NewClassifier([]string{"laporan"}, []string{"(antara"})
	assert.Equal(t, Context{Show: true, IsRange: true}, c.ClassifyText("laporan (antara dua tanggal)"))
	assert.Equal(t, Context{Show: true}, c.ClassifyText("laporan antara dua tanggal"))
}

func TestFromConfig(t *testing.T) {
	c, loc := FromConfig(config.HeuristicsConfig{Locale: "en-US"})
	assert.Same(t, English, loc)
	assert.True(t, c.ClassifyText("monthly report").Show)

	c, loc = FromConfig(config.HeuristicsConfig{Locale: "fr", DateKeywords: []string{"jadwal"}})
	assert.Same(t, Indonesian, loc)
	assert.True(t, c.ClassifyText("jadwal ujian").Show)
	assert.False(t, c.ClassifyText("rekap bulan ini").Show, "configured keywords replace built-ins")
}

func TestLocaleFor(t *testing.T) {
	assert.Same(t, Indonesian, LocaleFor(""))
	assert.Same(t, Indonesian, LocaleFor("id"))
	assert.Same(t, Indonesian, LocaleFor("id-ID"))
	assert.Same(t, English, LocaleFor("en"))
	assert.Same(t, English, LocaleFor("en-GB"))
	assert.Same(t, Indonesian, LocaleFor("not a tag"))
}

// =============================================================================
// QUICK PICKS
// =============================================================================

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 15, 4, 5, 0, time.Local)
}

func TestQuickPicks_Single(t *testing.T) {
	got := QuickPicks(Indonesian, false, day(2025, time.June, 10))
	want := []Pick{
		{Label: "Hari Ini", Detail: "10 Juni 2025", Start: "2025-06-10"},
		{Label: "Kemarin", Detail: "9 Juni 2025", Start: "2025-06-09"},
		{Label: "Awal Bulan", Detail: "1 Juni 2025", Start: "2025-06-01"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("QuickPicks mismatch (-want +got):\n%s", diff)
	}
}

func TestQuickPicks_Range(t *testing.T) {
	// Tuesday 10 June 2025.
	got := QuickPicks(English, true, day(2025, time.June, 10))
	want := []Pick{
		{Label: "This Week", Detail: "9 June 2025 - 10 June 2025", Start: "2025-06-09", End: "2025-06-10"},
		{Label: "This Month", Detail: "1 June 2025 - 10 June 2025", Start: "2025-06-01", End: "2025-06-10"},
		{Label: "Last Month", Detail: "1 May 2025 - 31 May 2025", Start: "2025-05-01", End: "2025-05-31"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("QuickPicks mismatch (-want +got):\n%s", diff)
	}
}

func TestQuickPicks_YearBoundary(t *testing.T) {
	got := QuickPicks(Indonesian, true, day(2026, time.January, 1))
	require.Len(t, got, 3)
	assert.Equal(t, "2025-12-01", got[2].Start)
	assert.Equal(t, "2025-12-31", got[2].End)

	single := QuickPicks(Indonesian, false, day(2026, time.January, 1))
	assert.Equal(t, "2025-12-31", single[1].Start)
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{day(2025, time.June, 9), "2025-06-09"},  // Monday
		{day(2025, time.June, 11), "2025-06-09"}, // Wednesday
		{day(2025, time.June, 15), "2025-06-09"}, // Sunday closes the week
		{day(2025, time.June, 1), "2025-05-26"},  // Sunday across a month
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ISO(WeekStart(tt.in)), "week of %s", ISO(tt.in))
	}
}

// =============================================================================
// CUSTOM PICKER
// =============================================================================

func TestCustomPicker_CanSubmit(t *testing.T) {
	tests := []struct {
		name string
		p    CustomPicker
		want bool
	}{
		{"empty", CustomPicker{}, false},
		{"single", CustomPicker{Start: "2025-06-09"}, true},
		{"single invalid", CustomPicker{Start: "09/06/2025"}, false},
		{"range missing end", CustomPicker{IsRange: true, Start: "2025-06-01"}, false},
		{"range ok", CustomPicker{IsRange: true, Start: "2025-06-01", End: "2025-06-09"}, true},
		{"range same day", CustomPicker{IsRange: true, Start: "2025-06-09", End: "2025-06-09"}, true},
		{"range end before start", CustomPicker{IsRange: true, Start: "2025-06-09", End: "2025-06-01"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.CanSubmit())
		})
	}
}

func TestCustomPicker_Pick(t *testing.T) {
	p := CustomPicker{IsRange: true, Start: "2025-06-01", End: "2025-06-09"}
	assert.Equal(t, "2025-06-01", p.MinEnd())

	got, err := p.Pick(Indonesian)
	require.NoError(t, err)
	assert.Equal(t, Pick{
		Label:  "1 Juni 2025 - 9 Juni 2025",
		Detail: "1 Juni 2025 - 9 Juni 2025",
		Start:  "2025-06-01",
		End:    "2025-06-09",
	}, got)

	_, err = CustomPicker{IsRange: true, Start: "2025-06-01"}.Pick(Indonesian)
	assert.ErrorIs(t, err, ErrIncompletePick)
}

// =============================================================================
// COMPOSER
// =============================================================================

func TestComposer_NoSuffixStacking(t *testing.T) {
	c := NewComposer(English)
	log := []session.Message{
		msg(session.RoleUser, "show today's absentees"),
		msg(session.RoleAssistant, "For which date?"),
	}

	first := c.Single(log, "2025-06-09")
	assert.Equal(t, "show today's absentees on date 2025-06-09", first)

	// The composed text becomes the next user message; picking again must
	// not stack a second suffix.
	log = append(log, msg(session.RoleUser, first), msg(session.RoleAssistant, "Which date?"))
	second := c.Single(log, "2025-06-09")
	assert.Equal(t, first, second)

	ranged := c.Range(log, "2025-06-01", "2025-06-09")
	assert.Equal(t, "show today's absentees from date 2025-06-01 to 2025-06-09", ranged)
}

func TestComposer_Indonesian(t *testing.T) {
	c := NewComposer(nil)
	log := []session.Message{
		msg(session.RoleUser, "Rekap kehadiran kelas X IPA 1 dari tanggal 2025-05-01 sampai 2025-05-31"),
		msg(session.RoleAssistant, "Periode mana?"),
	}
	assert.Equal(t, "Rekap kehadiran kelas X IPA 1", c.Question(log))
	assert.Equal(t,
		"Rekap kehadiran kelas X IPA 1 dari tanggal 2025-06-01 sampai 2025-06-09",
		c.Compose(log, Pick{Start: "2025-06-01", End: "2025-06-09"}))
	assert.Equal(t,
		"Rekap kehadiran kelas X IPA 1 pada tanggal 2025-06-09",
		c.Compose(log, Pick{Start: "2025-06-09"}))
}

func TestComposer_Fallback(t *testing.T) {
	log := []session.Message{msg(session.RoleAssistant, "Selamat datang! Tanggal berapa?")}
	assert.Equal(t, "Tampilkan data absensi pada tanggal 2025-06-09", NewComposer(Indonesian).Single(log, "2025-06-09"))
	assert.Equal(t, "Show attendance data from date 2025-06-01 to 2025-06-09", NewComposer(English).Range(nil, "2025-06-01", "2025-06-09"))
}

func TestComposer_SkipsEmptyUserMessages(t *testing.T) {
	log := []session.Message{
		msg(session.RoleUser, "siapa yang izin"),
		{Role: session.RoleUser, Parts: []session.Part{{Type: "image", Text: "x"}}},
	}
	assert.Equal(t, "siapa yang izin", NewComposer(Indonesian).Question(log))
}
