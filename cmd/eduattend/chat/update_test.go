package chat

import (
	"errors"
	"strings"
	"testing"

	"eduattend/internal/artifact"
	"eduattend/internal/config"
	"eduattend/internal/datectx"
	"eduattend/internal/dispatch"
	"eduattend/internal/health"
	"eduattend/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// WINDOW SIZE MESSAGE TESTS
// =============================================================================

func TestUpdate_WindowSize(t *testing.T) {
	m, _ := NewTestModel(t)

	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.Equal(t, 100, m.width)
	assert.Equal(t, 30, m.height)
	assert.True(t, m.ready)
	assert.GreaterOrEqual(t, m.viewport.Height, 1)
}

func TestUpdate_WindowSize_Degenerate(t *testing.T) {
	m, _ := NewTestModel(t)

	assert.NotPanics(t, func() {
		m = update(t, m, tea.WindowSizeMsg{Width: 0, Height: 0})
		_ = m.View()
		m = update(t, m, tea.WindowSizeMsg{Width: -1, Height: -1})
		_ = m.View()
	})
}

// =============================================================================
// CHAT
// =============================================================================

func TestUpdate_SendStreamsReply(t *testing.T) {
	m, b := NewTestModel(t, withReply(func(text string) ([]string, error) {
		return []string{"Ada ", "3 siswa", "."}, nil
	}))

	m = typeAndSend(t, m, "siapa yang alfa?")

	assert.Equal(t, []string{"siapa yang alfa?"}, b.Sent())
	assert.Empty(t, m.textarea.Value())
	assert.Equal(t, session.StateIdle, m.Session().State())

	msgs := m.Session().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, "Ada 3 siswa.", msgs[1].Content)
	assert.Contains(t, m.View(), "EduAttend")
}

func TestUpdate_EmptyInputIsIgnored(t *testing.T) {
	m, b := NewTestModel(t)

	m = typeAndSend(t, m, "   ")

	assert.Empty(t, b.Sent())
	assert.Empty(t, m.Session().Messages())
}

func TestUpdate_StreamErrorBecomesMessage(t *testing.T) {
	m, b := NewTestModel(t, withReply(func(text string) ([]string, error) {
		if text == "lagi" {
			return []string{"oke"}, nil
		}
		return []string{"sebagian"}, errors.New("connection reset")
	}))

	m = typeAndSend(t, m, "rekap")

	msgs := m.Session().Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].Error)
	assert.Contains(t, msgs[1].Content, "sebagian")
	assert.Contains(t, msgs[1].Content, "connection reset")
	assert.Equal(t, session.StateErrored, m.Session().State())

	// The session stays usable.
	m = typeAndSend(t, m, "lagi")
	assert.Equal(t, []string{"rekap", "lagi"}, b.Sent())
	assert.Len(t, m.Session().Messages(), 4)
	assert.Equal(t, session.StateIdle, m.Session().State())
}

func TestUpdate_SendWhileStreamingIsRejected(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	m, b := NewTestModel(t, withReply(func(text string) ([]string, error) {
		<-release
		return nil, nil
	}))

	m = typeAndSend(t, m, "pertama")
	require.Equal(t, session.StateStreaming, m.Session().State())

	m = typeAndSend(t, m, "kedua")
	assert.Equal(t, []string{"pertama"}, b.Sent())
	assert.Equal(t, "kedua", m.textarea.Value(), "rejected input is kept")
	assert.True(t, m.statusIsError)
	assert.Contains(t, m.statusMessage, "still streaming")
}

func TestUpdate_NewSessionDropsStaleEvents(t *testing.T) {
	m, b := NewTestModel(t, withReply(func(text string) ([]string, error) {
		return []string{"lama"}, nil
	}))

	m.textarea.SetValue("halo")
	next, cmd := m.Update(key(tea.KeyEnter))
	m = next.(Model)

	var pending []streamEventMsg
	for _, msg := range execCmd(cmd) {
		if ev, ok := msg.(streamEventMsg); ok {
			pending = append(pending, ev)
		}
	}
	require.NotEmpty(t, pending)

	m = update(t, m, key(tea.KeyCtrlN))
	for _, ev := range pending {
		m = update(t, m, ev)
	}

	assert.Empty(t, m.Session().Messages())
	keys := b.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, "test-session", keys[0])
	assert.NotEqual(t, keys[0], keys[1])
	assert.Equal(t, keys[1], m.Session().Key())
}

// =============================================================================
// SUGGESTED QUESTIONS
// =============================================================================

func TestUpdate_DirectQuestionSendsImmediately(t *testing.T) {
	m, b := NewTestModel(t)

	m = selectItem(t, m, FocusQuestions, questionIndex(t, m, "Absen Hari Ini"))
	m = press(t, m, key(tea.KeyEnter))

	assert.Equal(t, ChatView, m.viewMode)
	assert.Equal(t, []string{"Siapa saja yang tidak hadir hari ini?"}, b.Sent())
	assert.Equal(t, FocusInput, m.focus)
}

func TestUpdate_TemplatedQuestionCollectsParameters(t *testing.T) {
	roster := []dispatch.Choice{
		{Value: "X RPL 1", Label: "X RPL 1 (RPL - Tingkat 10)"},
		{Value: "XI TKJ 2", Label: "XI TKJ 2 (TKJ - Tingkat 11)"},
	}
	m, b := NewTestModel(t, withRoster(roster, nil))

	m = selectItem(t, m, FocusQuestions, questionIndex(t, m, "Rekap Kelas"))
	m = press(t, m, key(tea.KeyEnter))

	require.Equal(t, FormView, m.viewMode)
	require.NotNil(t, m.form)
	assert.Empty(t, b.Sent(), "opening a form sends nothing")
	assert.Equal(t, roster, m.form.form.Choices("kelas"))
	assert.Equal(t, "2025-06-01", m.form.form.Value("periode_start"))
	assert.Equal(t, "2025-06-11", m.form.form.Value("periode_end"))

	// Required class still missing: Enter does nothing.
	m = press(t, m, key(tea.KeyEnter))
	assert.Equal(t, FormView, m.viewMode)
	assert.Empty(t, b.Sent())

	m = update(t, m, key(tea.KeyRight))
	assert.Equal(t, "X RPL 1", m.form.form.Value("kelas"))
	assert.Contains(t, m.View(), "Rekap Absensi Kelas")

	m = press(t, m, key(tea.KeyEnter))
	assert.Equal(t, ChatView, m.viewMode)
	assert.Nil(t, m.form)
	assert.Nil(t, m.dispatcher.Active())
	assert.Equal(t, []string{
		"Tampilkan rekap absensi kelas X RPL 1 dari tanggal 2025-06-01 sampai 2025-06-11",
	}, b.Sent())
}

func TestUpdate_FormTextFieldAndOptionalRemote(t *testing.T) {
	m, b := NewTestModel(t, withRoster([]dispatch.Choice{{Value: "X RPL 1", Label: "X RPL 1"}}, nil))

	m = selectItem(t, m, FocusQuestions, questionIndex(t, m, "Riwayat Siswa"))
	m = press(t, m, key(tea.KeyEnter))
	require.Equal(t, FormView, m.viewMode)

	m = update(t, m, runes("Budi"))
	assert.Equal(t, "Budi", m.form.form.Value("nama"))

	m = press(t, m, key(tea.KeyEnter))
	assert.Equal(t, []string{"Tampilkan riwayat absensi siswa bernama Budi bulan ini"}, b.Sent())
}

func TestUpdate_FormOptionFailureDisablesField(t *testing.T) {
	m, b := NewTestModel(t, withRoster(nil, errors.New("roster down")))

	m = selectItem(t, m, FocusQuestions, questionIndex(t, m, "Rekap Kelas"))
	m = press(t, m, key(tea.KeyEnter))
	require.Equal(t, FormView, m.viewMode)

	assert.True(t, m.form.form.Disabled("kelas"))
	assert.Contains(t, m.View(), "unavailable")
	assert.Contains(t, m.renderForm(), "failed to load options: roster down")

	// The choice cannot be made, so the required form cannot be sent.
	m = update(t, m, key(tea.KeyRight))
	m = press(t, m, key(tea.KeyEnter))
	assert.Equal(t, FormView, m.viewMode)
	assert.Empty(t, b.Sent())

	m = update(t, m, key(tea.KeyEsc))
	assert.Equal(t, ChatView, m.viewMode)
	assert.Nil(t, m.dispatcher.Active())
}

// =============================================================================
// DATE CONTEXT
// =============================================================================

func TestUpdate_QuickDatePickDoesNotStack(t *testing.T) {
	m, b := NewTestModel(t, withReply(func(text string) ([]string, error) {
		return []string{"Untuk tanggal berapa?"}, nil
	}))

	m = typeAndSend(t, m, "tampilkan siswa alfa")
	require.True(t, m.showDates())

	yesterday := 1
	m = selectItem(t, m, FocusDates, yesterday)
	m = press(t, m, key(tea.KeyEnter))

	m = selectItem(t, m, FocusDates, yesterday)
	m = press(t, m, key(tea.KeyEnter))

	want := []string{
		"tampilkan siswa alfa",
		"tampilkan siswa alfa pada tanggal 2025-06-10",
		"tampilkan siswa alfa pada tanggal 2025-06-10",
	}
	if diff := cmp.Diff(want, b.Sent()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdate_RangePick(t *testing.T) {
	m, b := NewTestModel(t, withReply(func(text string) ([]string, error) {
		return []string{"Dari tanggal berapa sampai tanggal berapa?"}, nil
	}))

	m = typeAndSend(t, m, "rekap kelas X RPL 1")
	require.True(t, m.derived.dates.IsRange)

	thisWeek := 0
	m = selectItem(t, m, FocusDates, thisWeek)
	m = press(t, m, key(tea.KeyEnter))

	sent := b.Sent()
	assert.Equal(t, "rekap kelas X RPL 1 dari tanggal 2025-06-09 sampai 2025-06-11", sent[len(sent)-1])
}

func TestUpdate_DatesHiddenWithoutDateContext(t *testing.T) {
	m, _ := NewTestModel(t)

	m = typeAndSend(t, m, "halo")

	assert.False(t, m.showDates())
	assert.NotContains(t, m.panels(), FocusDates)
}

func TestUpdate_CustomDatePicker(t *testing.T) {
	m, b := NewTestModel(t, withReply(func(text string) ([]string, error) {
		return []string{"Tanggal berapa?"}, nil
	}))
	m = typeAndSend(t, m, "siapa yang izin")

	custom := len(m.quickPicks())
	m = selectItem(t, m, FocusDates, custom)
	m = press(t, m, key(tea.KeyEnter))
	require.Equal(t, CustomView, m.viewMode)
	assert.Equal(t, "2025-06-11", m.custom.picker.Start)

	m = update(t, m, key(tea.KeyBackspace))
	assert.Equal(t, "2025-06-1", m.custom.picker.Start)
	m = press(t, m, key(tea.KeyEnter))
	assert.Equal(t, CustomView, m.viewMode, "invalid date cannot be sent")

	m = update(t, m, runes("0"))
	m = press(t, m, key(tea.KeyEnter))
	assert.Equal(t, ChatView, m.viewMode)

	sent := b.Sent()
	assert.Equal(t, "siapa yang izin pada tanggal 2025-06-10", sent[len(sent)-1])
}

// =============================================================================
// ARTIFACTS
// =============================================================================

func TestUpdate_ArtifactDownload(t *testing.T) {
	m, b := NewTestModel(t, withReply(func(text string) ([]string, error) {
		return []string{"File siap: output/rekap_X_RPL_1.pdf"}, nil
	}))

	m = typeAndSend(t, m, "buat file rekap")
	require.Equal(t, []string{"rekap_X_RPL_1.pdf"}, m.derived.artifacts)
	assert.Contains(t, m.View(), "rekap_X_RPL_1.pdf")

	m = selectItem(t, m, FocusArtifacts, 0)
	m = press(t, m, key(tea.KeyEnter))

	assert.Equal(t, []string{"rekap_X_RPL_1.pdf"}, b.downloads)
	assert.Empty(t, m.downloading)
	assert.False(t, m.statusIsError)
	assert.Contains(t, m.statusMessage, "Saved /tmp/downloads/rekap_X_RPL_1.pdf")
}

func TestUpdate_ArtifactFallbackStatus(t *testing.T) {
	m, _ := NewTestModel(t)

	m = update(t, m, downloadDoneMsg{filename: "a.pdf", result: resultFallback("a.pdf")})
	assert.Contains(t, m.statusMessage, "Opened a.pdf in the browser")

	m = update(t, m, downloadDoneMsg{filename: "b.pdf", err: errors.New("offline")})
	assert.True(t, m.statusIsError)
	assert.Contains(t, m.statusMessage, "offline")
}

// =============================================================================
// HEALTH
// =============================================================================

func TestUpdate_HealthProbeCycle(t *testing.T) {
	m, _ := NewTestModel(t, withProbes(true))
	assert.Equal(t, health.StateChecking, m.monitor.Status().State)

	next, cmd := m.Update(healthTickMsg{gen: m.healthGen})
	m = next.(Model)
	results := execCmd(cmd)
	require.Len(t, results, 1)

	gen := m.healthGen
	next, cmd = m.Update(results[0])
	m = next.(Model)
	assert.NotNil(t, cmd, "an applied result schedules the next probe")
	assert.Equal(t, gen+1, m.healthGen)
	assert.Equal(t, health.StateOnline, m.monitor.Status().State)
	assert.Equal(t, testNow, m.monitor.Status().LastChecked)
	assert.Contains(t, m.View(), "Online")
}

func TestUpdate_HealthStaleResultIgnored(t *testing.T) {
	m, _ := NewTestModel(t, withProbes(true, false))

	next, cmd := m.Update(healthTickMsg{gen: m.healthGen})
	m = next.(Model)
	first := execCmd(cmd)
	require.Len(t, first, 1)

	next, cmd = m.Update(key(tea.KeyCtrlR))
	m = next.(Model)
	second := execCmd(cmd)
	require.Len(t, second, 1)

	m = update(t, m, second[0])
	m = update(t, m, first[0])

	assert.Equal(t, health.StateOffline, m.monitor.Status().State)
	assert.Equal(t, m.cfg.GetRetryInterval(), m.monitor.Interval())
	assert.Contains(t, m.View(), "Offline")
}

func TestUpdate_HealthTickSupersedesSlowProbe(t *testing.T) {
	m, _ := NewTestModel(t, withProbes(true, false))

	// The first probe is still pending when the next tick fires.
	next, slow := m.Update(healthTickMsg{gen: m.healthGen})
	m = next.(Model)
	require.True(t, m.monitor.InFlight())

	next, fresh := m.Update(healthTickMsg{gen: m.healthGen})
	m = next.(Model)
	require.NotNil(t, fresh, "a tick probes even while a probe is in flight")

	slowResults := execCmd(slow)
	require.Len(t, slowResults, 1)
	freshResults := execCmd(fresh)
	require.Len(t, freshResults, 1)

	m = update(t, m, freshResults[0])
	m = update(t, m, slowResults[0])

	assert.Equal(t, health.StateOffline, m.monitor.Status().State, "the late slow probe must not win")
	assert.False(t, m.monitor.InFlight())
}

func TestUpdate_HealthRecheckReportsResult(t *testing.T) {
	m, _ := NewTestModel(t, withProbes(false))

	next, cmd := m.Update(key(tea.KeyCtrlR))
	m = next.(Model)
	assert.Equal(t, "Checking connection...", m.statusMessage)

	results := execCmd(cmd)
	require.Len(t, results, 1)
	m = update(t, m, results[0])

	assert.Equal(t, "Attendance agent is offline", m.statusMessage)
	assert.True(t, m.statusIsError)
	assert.NotContains(t, m.View(), "Checking connection")

	// Scheduled probes leave the status line alone.
	m.setStatus(false, "Saved rekap.pdf")
	next, cmd = m.Update(healthTickMsg{gen: m.healthGen})
	m = next.(Model)
	results = execCmd(cmd)
	require.Len(t, results, 1)
	m = update(t, m, results[0])
	assert.Equal(t, "Saved rekap.pdf", m.statusMessage)
}

func TestUpdate_HealthOldTickIgnored(t *testing.T) {
	m, _ := NewTestModel(t)

	old := m.healthGen
	next, _ := m.Update(key(tea.KeyCtrlR))
	m = next.(Model)

	_, cmd := m.Update(healthTickMsg{gen: old})
	assert.Nil(t, cmd)
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

func TestUpdate_ConfigReload(t *testing.T) {
	m, _ := NewTestModel(t)
	builtin := len(m.questions)

	cfg := config.DefaultConfig()
	cfg.Heuristics.Locale = "en-US"
	cfg.Questions = []config.QuestionConfig{{Label: "Cek Izin", Text: "Siapa yang izin hari ini?"}}

	m = update(t, m, configReloadMsg{cfg: cfg})
	assert.Same(t, datectx.English, m.locale)
	assert.Len(t, m.questions, builtin+1)
	assert.False(t, m.statusIsError)

	m = update(t, m, configReloadMsg{err: errors.New("yaml: bad indent")})
	assert.True(t, m.statusIsError)
	assert.Same(t, datectx.English, m.locale, "a failed reload keeps the previous settings")
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{App: config.DefaultConfig()})
	assert.Error(t, err)
}

func TestView_Panels(t *testing.T) {
	m, _ := NewTestModel(t)
	view := m.View()

	assert.Contains(t, view, "Suggested")
	assert.True(t, strings.Contains(view, "Absen Hari Ini"))
	assert.Contains(t, view, "Checking")
}

func resultFallback(name string) artifact.Result {
	return artifact.Result{
		Filename: name,
		URL:      "http://localhost:8000/api/download/" + name,
		Fallback: true,
	}
}
