package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"eduattend/internal/artifact"
	"eduattend/internal/config"
	"eduattend/internal/dispatch"
	"eduattend/internal/health"
	"eduattend/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

// testBackend records what the model sent and scripts what it gets back.
type testBackend struct {
	mu sync.Mutex

	keys      []string // session keys passed to the transport factory
	sent      []string // texts streamed
	downloads []string

	// reply scripts the assistant's reply to a text.
	reply func(text string) ([]string, error)
	// probes are returned by the prober in order; the last repeats.
	probes []bool
	probed int

	roster    []dispatch.Choice
	rosterErr error
}

func (b *testBackend) factory(key string) session.Transport {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	return &fakeTransport{backend: b}
}

func (b *testBackend) Sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent...)
}

func (b *testBackend) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.keys...)
}

func (b *testBackend) Health(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.probes) == 0 {
		return true, nil
	}
	i := b.probed
	if i >= len(b.probes) {
		i = len(b.probes) - 1
	}
	b.probed++
	return b.probes[i], nil
}

func (b *testBackend) Options(ctx context.Context) ([]dispatch.Choice, error) {
	return b.roster, b.rosterErr
}

func (b *testBackend) Download(ctx context.Context, filename string) (artifact.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloads = append(b.downloads, filename)
	return artifact.Result{Filename: filename, Path: "/tmp/downloads/" + filename, Bytes: 42}, nil
}

type fakeTransport struct {
	backend *testBackend
}

func (f *fakeTransport) Stream(ctx context.Context, text string) (<-chan string, <-chan error) {
	tokens := make(chan string, 100)
	errs := make(chan error, 1)

	f.backend.mu.Lock()
	f.backend.sent = append(f.backend.sent, text)
	reply := f.backend.reply
	f.backend.mu.Unlock()

	go func() {
		defer close(tokens)
		defer close(errs)
		if reply == nil {
			tokens <- "Siap."
			return
		}
		toks, err := reply(text)
		for _, tok := range toks {
			select {
			case tokens <- tok:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err != nil {
			errs <- err
		}
	}()
	return tokens, errs
}

// =============================================================================
// FIXTURES
// =============================================================================

// testNow is Wednesday 11 June 2025.
var testNow = time.Date(2025, time.June, 11, 9, 30, 0, 0, time.Local)

// TestModelOption configures NewTestModel.
type TestModelOption func(*Config, *testBackend)

func withReply(reply func(text string) ([]string, error)) TestModelOption {
	return func(_ *Config, b *testBackend) { b.reply = reply }
}

func withProbes(results ...bool) TestModelOption {
	return func(_ *Config, b *testBackend) { b.probes = results }
}

func withRoster(choices []dispatch.Choice, err error) TestModelOption {
	return func(_ *Config, b *testBackend) {
		b.roster = choices
		b.rosterErr = err
	}
}

// NewTestModel creates a sized model wired to a fake backend.
func NewTestModel(t *testing.T, opts ...TestModelOption) (Model, *testBackend) {
	t.Helper()

	b := &testBackend{}
	cfg := Config{
		App:        config.DefaultConfig(),
		SessionKey: "test-session",
		Theme:      "light",
		Now:        func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&cfg, b)
	}
	cfg.Transports = b.factory
	cfg.Prober = health.ProberFunc(b.Health)
	cfg.Options = dispatch.OptionSourceFunc(b.Options)
	cfg.Downloader = b

	m, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)

	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40}), b
}

// =============================================================================
// DRIVERS
// =============================================================================

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// press sends a key and settles the I/O it starts.
func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	return settle(t, next.(Model), cmd)
}

// typeAndSend types text into the input and presses Enter.
func typeAndSend(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.textarea.SetValue(text)
	return press(t, m, key(tea.KeyEnter))
}

// settle feeds the I/O results produced by cmd back into the model until
// none are left. Timer-driven messages are dropped.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := execCmd(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		switch msg.(type) {
		case streamEventMsg, optionsLoadedMsg, downloadDoneMsg:
		default:
			continue
		}
		next, c := m.Update(msg)
		m = next.(Model)
		queue = append(queue, execCmd(c)...)
	}
	return m
}

// execCmd runs cmd and the members of a batch concurrently. Commands still
// blocked after a short wait, like tickers, are abandoned.
func execCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-ch:
	case <-time.After(250 * time.Millisecond):
		return nil
	}

	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	}

	results := make([][]tea.Msg, len(batch))
	var wg sync.WaitGroup
	for i, c := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = execCmd(c)
		}()
	}
	wg.Wait()

	var out []tea.Msg
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// focusPanel tabs until f has focus.
func focusPanel(t *testing.T, m Model, f Focus) Model {
	t.Helper()
	for i := 0; i < 5 && m.focus != f; i++ {
		m = update(t, m, key(tea.KeyTab))
	}
	require.Equal(t, f, m.focus, "panel %s not reachable", f)
	return m
}

// selectItem focuses panel f and moves the cursor to idx.
func selectItem(t *testing.T, m Model, f Focus, idx int) Model {
	t.Helper()
	m = focusPanel(t, m, f)
	require.Less(t, idx, m.panelLen())
	for m.cursor != idx {
		m = update(t, m, key(tea.KeyRight))
	}
	return m
}

func questionIndex(t *testing.T, m Model, label string) int {
	t.Helper()
	for i, q := range m.questions {
		if q.Label() == label {
			return i
		}
	}
	t.Fatalf("question %q not in catalog", label)
	return -1
}
