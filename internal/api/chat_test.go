package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains a transport stream.
func collect(t *testing.T, tokens <-chan string, errs <-chan error) (string, error) {
	t.Helper()
	var sb strings.Builder
	timeout := time.After(5 * time.Second)
	for tokens != nil {
		select {
		case tok, ok := <-tokens:
			if !ok {
				tokens = nil
				continue
			}
			sb.WriteString(tok)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
	select {
	case err := <-errs:
		return sb.String(), err
	case <-timeout:
		t.Fatal("error channel not closed")
	}
	return sb.String(), nil
}

func TestHTTPChat_StreamsChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "sess-1", r.Header.Get(SessionHeader))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, chatRequest{ID: "sess-1", Text: "Siapa yang alfa?"}, req)

		flusher := w.(http.Flusher)
		for _, part := range []string{"Ada ", "dua ", "siswa."} {
			_, _ = w.Write([]byte(part))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	chat := newTestClient(t, srv).Chat("sess-1")

	tok1, errc1 := chat.Stream(context.Background(), "Siapa yang alfa?")
	text, err := collect(t, tok1, errc1)
	require.NoError(t, err)
	assert.Equal(t, "Ada dua siswa.", text)
}

func TestHTTPChat_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tok2, errc2 := newTestClient(t, srv).Chat("k").Stream(context.Background(), "hi")
	text, err := collect(t, tok2, errc2)
	assert.Empty(t, text)
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusInternalServerError, serr.Code)
	assert.Equal(t, "agent crashed", serr.Body)
}

func TestHTTPChat_CancelEndsStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	tokens, errs := newTestClient(t, srv).Chat("k").Stream(ctx, "hi")

	select {
	case tok := <-tokens:
		assert.Equal(t, "partial", tok)
	case <-time.After(5 * time.Second):
		t.Fatal("no first chunk")
	}
	cancel()

	_, err := collect(t, tokens, errs)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadChunks_KeepsRunesWhole(t *testing.T) {
	const msg = "Kehadiran naik 5% — rata-rata 93,5% ✓"
	var chunks []string
	err := readChunks(iotest.OneByteReader(strings.NewReader(msg)), func(s string) bool {
		chunks = append(chunks, s)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, msg, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %q splits a rune", c)
	}
}

func TestReadChunks_StopsWhenEmitDeclines(t *testing.T) {
	calls := 0
	err := readChunks(iotest.OneByteReader(strings.NewReader("abc")), func(string) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
