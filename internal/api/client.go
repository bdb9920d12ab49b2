// Package api talks to the attendance-analytics backend: the chat stream,
// the liveness probe, the class roster and artifact downloads.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eduattend/internal/config"
	"eduattend/internal/logging"

	"github.com/cenkalti/backoff/v4"
)

// maxRetries bounds retries of idempotent GETs. Health probes and chat
// streams are never retried.
const maxRetries = 2

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// Client is a thin HTTP client for the backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	probeTimeout time.Duration

	// newBackOff is swapped in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

// NewClient builds a client from the server section of cfg.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.Server.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: cfg.GetRequestTimeout()},
		streamClient: &http.Client{}, // streams end only by completion or cancellation
		probeTimeout: cfg.GetProbeTimeout(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
	}
}

// BaseURL returns the normalized backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// DownloadURL returns the download endpoint for filename.
func (c *Client) DownloadURL(filename string) string {
	return c.baseURL + "/api/download/" + url.PathEscape(filename)
}

// =============================================================================
// HEALTH
// =============================================================================

type healthResponse struct {
	Status string `json:"status"`
}

// Health probes the backend root. Any network error, non-success status or
// a body whose status is not "online" counts as offline; the error explains
// why.
func (c *Client) Health(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &StatusError{Code: resp.StatusCode}
	}

	var hr healthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&hr); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}
	if !strings.EqualFold(hr.Status, "online") {
		return false, fmt.Errorf("backend reports status %q", hr.Status)
	}
	return true, nil
}

// =============================================================================
// OPTIONS
// =============================================================================

// ListClasses fetches the class roster used by enumerated-remote fields.
func (c *Client) ListClasses(ctx context.Context) ([]Option, error) {
	var opts []Option
	err := c.getWithRetry(ctx, "/api/kelas", func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(&opts); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode roster: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	logging.TransportDebug("fetched %d classes", len(opts))
	return opts, nil
}

// =============================================================================
// DOWNLOAD
// =============================================================================

// Download streams the artifact named filename into w.
func (c *Client) Download(ctx context.Context, filename string, w io.Writer) (int64, error) {
	var n int64
	path := "/api/download/" + url.PathEscape(filename)
	err := c.getWithRetry(ctx, path, func(body io.Reader) error {
		var err error
		n, err = io.Copy(w, body)
		if err != nil {
			// A partial write cannot be replayed into w.
			return backoff.Permanent(err)
		}
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", filename, err)
	}
	return n, nil
}

// getWithRetry issues a GET and hands a successful body to handle. Network
// errors and 5xx responses are retried; 4xx responses are not.
func (c *Client) getWithRetry(ctx context.Context, path string, handle func(io.Reader) error) error {
	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logging.TransportDebug("GET %s attempt %d failed: %v", path, attempt, err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if resp.StatusCode >= 500 {
				logging.TransportDebug("GET %s attempt %d: %v", path, attempt, serr)
				return serr
			}
			return backoff.Permanent(serr)
		}
		return handle(resp.Body)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxRetries), ctx)
	return backoff.Retry(op, b)
}
