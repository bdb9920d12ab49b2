package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"eduattend/internal/logging"

	"github.com/pkg/browser"
)

// Fetcher retrieves artifact content from the backend.
type Fetcher interface {
	Download(ctx context.Context, filename string, w io.Writer) (int64, error)
	DownloadURL(filename string) string
}

// Opener navigates to a URL outside the client, e.g. in the system browser.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// BrowserOpener opens URLs in the system browser. Its output is discarded so
// that it cannot scribble over the terminal UI.
type BrowserOpener struct{}

func (BrowserOpener) Open(url string) error {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return browser.OpenURL(url)
}

// Result describes a completed download.
type Result struct {
	Filename string
	Path     string // saved file; empty on fallback
	URL      string
	Bytes    int64
	Fallback bool // the URL was handed to the Opener instead
}

// Downloader saves artifacts into a directory, falling back to direct
// navigation when the fetch fails.
type Downloader struct {
	fetcher Fetcher
	dir     string
	opener  Opener
}

// NewDownloader creates a downloader saving into dir. A nil opener disables
// the fallback.
func NewDownloader(fetcher Fetcher, dir string, opener Opener) *Downloader {
	return &Downloader{fetcher: fetcher, dir: dir, opener: opener}
}

// Download fetches filename into the download directory. On failure the
// download URL is opened instead and the result is marked Fallback; an error
// is returned only when both fail.
func (d *Downloader) Download(ctx context.Context, filename string) (Result, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return Result{}, fmt.Errorf("invalid artifact name %q", filename)
	}
	res := Result{Filename: name, URL: d.fetcher.DownloadURL(name)}

	path, n, err := d.save(ctx, name)
	if err == nil {
		res.Path, res.Bytes = path, n
		logging.Artifact("downloaded %s (%d bytes) to %s", name, n, path)
		return res, nil
	}
	if ctx.Err() != nil {
		return res, err
	}

	logging.Get(logging.CategoryArtifact).Warn("download of %s failed, falling back to navigation: %v", name, err)
	if d.opener == nil {
		return res, err
	}
	if oerr := d.opener.Open(res.URL); oerr != nil {
		return res, errors.Join(err, fmt.Errorf("fallback navigation failed: %w", oerr))
	}
	res.Fallback = true
	return res, nil
}

// save writes to a temporary file and renames it into place so that a
// failed download never leaves a truncated artifact behind.
func (d *Downloader) save(ctx context.Context, name string) (string, int64, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, "."+name+".*.part")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := d.fetcher.Download(ctx, name, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write %s: %w", name, cerr)
	}
	if err != nil {
		return "", n, err
	}

	dest := filepath.Join(d.dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", n, fmt.Errorf("failed to save %s: %w", name, err)
	}
	return dest, n, nil
}
