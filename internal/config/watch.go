package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config, error)
	debounce time.Duration
	doneCh   chan struct{}
}

// Watch starts watching path and calls onChange with the reloaded config (or
// the load error) after each burst of writes. The parent directory is watched
// so that editors which replace the file on save are still observed.
// onChange runs on the watcher goroutine.
func Watch(ctx context.Context, path string, onChange func(*Config, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		watcher:  fw,
		onChange: onChange,
		debounce: 200 * time.Millisecond,
		doneCh:   make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// Done is closed once the watcher goroutine has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer w.watcher.Close()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onChange(nil, fmt.Errorf("config watcher: %w", err))

		case <-timerCh:
			timerCh = nil
			cfg, err := Load(w.path)
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				w.onChange(nil, err)
				continue
			}
			w.onChange(cfg, nil)
		}
	}
}
