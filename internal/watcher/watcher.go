package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports files dropped into a spool directory once they have stopped
// changing for the settle period. Each file is reported once; a file that is
// removed and recreated is reported again.
type Watcher struct {
	fsw    *fsnotify.Watcher
	Ready  chan string
	dir    string
	settle time.Duration
	log    zerolog.Logger

	pending  map[string]time.Time // path -> last activity
	reported map[string]struct{}
}

// New creates a Watcher for dir. Files already present are reported too.
func New(dir string, settle time.Duration, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("spool path %s is not a directory", abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}

	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	return &Watcher{
		fsw:      fsw,
		Ready:    make(chan string, 64),
		dir:      abs,
		settle:   settle,
		log:      log,
		pending:  make(map[string]time.Time),
		reported: make(map[string]struct{}),
	}, nil
}

// Dir returns the absolute spool directory.
func (w *Watcher) Dir() string { return w.dir }

// Start watches the directory until the context is cancelled, then closes Ready.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.Ready)

	w.scanExisting()

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watcher error")
		case now := <-ticker.C:
			if !w.flush(ctx, now) {
				return
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if skip(ev.Name) {
		return
	}
	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if _, done := w.reported[ev.Name]; done && ev.Op&fsnotify.Create == 0 {
			return
		}
		delete(w.reported, ev.Name)
		w.pending[ev.Name] = time.Now()
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(w.pending, ev.Name)
		delete(w.reported, ev.Name)
	}
}

// flush reports every pending file idle for at least the settle period.
// It returns false if the context ended while sending.
func (w *Watcher) flush(ctx context.Context, now time.Time) bool {
	for path, last := range w.pending {
		if now.Sub(last) < w.settle {
			continue
		}
		delete(w.pending, path)
		if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
			continue
		}
		w.reported[path] = struct{}{}
		select {
		case w.Ready <- path:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn().Err(err).Str("dir", w.dir).Msg("cannot list spool directory")
		return
	}
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if e.Type().IsRegular() && !skip(path) {
			w.pending[path] = time.Time{}
		}
	}
}

// skip ignores hidden files and in-progress uploads.
func skip(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, ".part")
}
