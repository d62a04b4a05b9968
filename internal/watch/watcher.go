// Package watch re-runs work when files change.
//
// A Watcher observes the directories holding a set of files rather than the
// files themselves, so editors that save by rename-and-replace are still
// seen. Changes are debounced: a burst of writes triggers one callback.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNoPaths is returned by New without any file to watch.
var ErrNoPaths = errors.New("no paths to watch")

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 200 * time.Millisecond

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher calls a function when any watched file changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	targets  map[string]bool
	debounce time.Duration
	logger   *zap.Logger

	debouncer *Debouncer
}

// New watches paths and calls onChange, debounced, after they change.
func New(paths []string, onChange func(), opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	w := &Watcher{
		targets:  make(map[string]bool, len(paths)),
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("watch")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		w.targets[abs] = true

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	w.fsw = fsw
	w.debouncer = NewDebouncer(w.debounce, onChange)
	return w, nil
}

// Run delivers change notifications until ctx is done, then releases the
// underlying watcher. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		w.debouncer.Cancel()
		_ = w.fsw.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("file changed",
				zap.String("path", ev.Name),
				zap.String("op", ev.Op.String()),
			)
			w.debouncer.Call()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// relevant reports whether ev touches a watched file with a content change.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return w.targets[abs]
}
