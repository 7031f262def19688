// Package watcher reloads a configuration when its file changes on disk.
//
// The watcher observes the directory containing the file rather than the file
// itself, so editors that save by writing a temporary file and renaming it over
// the original are handled. Bursts of events are collapsed into one reload after
// a quiet period.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period after the last change before a reload.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc is called after every successful reload with the document that
// was replaced and the one now in place.
type ReloadFunc func(old, new *config.Document)

// ErrorFunc is called when a reload fails. The previous document stays loaded.
type ErrorFunc func(err error)

// Watcher reloads a config whenever its source file changes.
type Watcher struct {
	cfg      *config.Config
	path     string
	debounce time.Duration
	logger   zerolog.Logger
	onReload ReloadFunc
	onError  ErrorFunc
	reloads  atomic.Int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// OnReload registers the callback for successful reloads.
func OnReload(fn ReloadFunc) Option {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// OnError registers the callback for failed reloads.
func OnError(fn ErrorFunc) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a watcher for cfg. The config must have been loaded from a file.
func New(cfg *config.Config, opts ...Option) (*Watcher, error) {
	source := cfg.SourcePath()
	if source == "" {
		return nil, fmt.Errorf("config has no source file to watch: %w", config.ErrNotLoaded)
	}

	path, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", source, err)
	}

	w := &Watcher{
		cfg:      cfg,
		path:     path,
		debounce: DefaultDebounce,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With().Str("component", "watcher").Str("path", path).Logger()

	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Reloads returns the number of successful reloads so far.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Run watches until ctx is cancelled. Reloads happen on the calling goroutine,
// so callbacks never run concurrently.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info().Dur("debounce", w.debounce).Msg("Watching configuration")

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug().Str("op", event.Op.String()).Msg("Configuration file changed")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Stop()
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == w.path
}

func (w *Watcher) reload() {
	old, _ := w.cfg.Document()

	if err := w.cfg.Reload(); err != nil {
		w.logger.Error().Err(err).Msg("Reload failed, keeping previous configuration")
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	current, err := w.cfg.Document()
	if err != nil {
		return
	}
	w.reloads.Add(1)

	w.logger.Info().
		Int("entries", current.Len()).
		Int("changes", len(config.Diff(old, current))).
		Msg("Configuration reloaded")

	if w.onReload != nil {
		w.onReload(old, current)
	}
}
