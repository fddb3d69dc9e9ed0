// Package watch re-runs work whenever a stage's source directory changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes (editors, earlier stages) into a
// single trigger.
const DefaultDebounce = 500 * time.Millisecond

// Watcher triggers a callback after changes in one directory settle.
type Watcher struct {
	dir      string
	debounce time.Duration
	filter   func(name string) bool
	logger   *slog.Logger
}

// Option customizes the watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a trigger.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter ignores events for names the filter rejects.
func WithFilter(filter func(name string) bool) Option {
	return func(w *Watcher) {
		w.filter = filter
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New prepares a watcher for dir.
func New(dir string, opts ...Option) *Watcher {
	w := &Watcher{dir: dir, debounce: DefaultDebounce, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run calls fn once immediately and then after every settled burst of
// changes, until ctx is done. Errors from fn are logged and do not stop the
// watch. Run returns nil when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("watch: ensure %s: %w", w.dir, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.dir, err)
	}

	w.trigger(ctx, fn)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("source changed", "dir", w.dir, "name", event.Name, "op", event.Op.String())
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "dir", w.dir, "error", err)
		case <-timer.C:
			pending = false
			w.trigger(ctx, fn)
		}
	}
}

func (w *Watcher) trigger(ctx context.Context, fn func(ctx context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	if err := fn(ctx); err != nil {
		w.logger.Warn("watch run failed", "dir", w.dir, "error", err)
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := event.Name
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	// Temp files from atomic writes.
	if strings.HasPrefix(name, ".") {
		return false
	}
	return w.filter == nil || w.filter(name)
}
