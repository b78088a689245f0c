package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 300 * time.Millisecond

// Change is a script that was written or removed on disk
type Change struct {
	ID      string
	Removed bool
}

// Watcher reports script changes in a store directory. Bursts of writes to
// the same file collapse into one Change.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *logging.Logger
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]Change
	timer   *time.Timer
	changes chan Change
}

// NewWatcher starts watching dir. Call Run to receive changes.
func NewWatcher(dir string, debounce time.Duration, logger *logging.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch script directory: %w", err)
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		logger:   logger.Named("watcher"),
		watcher:  fsw,
		pending:  make(map[string]Change),
		changes:  make(chan Change, 64),
	}, nil
}

// Run calls fn for each change until ctx is done, then closes the watcher.
// fn runs on the Run goroutine.
func (w *Watcher) Run(ctx context.Context, fn func(Change)) error {
	defer w.stop()

	w.logger.Info("Watching scripts", zap.String("dir", w.dir))
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.observe(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))

		case change := <-w.changes:
			fn(change)
		}
	}
}

func (w *Watcher) observe(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if filepath.Ext(name) != scriptExt || strings.HasPrefix(name, ".") {
		return
	}
	id := strings.TrimSuffix(name, scriptExt)
	if checkID(id) != nil {
		return
	}

	var change Change
	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		change = Change{ID: id}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		change = Change{ID: id, Removed: true}
	default:
		return
	}

	w.logger.Debug("Script changed", zap.String("plugin_id", id), zap.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[id] = change
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]Change)
	w.mu.Unlock()

	for _, change := range pending {
		select {
		case w.changes <- change:
		default:
			w.logger.Warn("Dropped script change", zap.String("plugin_id", change.ID))
		}
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
