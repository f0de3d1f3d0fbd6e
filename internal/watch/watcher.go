// Package watch turns editor file writes into activity tracker events.
//
// Keystrokes are estimated from file size: each byte a write adds counts as
// one keystroke and each byte it removes as one backspace. A write that keeps
// the size unchanged counts as a single keystroke. Large deltas from pastes,
// formatters, or checkouts are capped at maxKeystrokesPerWrite.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// maxKeystrokesPerWrite bounds the events emitted for a single write.
const maxKeystrokesPerWrite = 32

// DefaultExtensions are tracked when no extension list is configured.
var DefaultExtensions = []string{".go", ".md", ".txt", ".py", ".js", ".ts", ".rs", ".c", ".h", ".java"}

// ActivitySink receives one call per estimated keystroke.
type ActivitySink interface {
	HandleActivity(isBackspace bool)
}

// Watcher watches directories and reports writes to tracked files.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	sink      ActivitySink
	logger    *slog.Logger
	exts      map[string]bool

	// path -> last observed size
	sizes   map[string]int64
	sizesMu sync.Mutex
}

// New creates a watcher over dirs. Files already present are sized so the
// first write can be classified.
func New(dirs, exts []string, sink ActivitySink, logger *slog.Logger) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no directories to watch")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		fsWatcher: fsWatcher,
		sink:      sink,
		logger:    logger,
		exts:      normalizeExtensions(exts),
		sizes:     make(map[string]int64),
	}
	for _, dir := range dirs {
		if err := w.addDir(dir); err != nil {
			if cerr := fsWatcher.Close(); cerr != nil {
				// Best-effort close on setup failure.
				_ = cerr
			}
			return nil, err
		}
	}
	return w, nil
}

func normalizeExtensions(exts []string) map[string]bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	out := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = true
	}
	return out
}

func (w *Watcher) addDir(dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if err := w.fsWatcher.Add(absDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(absDir, entry.Name())
		if w.tracked(path) {
			w.trackFile(path)
		}
	}
	return nil
}

func (w *Watcher) tracked(path string) bool {
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) trackFile(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	w.sizesMu.Lock()
	w.sizes[path] = info.Size()
	w.sizesMu.Unlock()
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.tracked(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.sizesMu.Lock()
		delete(w.sizes, event.Name)
		w.sizesMu.Unlock()
	case event.Has(fsnotify.Create):
		w.trackFile(event.Name)
	case event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return
		}
		w.sizesMu.Lock()
		prev, known := w.sizes[event.Name]
		w.sizes[event.Name] = info.Size()
		w.sizesMu.Unlock()
		if !known {
			prev = info.Size()
		}
		count, isBackspace := classifyChange(prev, info.Size())
		w.logger.Debug("text change", "path", event.Name, "size", info.Size(), "keystrokes", count, "backspace", isBackspace)
		for i := 0; i < count; i++ {
			w.sink.HandleActivity(isBackspace)
		}
	}
}

// classifyChange estimates how many keystrokes a write represents and
// whether they removed text.
func classifyChange(prevSize, newSize int64) (int, bool) {
	delta := newSize - prevSize
	isBackspace := delta < 0
	if isBackspace {
		delta = -delta
	}
	switch {
	case delta == 0:
		return 1, false
	case delta > maxKeystrokesPerWrite:
		return maxKeystrokesPerWrite, isBackspace
	}
	return int(delta), isBackspace
}
