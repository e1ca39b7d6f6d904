// Package watcher keeps the résumé corpus in sync with the index by watching corpus
// directories with fsnotify and re-ingesting files after their writes settle.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/cvsearch/internal/models"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Sink receives the watcher's decisions. *indexer.Indexer satisfies it.
type Sink interface {
	IngestFile(ctx context.Context, path string) models.FileResult
	RemovePath(ctx context.Context, path string) error
}

// Watcher watches corpus roots and forwards file changes to a Sink.
type Watcher struct {
	sink       Sink
	extensions []string
	exclude    []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	ctx      context.Context
	fsw      *fsnotify.Watcher
	roots    []string
	watched  map[string][]string // root -> directories registered with fsnotify
	pending  map[string]*time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger used for watch events and ingestion outcomes.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce overrides how long a file must stay quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExclude sets doublestar patterns, relative to each root, that are never ingested.
func WithExclude(patterns []string) Option {
	return func(w *Watcher) { w.exclude = append([]string(nil), patterns...) }
}

// NewWatcher creates a watcher for roots. Only files whose extension is in extensions are
// forwarded; an empty list forwards everything.
func NewWatcher(sink Sink, roots, extensions []string, recursive bool, opts ...Option) *Watcher {
	w := &Watcher{
		sink:       sink,
		extensions: extensions,
		recursive:  recursive,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		roots:      append([]string(nil), roots...),
		watched:    make(map[string][]string),
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the configured roots and begins forwarding events. Roots must exist.
// It returns immediately; watching continues until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.fsw = fsw
	w.ctx = ctx
	roots := w.roots
	w.roots = nil
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fsw.Close()
			w.fsw = nil
			return fmt.Errorf("watch root %q: %w", root, err)
		}
		if err := w.addRootLocked(abs); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			return err
		}
		w.roots = append(w.roots, abs)
	}
	w.started = true
	w.logger.Info("watcher started", zap.Strings("roots", w.roots), zap.Bool("recursive", w.recursive))
	go w.run(ctx)
	return nil
}

// Stop stops watching and cancels pending ingestions. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		if w.fsw != nil {
			_ = w.fsw.Close()
		}
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	root, ok := w.rootOf(path)
	if !ok {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) && w.recursive {
				w.handleNewDirectory(root, path)
			}
			return
		}
		if w.wanted(root, path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
		if matchExtension(path, w.extensions) {
			w.remove(path)
		}
	}
}

func (w *Watcher) handleNewDirectory(root, dir string) {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if w.excluded(root, path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("watch directory failed", zap.String("path", path), zap.Error(err))
			return nil
		}
		w.watched[root] = append(w.watched[root], path)
		return nil
	})
	w.mu.Unlock()
	w.syncDirectory(root, dir)
}

func (w *Watcher) rootOf(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, root := range w.roots {
		if root == path || inDir(root, path) {
			return root, true
		}
	}
	return "", false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) wanted(root, path string) bool {
	return matchExtension(path, w.extensions) && !w.excluded(root, path)
}

func (w *Watcher) excluded(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// schedule ingests path once it has been quiet for the debounce interval.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) context() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return context.Background()
	}
	return w.ctx
}

func (w *Watcher) ingest(path string) {
	ctx := w.context()
	if ctx.Err() != nil {
		return
	}
	res := w.sink.IngestFile(ctx, path)
	switch {
	case res.Err != nil && errors.Is(res.Err, models.ErrNoContent):
		w.logger.Info("watched file has no content", zap.String("path", path))
	case res.Err != nil:
		w.logger.Warn("re-ingest failed", zap.String("path", path), zap.Error(res.Err))
	case res.Skipped:
		w.logger.Debug("watched file unchanged", zap.String("path", path))
	default:
		w.logger.Info("re-ingested file", zap.String("path", path), zap.String("document_id", res.DocumentID), zap.Int("chunks", res.Chunks))
	}
}

func (w *Watcher) remove(path string) {
	ctx := w.context()
	if ctx.Err() != nil {
		return
	}
	if err := w.sink.RemovePath(ctx, path); err != nil {
		w.logger.Warn("remove from index failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("removed file from index", zap.String("path", path))
}

// AddDirectory starts watching root. When syncExisting is set, the files already in it are
// ingested in the background. Adding a watched root is a no-op.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("watch root %q: %w", root, err)
	}
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return fmt.Errorf("watcher not started: %w", models.ErrInvalidArgument)
	}
	for _, r := range w.roots {
		if r == abs {
			w.mu.Unlock()
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		w.mu.Unlock()
		return err
	}
	w.roots = append(w.roots, abs)
	w.mu.Unlock()

	w.logger.Info("watch directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.syncDirectory(abs, abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch root %q: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %q is not a directory: %w", root, models.ErrInvalidArgument)
	}
	var dirs []string
	if !w.recursive {
		if err := w.fsw.Add(root); err != nil {
			return fmt.Errorf("watch %q: %w", root, err)
		}
		w.watched[root] = []string{root}
		return nil
	}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.excluded(root, path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %q: %w", path, err)
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		for _, d := range dirs {
			_ = w.fsw.Remove(d)
		}
		return err
	}
	w.watched[root] = dirs
	return nil
}

// syncDirectory ingests every wanted file below dir, which lies inside root.
func (w *Watcher) syncDirectory(root, dir string) {
	w.logger.Debug("watcher syncing directory", zap.String("path", dir))
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && (!w.recursive || w.excluded(root, path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.wanted(root, path) {
			w.ingest(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching root. Documents already ingested from it stay indexed.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("watch root %q: %w", root, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := -1
	for i, r := range w.roots {
		if r == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("directory %q is not watched: %w", abs, models.ErrNotFound)
	}
	if w.fsw != nil {
		for _, d := range w.watched[abs] {
			_ = w.fsw.Remove(d)
		}
	}
	delete(w.watched, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	for path, t := range w.pending {
		if inDir(abs, path) {
			t.Stop()
			delete(w.pending, path)
		}
	}
	w.logger.Info("watch directory removed", zap.String("path", abs))
	return nil
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}
