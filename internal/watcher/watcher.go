package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/pinscan/internal/logger"
)

// RescanFunc is called after the corpus has settled.
type RescanFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	Root     string
	Include  []string // file globs relative to Root; empty matches all
	Exclude  []string // globs relative to Root, applied to files and directories
	Debounce time.Duration
}

// Watcher triggers RescanFunc on corpus changes.
type Watcher struct {
	opts    Options
	root    string
	rescan  RescanFunc
	log     *logger.Logger
	rescans atomic.Int64
	ready   chan struct{}
}

// New creates a Watcher. It does not touch the filesystem until Run.
func New(opts Options, rescan RescanFunc, log *logger.Logger) (*Watcher, error) {
	if rescan == nil {
		return nil, errors.New("rescan func cannot be nil")
	}
	if opts.Debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive, got %v", opts.Debounce)
	}
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", opts.Root, err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{
		opts:   opts,
		root:   root,
		rescan: rescan,
		log:    log,
		ready:  make(chan struct{}),
	}, nil
}

// Rescans returns how many rescans have completed.
func (w *Watcher) Rescans() int64 {
	return w.rescans.Load()
}

// Ready is closed once the initial directory tree is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches the corpus until ctx is cancelled. A rescan failure is
// logged and does not stop the watcher. Run may only be called once.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("corpus directory not found: %s", w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	count, err := w.addTree(fsw, w.root)
	if err != nil {
		return err
	}
	w.log.Infow("watching corpus", "root", w.root, "directories", count, "debounce", w.opts.Debounce)
	close(w.ready)

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

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(fsw, event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("file watcher error", "error", err)

		case <-fire:
			fire = nil
			w.runRescan(ctx)
		}
	}
}

func (w *Watcher) runRescan(ctx context.Context) {
	start := time.Now()
	if err := w.rescan(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.log.Errorw("rescan failed", "error", err)
	} else {
		w.log.Infow("rescan complete", "duration", time.Since(start).Round(time.Millisecond))
	}
	w.rescans.Add(1)
}

// handleEvent registers new directories and reports whether the event
// should schedule a rescan.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, ok := w.relative(event.Name)
	if !ok || w.excluded(rel) {
		return false
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, err := w.addTree(fsw, event.Name); err != nil {
				w.log.Warnw("failed to watch new directory", "path", event.Name, "error", err)
			}
			return true
		}
	}

	if !w.included(rel) {
		return false
	}
	w.log.Debugw("corpus changed", "path", rel, "op", event.Op.String())
	return true
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.log.Warnw("skipping unreadable directory", "path", path, "error", err)
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(path); ok && rel != "." && w.excluded(rel) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		count++
		return nil
	})
	return count, err
}

func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) excluded(rel string) bool {
	for _, pattern := range w.opts.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) included(rel string) bool {
	if len(w.opts.Include) == 0 {
		return true
	}
	for _, pattern := range w.opts.Include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}
