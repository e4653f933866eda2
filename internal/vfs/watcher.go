package vfs

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/extlib/internal/config"
	"github.com/standardbeagle/extlib/internal/debug"
)

// Watcher turns fsnotify notifications under a project root into VFS events.
//
// fsnotify reports a move as a Rename of the old path followed by a Create of
// the new one. The watcher holds each Rename for the configured move window;
// a Create arriving inside that window is published as a single Moved event,
// and a Rename that stays unpaired is published as Deleted.
type Watcher struct {
	watcher    *fsnotify.Watcher
	config     *config.Config
	fs         *LocalFS
	out        Publisher
	root       string
	moveWindow time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once

	renameMu       sync.Mutex
	pendingRenames []pendingRename

	eventsProcessed int64
	errorCount      int64
	lastEventTime   time.Time
	statsMu         sync.RWMutex
}

type pendingRename struct {
	path string
	at   time.Time
}

// NewWatcher creates a watcher that resolves handles through lfs and publishes to out
func NewWatcher(cfg *config.Config, lfs *LocalFS, out Publisher) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		watcher:    watcher,
		config:     cfg,
		fs:         lfs,
		out:        out,
		root:       CleanPath(cfg.Project.Root),
		moveWindow: time.Duration(cfg.Watch.MoveWindowMs) * time.Millisecond,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start begins watching the project root and every non-excluded directory below it
func (w *Watcher) Start() error {
	if !w.config.Watch.Enabled {
		log.Printf("File watching disabled in configuration")
		return nil
	}

	debug.LogVFS("Starting file watcher for directory: %s\n", w.root)

	if err := w.addWatches(w.root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", w.root, err)
	}

	w.wg.Add(1)
	go w.processEvents()

	debug.LogVFS("File watcher started successfully\n")
	return nil
}

// Stop closes the fsnotify watcher and waits for the event loop to exit.
// Renames still waiting for a partner are dropped.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.cancel()
		err = w.watcher.Close()
		w.wg.Wait()
		debug.LogVFS("File watcher stopped\n")
	})
	return err
}

// addWatches recursively adds watches to all non-excluded directories
func (w *Watcher) addWatches(root string) error {
	// Symlinked directories can form cycles
	visitedDirs := make(map[string]bool)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visitedDirs[realPath] {
			return filepath.SkipDir
		}
		visitedDirs[realPath] = true

		if path != w.root && w.isExcluded(path) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

// isExcluded matches the root-relative path against the configured exclude globs.
// Directory patterns such as "**/.git/**" also match the directory itself.
func (w *Watcher) isExcluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range w.config.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		if dirPattern := strings.TrimSuffix(pattern, "/**"); dirPattern != pattern {
			if matched, _ := doublestar.Match(dirPattern, rel); matched {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	tick := w.moveWindow / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.incrementStats(0, 1)
			log.Printf("File watcher error: %v", err)

		case now := <-ticker.C:
			w.expireRenames(now)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := CleanPath(event.Name)
	debug.LogVFS("Watcher: received %v for %s\n", event.Op, path)

	if w.isExcluded(path) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		w.handleCreate(path)
	case event.Has(fsnotify.Remove):
		w.publishDeleted(path)
	case event.Has(fsnotify.Rename):
		// A watch on a renamed directory keeps reporting under the old name
		_ = w.watcher.Remove(path)
		if w.moveWindow <= 0 {
			w.publishDeleted(path)
			return
		}
		w.renameMu.Lock()
		w.pendingRenames = append(w.pendingRenames, pendingRename{path: path, at: time.Now()})
		w.renameMu.Unlock()
	default:
		// Write and Chmod do not change which files exist
	}
}

func (w *Watcher) handleCreate(path string) {
	info, err := os.Stat(path)
	if err != nil {
		// Created and removed again before we looked
		return
	}
	if info.IsDir() {
		if err := w.addWatches(path); err != nil {
			log.Printf("Warning: failed to add watch for new directory %s: %v", path, err)
		}
	}

	created, ok := w.fs.Resolve(path)
	if !ok {
		return
	}

	if oldPath, paired := w.takePendingRename(path); paired && oldPath != path {
		dropped := w.fs.Forget(oldPath)
		// Everything interned below a moved directory is gone from its old location
		for _, f := range dropped[:len(dropped)-1] {
			w.publish(Event{Op: Deleted, File: f})
		}
		w.publish(Event{
			Op:        Moved,
			File:      created,
			OldParent: w.dirHandle(filepath.Dir(oldPath)),
			OldName:   filepath.Base(oldPath),
		})
	} else {
		w.publish(Event{Op: Created, File: created})
	}

	if info.IsDir() {
		w.publishTree(path)
	}
}

// publishTree reports files that appeared inside a new directory before its watch was added
func (w *Watcher) publishTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil
		}
		if d.IsDir() && w.isExcluded(path) {
			return filepath.SkipDir
		}
		if f, ok := w.fs.Resolve(path); ok {
			w.publish(Event{Op: Created, File: f})
		}
		return nil
	})
}

// takePendingRename pairs a create with an unexpired rename, preferring one
// with the same base name and otherwise accepting a single candidate.
func (w *Watcher) takePendingRename(newPath string) (string, bool) {
	w.renameMu.Lock()
	defer w.renameMu.Unlock()

	now := time.Now()
	candidate := -1
	live := 0
	for i, pr := range w.pendingRenames {
		if now.Sub(pr.at) > w.moveWindow {
			continue
		}
		live++
		if filepath.Base(pr.path) == filepath.Base(newPath) {
			candidate = i
			break
		}
		if candidate < 0 {
			candidate = i
		}
	}
	if candidate < 0 || (live > 1 && filepath.Base(w.pendingRenames[candidate].path) != filepath.Base(newPath)) {
		return "", false
	}

	oldPath := w.pendingRenames[candidate].path
	w.pendingRenames = append(w.pendingRenames[:candidate], w.pendingRenames[candidate+1:]...)
	return oldPath, true
}

// expireRenames publishes renames whose partner never arrived as deletions
func (w *Watcher) expireRenames(now time.Time) {
	w.renameMu.Lock()
	var expired []string
	kept := w.pendingRenames[:0]
	for _, pr := range w.pendingRenames {
		if now.Sub(pr.at) > w.moveWindow {
			expired = append(expired, pr.path)
		} else {
			kept = append(kept, pr)
		}
	}
	w.pendingRenames = kept
	w.renameMu.Unlock()

	for _, path := range expired {
		w.publishDeleted(path)
	}
}

func (w *Watcher) publishDeleted(path string) {
	for _, f := range w.fs.Forget(path) {
		w.publish(Event{Op: Deleted, File: f})
	}
}

func (w *Watcher) dirHandle(dir string) File {
	if f, ok := w.fs.Resolve(dir); ok {
		return f
	}
	return w.fs.detached(dir, true)
}

func (w *Watcher) publish(e Event) {
	w.out.Publish(e)
	w.incrementStats(1, 0)
}

func (w *Watcher) incrementStats(events int64, errors int64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.eventsProcessed += events
	w.errorCount += errors
	w.lastEventTime = time.Now()
}

// Stats returns current watcher statistics
func (w *Watcher) Stats() WatchStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()

	return WatchStats{
		EventsProcessed: w.eventsProcessed,
		ErrorCount:      w.errorCount,
		LastEventTime:   w.lastEventTime,
		IsActive:        w.ctx.Err() == nil,
	}
}

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64
	ErrorCount      int64
	LastEventTime   time.Time
	IsActive        bool
}
