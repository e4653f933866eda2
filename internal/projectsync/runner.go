package projectsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	extdebug "github.com/standardbeagle/extlib/internal/debug"
	extliberrors "github.com/standardbeagle/extlib/internal/errors"
)

// Runner drives the sync lifecycle. Only one sync runs at a time; a second
// call to Run waits for the first to finish.
type Runner struct {
	loader DataLoader

	mu        sync.Mutex
	listeners []Listener
	plugins   []Plugin

	last    atomic.Pointer[ProjectData]
	running atomic.Bool
	stats   RunnerStats
	statsMu sync.RWMutex
}

// RunnerStats summarizes the syncs a runner has performed
type RunnerStats struct {
	Runs         int
	LastMode     Mode
	LastResult   Result
	LastDuration time.Duration
	LastError    string
	LastFinished time.Time
}

// NewRunner creates a runner that loads project data through loader
func NewRunner(loader DataLoader) *Runner {
	return &Runner{loader: loader}
}

// AddListener registers l for every subsequent sync
func (r *Runner) AddListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// AddPlugin registers p for every subsequent sync
func (r *Runner) AddPlugin(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
}

// IsRunning reports whether a sync is in progress
func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// LastData returns the project data of the last sync that reached the
// plugins. It does not wait for a sync in progress.
func (r *Runner) LastData() *ProjectData {
	return r.last.Load()
}

// Run performs one sync. Listeners always hear AfterSync once OnSyncStart has
// been delivered, including when loading fails, a plugin panics or ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context, mode Mode) (result Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.running.Store(true)
	defer r.running.Store(false)

	start := time.Now()
	result = Failure
	notified := 0

	defer func() {
		if p := recover(); p != nil {
			log.Printf("sync panicked: %v\n%s", p, debug.Stack())
			result = Failure
			err = extliberrors.NewSyncError("structure", fmt.Errorf("panic: %v", p))
		}
		// Only listeners that saw the start hear the end
		for _, l := range r.listeners[:notified] {
			r.notifyEnd(ctx, l, result)
		}
		r.record(mode, result, err, time.Since(start))
		extdebug.LogSync("Sync (%s) finished with %s in %v\n", mode, result, time.Since(start))
	}()

	extdebug.LogSync("Sync (%s) starting\n", mode)
	for _, l := range r.listeners {
		notified++
		l.OnSyncStart(ctx, mode)
	}

	if ctx.Err() != nil {
		return Cancelled, ctx.Err()
	}

	data, err := r.load(ctx, mode)
	if err != nil {
		if isCancellation(ctx, err) {
			return Cancelled, err
		}
		return Failure, err
	}

	var pluginErrs []error
	for _, p := range r.plugins {
		if err := p.UpdateProjectStructure(ctx, data); err != nil {
			if isCancellation(ctx, err) {
				return Cancelled, err
			}
			log.Printf("Warning: project structure update failed: %v", err)
			pluginErrs = append(pluginErrs, err)
		}
	}

	r.last.Store(data)
	if merr := extliberrors.NewMultiError(pluginErrs).ErrorOrNil(); merr != nil {
		return PartialSuccess, extliberrors.NewSyncError("structure", merr)
	}
	return Success, nil
}

func (r *Runner) load(ctx context.Context, mode Mode) (*ProjectData, error) {
	if last := r.last.Load(); mode == NoBuild && last != nil {
		extdebug.LogSync("Reusing project data from %v\n", last.SyncTime)
		return last, nil
	}
	if r.loader == nil {
		return nil, extliberrors.NewSyncError("load", errors.New("no project data loader configured"))
	}

	data, err := r.loader.Load(ctx, mode)
	if err != nil {
		return nil, extliberrors.NewSyncError("load", err)
	}
	if data == nil {
		return nil, extliberrors.NewSyncError("load", errors.New("loader returned no project data"))
	}
	return data, nil
}

// notifyEnd keeps one misbehaving listener from starving the others of AfterSync
func (r *Runner) notifyEnd(ctx context.Context, l Listener, result Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("sync listener panicked in AfterSync: %v\n%s", p, debug.Stack())
		}
	}()
	l.AfterSync(ctx, result)
}

func (r *Runner) record(mode Mode, result Result, err error, d time.Duration) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	r.stats.Runs++
	r.stats.LastMode = mode
	r.stats.LastResult = result
	r.stats.LastDuration = d
	r.stats.LastFinished = time.Now()
	r.stats.LastError = ""
	if err != nil {
		r.stats.LastError = err.Error()
	}
}

// Stats returns a copy of the runner statistics
func (r *Runner) Stats() RunnerStats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return r.stats
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
