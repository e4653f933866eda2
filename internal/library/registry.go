package library

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	extdebug "github.com/standardbeagle/extlib/internal/debug"
	extliberrors "github.com/standardbeagle/extlib/internal/errors"
	"github.com/standardbeagle/extlib/internal/projectsync"
	"github.com/standardbeagle/extlib/internal/vfs"
)

// snapshot is immutable once published
type snapshot struct {
	byKey  map[string]*Library
	byName map[string]*Library
	order  []*Library // provider order
	keys   []string   // provider key of each entry in order
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byKey:  map[string]*Library{},
		byName: map[string]*Library{},
	}
}

// Registry owns the synthetic libraries of one project. Libraries are rebuilt
// from the providers on every sync and kept current between syncs by VFS
// events. While a sync is in progress the registry reports no libraries.
type Registry struct {
	providers     []Provider
	resolver      vfs.Resolver
	maxGoroutines int

	snap    atomic.Pointer[snapshot]
	syncing atomic.Bool

	rebuildMu sync.Mutex
	sub       vfs.Subscription
	closeOnce sync.Once

	stats   RegistryStats
	statsMu sync.RWMutex
}

// RegistryStats describes the registry's recent activity
type RegistryStats struct {
	Libraries       int
	Syncing         bool
	Rebuilds        int
	LastRebuild     time.Time
	LastDuration    time.Duration
	ProviderErrors  []string
	DuplicatesFound []string
	EventsApplied   int64
}

// Option configures a Registry
type Option func(*Registry)

// WithMaxGoroutines bounds how many providers list files concurrently during a rebuild
func WithMaxGoroutines(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxGoroutines = n
		}
	}
}

// NewRegistry creates an empty registry over providers and subscribes it to events.
// A nil events source leaves the registry unsubscribed.
func NewRegistry(providers []Provider, resolver vfs.Resolver, events vfs.EventSource, opts ...Option) *Registry {
	r := &Registry{
		providers:     append([]Provider(nil), providers...),
		resolver:      resolver,
		maxGoroutines: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.snap.Store(emptySnapshot())

	if events != nil {
		r.sub = events.Subscribe(&eventListener{registry: r})
	}
	return r
}

// Library returns the library contributed by the provider with the given key.
// Nothing is returned while a sync is in progress.
func (r *Registry) Library(key string) (*Library, bool) {
	if r.syncing.Load() {
		return nil, false
	}
	lib, ok := r.snap.Load().byKey[key]
	return lib, ok
}

// LibraryByName looks a library up by its presentable name
func (r *Registry) LibraryByName(name string) (*Library, bool) {
	if r.syncing.Load() {
		return nil, false
	}
	lib, ok := r.snap.Load().byName[name]
	return lib, ok
}

// Libraries returns every visible library in provider order, or nil during a sync
func (r *Registry) Libraries() []*Library {
	if r.syncing.Load() {
		return nil
	}
	s := r.snap.Load()
	return append([]*Library(nil), s.order...)
}

// Entry pairs a library with the key of the provider that produced it
type Entry struct {
	ProviderKey string
	Library     *Library
}

// Entries returns every visible library with its provider key, or nil during a sync
func (r *Registry) Entries() []Entry {
	if r.syncing.Load() {
		return nil
	}
	s := r.snap.Load()
	entries := make([]Entry, len(s.order))
	for i, lib := range s.order {
		entries[i] = Entry{ProviderKey: s.keys[i], Library: lib}
	}
	return entries
}

// LibraryFor returns the first visible library whose valid roots include f
func (r *Registry) LibraryFor(f vfs.File) (*Library, bool) {
	if f == nil || r.syncing.Load() {
		return nil, false
	}
	for _, lib := range r.snap.Load().order {
		if lib.Contains(f) {
			return lib, true
		}
	}
	return nil, false
}

// IsSyncing reports whether libraries are currently hidden
func (r *Registry) IsSyncing() bool {
	return r.syncing.Load()
}

// Providers returns the provider list the registry was built with
func (r *Registry) Providers() []Provider {
	return append([]Provider(nil), r.providers...)
}

// Rebuild replaces every library with fresh ones built from the providers.
// A provider that fails or lists no files contributes no library, and a
// provider whose library name is already taken is skipped. The new set of
// libraries becomes visible in one step. When ctx is cancelled the previous
// libraries are kept and the context error is returned.
func (r *Registry) Rebuild(ctx context.Context, data *projectsync.ProjectData) error {
	r.rebuildMu.Lock()
	defer r.rebuildMu.Unlock()

	start := time.Now()
	built := make([]*Library, len(r.providers))
	errs := make([]error, len(r.providers))

	var g errgroup.Group
	g.SetLimit(r.maxGoroutines)
	for i, p := range r.providers {
		g.Go(func() error {
			files, err := listFiles(ctx, p, data)
			if err != nil {
				errs[i] = extliberrors.NewProviderError(p.ProviderKey(), p.LibraryName(), err)
				return nil
			}
			if len(files) == 0 {
				return nil
			}
			built[i] = NewLibrary(p.LibraryName(), files, r.resolver)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		extdebug.LogLibrary("Rebuild cancelled, keeping %d libraries\n", len(r.snap.Load().order))
		return err
	}

	next := emptySnapshot()
	var providerErrs, duplicates []string
	for i, lib := range built {
		key := r.providers[i].ProviderKey()
		if errs[i] != nil {
			log.Printf("Warning: %v", errs[i])
			providerErrs = append(providerErrs, errs[i].Error())
			continue
		}
		if lib == nil {
			continue
		}
		if _, taken := next.byName[lib.Name()]; taken {
			log.Printf("Warning: provider %s yields library %q which another provider already created; skipping", key, lib.Name())
			duplicates = append(duplicates, key)
			continue
		}
		if _, taken := next.byKey[key]; taken {
			log.Printf("Warning: provider key %s is registered twice; skipping", key)
			duplicates = append(duplicates, key)
			continue
		}
		next.byKey[key] = lib
		next.byName[lib.Name()] = lib
		next.order = append(next.order, lib)
		next.keys = append(next.keys, key)
	}
	r.snap.Store(next)

	// Events published between resolving and the swap only reached the old records
	for _, lib := range next.order {
		if n := lib.reconcile(r.resolver); n > 0 {
			extdebug.LogLibrary("%s: caught up %d paths changed during rebuild\n", lib.Name(), n)
		}
	}

	elapsed := time.Since(start)
	r.statsMu.Lock()
	r.stats.Rebuilds++
	r.stats.LastRebuild = time.Now()
	r.stats.LastDuration = elapsed
	r.stats.ProviderErrors = providerErrs
	r.stats.DuplicatesFound = duplicates
	r.statsMu.Unlock()

	extdebug.LogLibrary("Rebuilt %d libraries from %d providers in %v\n", len(next.order), len(r.providers), elapsed)
	return nil
}

// listFiles keeps a panicking provider from taking the rebuild down with it
func listFiles(ctx context.Context, p Provider, data *projectsync.ProjectData) (files []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("provider %s panicked: %v\n%s", p.ProviderKey(), rec, debug.Stack())
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return p.LibraryFiles(ctx, data)
}

// Stats returns a snapshot of registry statistics
func (r *Registry) Stats() RegistryStats {
	r.statsMu.RLock()
	stats := r.stats
	stats.ProviderErrors = append([]string(nil), r.stats.ProviderErrors...)
	stats.DuplicatesFound = append([]string(nil), r.stats.DuplicatesFound...)
	r.statsMu.RUnlock()

	stats.Libraries = len(r.snap.Load().order)
	stats.Syncing = r.syncing.Load()
	return stats
}

// Close detaches the registry from the event source. Libraries stay readable.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		if r.sub != nil {
			r.sub.Unsubscribe()
		}
	})
	return nil
}

// fileCreated, fileDeleted and fileMoved fan an event out to every current
// library, including while a sync is in progress.
func (r *Registry) fileCreated(f vfs.File) {
	for _, lib := range r.snap.Load().order {
		lib.UpdateFile(f)
	}
	r.countEvent()
}

func (r *Registry) fileDeleted(f vfs.File) {
	for _, lib := range r.snap.Load().order {
		lib.RemoveFile(f)
	}
	r.countEvent()
}

func (r *Registry) fileMoved(f vfs.File, oldParent vfs.File, oldName string) {
	samePlace := oldParent != nil && f != nil &&
		vfs.CleanPath(joinChild(oldParent.Path(), oldName)) == vfs.CleanPath(f.Path())

	for _, lib := range r.snap.Load().order {
		lib.UpdateFile(f)
		if !samePlace {
			lib.RemoveChild(oldParent, oldName)
		}
	}
	r.countEvent()
}

func (r *Registry) countEvent() {
	r.statsMu.Lock()
	r.stats.EventsApplied++
	r.statsMu.Unlock()
}

// eventListener keeps the vfs callbacks off the Registry's exported API
type eventListener struct {
	registry *Registry
}

func (l *eventListener) FileCreated(e vfs.Event) { l.registry.fileCreated(e.File) }
func (l *eventListener) FileDeleted(e vfs.Event) { l.registry.fileDeleted(e.File) }
func (l *eventListener) FileMoved(e vfs.Event) {
	l.registry.fileMoved(e.File, e.OldParent, e.OldName)
}
