// Package library keeps synthetic external libraries: named groups of
// build-produced files that a project index treats as additional library
// roots. A Library tracks a fixed set of paths and follows the VFS as those
// paths appear, disappear and move; a Registry rebuilds the libraries on every
// project sync and fans VFS events out to them.
package library

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/extlib/internal/debug"
	"github.com/standardbeagle/extlib/internal/vfs"
)

// Icon is the presentation icon shared by every synthetic library
const Icon = "bazel-logo"

// Library is a synthetic external library. The set of tracked paths is fixed
// at construction; each path maps to a live handle or to nothing.
//
// The valid roots are always exactly the non-nil handles in the mapping.
// Writers serialize on mu; readers of ValidRoots take no lock.
type Library struct {
	name string

	mu    sync.Mutex
	files map[string]vfs.File // nil value: tracked but absent

	validRoots *vfs.FileSet
}

// NewLibrary creates a library tracking paths. Each distinct path is resolved
// once; paths that do not resolve to a valid handle start out absent.
func NewLibrary(name string, paths []string, resolver vfs.Resolver) *Library {
	lib := &Library{
		name:       name,
		files:      make(map[string]vfs.File, len(paths)),
		validRoots: vfs.NewFileSet(),
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		path := vfs.CleanPath(p)
		if _, seen := lib.files[path]; seen {
			continue
		}

		var handle vfs.File
		if resolver != nil {
			if f, ok := resolver.Resolve(path); ok && f != nil && f.IsValid() {
				handle = f
			}
		}
		lib.files[path] = handle
		if handle != nil {
			lib.validRoots.Add(handle)
		}
	}

	debug.LogLibrary("Created library %q: %d tracked, %d valid\n", name, len(lib.files), lib.validRoots.Len())
	return lib
}

// UpdateFile records f as the live handle for its path. Untracked paths are ignored.
func (l *Library) UpdateFile(f vfs.File) {
	if f == nil {
		return
	}
	path := vfs.CleanPath(f.Path())

	l.mu.Lock()
	defer l.mu.Unlock()

	prev, tracked := l.files[path]
	if !tracked {
		return
	}
	if prev != nil && prev != f {
		l.validRoots.Remove(prev)
	}
	l.files[path] = f
	l.validRoots.Add(f)
	debug.LogLibrary("%s: updated %s\n", l.name, path)
}

// RemoveFile marks the path of f absent. Untracked paths are ignored.
func (l *Library) RemoveFile(f vfs.File) {
	if f == nil {
		return
	}
	l.removePath(f.Path())
}

// RemoveChild marks parent/name absent. It handles the source half of a move,
// where only the old parent and name are known.
func (l *Library) RemoveChild(parent vfs.File, name string) {
	if parent == nil {
		return
	}
	l.removePath(joinChild(parent.Path(), name))
}

func joinChild(dir, name string) string {
	return filepath.Join(dir, name)
}

func (l *Library) removePath(p string) {
	path := vfs.CleanPath(p)

	l.mu.Lock()
	defer l.mu.Unlock()

	prev, tracked := l.files[path]
	if !tracked {
		return
	}
	if prev != nil {
		l.validRoots.Remove(prev)
	}
	l.files[path] = nil
	debug.LogLibrary("%s: removed %s\n", l.name, path)
}

// reconcile re-checks every tracked path against resolver: absent paths that
// now resolve become present, and present handles that were invalidated are
// replaced or dropped. It returns how many entries changed.
func (l *Library) reconcile(resolver vfs.Resolver) int {
	l.mu.Lock()
	var stale []string
	for path, f := range l.files {
		if f == nil || !f.IsValid() {
			stale = append(stale, path)
		}
	}
	l.mu.Unlock()

	changed := 0
	for _, path := range stale {
		var fresh vfs.File
		if resolver != nil {
			if f, ok := resolver.Resolve(path); ok && f != nil && f.IsValid() {
				fresh = f
			}
		}

		l.mu.Lock()
		prev := l.files[path]
		switch {
		case prev != nil && prev.IsValid():
			// An event already made it current
		case fresh != nil && fresh.IsValid():
			if prev != nil {
				l.validRoots.Remove(prev)
			}
			l.files[path] = fresh
			l.validRoots.Add(fresh)
			changed++
		case prev != nil:
			l.validRoots.Remove(prev)
			l.files[path] = nil
			changed++
		}
		l.mu.Unlock()
	}
	return changed
}

// ValidRoots returns the live set of present handles. The set is shared, not
// copied, so callers always observe the latest updates.
func (l *Library) ValidRoots() *vfs.FileSet {
	return l.validRoots
}

// Contains reports whether f is currently one of the valid roots
func (l *Library) Contains(f vfs.File) bool {
	return l.validRoots.Contains(f)
}

// Tracks reports whether path is one of the library's paths, present or not
func (l *Library) Tracks(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.files[vfs.CleanPath(path)]
	return ok
}

// Handle returns the live handle for a tracked path
func (l *Library) Handle(path string) (vfs.File, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.files[vfs.CleanPath(path)]
	return f, f != nil
}

// Paths returns every tracked path in sorted order
func (l *Library) Paths() []string {
	l.mu.Lock()
	paths := make([]string, 0, len(l.files))
	for p := range l.files {
		paths = append(paths, p)
	}
	l.mu.Unlock()

	sort.Strings(paths)
	return paths
}

// Name is the identity of the library
func (l *Library) Name() string { return l.name }

// PresentableText is the name shown to users
func (l *Library) PresentableText() string { return l.name }

// LocationString is empty: synthetic libraries have no single location
func (l *Library) LocationString() string { return "" }

// Icon returns the presentation icon id
func (l *Library) Icon() string { return Icon }

// Equal compares libraries by name only
func (l *Library) Equal(other *Library) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.name == other.name
}

// Hash is consistent with Equal
func (l *Library) Hash() uint64 {
	return xxhash.Sum64String(l.name)
}

func (l *Library) String() string {
	return l.name
}

// Stats describes how many tracked paths are currently present
type Stats struct {
	Name    string `json:"name"`
	Tracked int    `json:"tracked"`
	Valid   int    `json:"valid"`
}

// Stats returns a consistent count of tracked and present paths
func (l *Library) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	valid := 0
	for _, f := range l.files {
		if f != nil {
			valid++
		}
	}
	return Stats{Name: l.name, Tracked: len(l.files), Valid: valid}
}
