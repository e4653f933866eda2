// Package vfs provides live file handles over the local disk and the event
// feed that reports when those handles are created, deleted or moved.
//
// A handle is interned per cleaned absolute path: resolving the same existing
// path twice yields the same File value until the file is deleted or moved
// away, at which point the handle reports IsValid() == false and a later
// resolve produces a fresh handle.
package vfs

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/extlib/internal/debug"
)

// File is a live handle to a file or directory.
type File interface {
	// Path is the cleaned absolute path the handle was resolved from.
	Path() string
	Name() string
	// Parent returns the handle of the containing directory, or nil at the filesystem root.
	Parent() File
	IsDir() bool
	IsValid() bool
}

// Resolver turns a path into a live handle.
type Resolver interface {
	// Resolve returns ok == false when nothing exists at path.
	Resolve(path string) (File, bool)
}

// CleanPath returns the stable form of a path used as a map key everywhere in extlib.
func CleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// LocalFS interns handles for paths on the local disk.
type LocalFS struct {
	mu    sync.RWMutex
	files map[string]*localFile
}

// NewLocalFS creates an empty handle table
func NewLocalFS() *LocalFS {
	return &LocalFS{files: make(map[string]*localFile)}
}

type localFile struct {
	fs    *LocalFS
	path  string
	isDir bool
	valid atomic.Bool
}

func (f *localFile) Path() string  { return f.path }
func (f *localFile) Name() string  { return filepath.Base(f.path) }
func (f *localFile) IsDir() bool   { return f.isDir }
func (f *localFile) IsValid() bool { return f.valid.Load() }
func (f *localFile) String() string {
	return f.path
}

func (f *localFile) Parent() File {
	dir := filepath.Dir(f.path)
	if dir == f.path {
		return nil
	}
	if parent, ok := f.fs.Resolve(dir); ok {
		return parent
	}
	// The directory is gone but callers still need its path to join names against
	return f.fs.detached(dir, true)
}

// Resolve returns the interned handle for path, creating it when the path exists on disk.
func (l *LocalFS) Resolve(path string) (File, bool) {
	path = CleanPath(path)

	info, err := os.Stat(path)
	if err != nil {
		l.Forget(path)
		return nil, false
	}

	l.mu.RLock()
	existing, ok := l.files[path]
	l.mu.RUnlock()
	if ok && existing.IsValid() && existing.isDir == info.IsDir() {
		return existing, true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.files[path]; ok {
		if existing.IsValid() && existing.isDir == info.IsDir() {
			return existing, true
		}
		// Replaced by a different kind of entry
		existing.valid.Store(false)
	}
	f := &localFile{fs: l, path: path, isDir: info.IsDir()}
	f.valid.Store(true)
	l.files[path] = f
	return f, true
}

// Forget invalidates the handle at path and every interned handle below it.
// It returns the handles it dropped; when nothing was interned at path a
// detached, already invalid handle is returned in its place so that callers
// can still publish the path.
func (l *LocalFS) Forget(path string) []File {
	path = CleanPath(path)
	prefix := path + string(filepath.Separator)

	l.mu.Lock()
	var dropped []File
	var self File
	for p, f := range l.files {
		if p == path || strings.HasPrefix(p, prefix) {
			f.valid.Store(false)
			delete(l.files, p)
			if p == path {
				self = f
			} else {
				dropped = append(dropped, f)
			}
		}
	}
	l.mu.Unlock()

	if self == nil {
		self = l.detached(path, false)
	}
	if len(dropped) > 0 {
		debug.LogVFS("Forgot %s and %d nested handles\n", path, len(dropped))
	}
	// Children first so the directory itself is reported last
	return append(dropped, self)
}

// Len returns the number of interned handles
func (l *LocalFS) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.files)
}

func (l *LocalFS) detached(path string, isDir bool) File {
	return &localFile{fs: l, path: path, isDir: isDir}
}
