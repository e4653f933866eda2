package library

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"

	"github.com/standardbeagle/extlib/internal/vfs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFile is an in-memory handle; identity is the pointer
type fakeFile struct {
	path  string
	isDir bool
	valid atomic.Bool
}

func newFakeFile(path string, valid bool) *fakeFile {
	f := &fakeFile{path: filepath.Clean(path)}
	f.valid.Store(valid)
	return f
}

func (f *fakeFile) Path() string  { return f.path }
func (f *fakeFile) Name() string  { return filepath.Base(f.path) }
func (f *fakeFile) IsDir() bool   { return f.isDir }
func (f *fakeFile) IsValid() bool { return f.valid.Load() }
func (f *fakeFile) Parent() vfs.File {
	dir := filepath.Dir(f.path)
	if dir == f.path {
		return nil
	}
	d := newFakeFile(dir, true)
	d.isDir = true
	return d
}

// fakeFS resolves only the paths that were created on it
type fakeFS struct {
	mu    sync.Mutex
	files map[string]*fakeFile
	calls map[string]int
}

func newFakeFS(existing ...string) *fakeFS {
	fs := &fakeFS{files: map[string]*fakeFile{}, calls: map[string]int{}}
	for _, p := range existing {
		fs.create(p)
	}
	return fs
}

func (fs *fakeFS) Resolve(path string) (vfs.File, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls[path]++
	f, ok := fs.files[path]
	if !ok {
		return nil, false
	}
	return f, true
}

func (fs *fakeFS) create(path string) *fakeFile {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := newFakeFile(path, true)
	fs.files[f.path] = f
	return f
}

func (fs *fakeFS) delete(path string) *fakeFile {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := fs.files[path]
	if f != nil {
		f.valid.Store(false)
		delete(fs.files, path)
	}
	return f
}

func (fs *fakeFS) handle(path string) *fakeFile {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.files[path]
}

func (fs *fakeFS) resolveCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls[path]
}

// assertInvariant checks that the valid roots are exactly the present handles
func assertInvariant(t *testing.T, lib *Library) {
	t.Helper()

	present := map[vfs.File]bool{}
	for _, p := range lib.Paths() {
		if f, ok := lib.Handle(p); ok {
			present[f] = true
		}
	}

	roots := lib.ValidRoots()
	if roots.Len() != len(present) {
		t.Fatalf("valid roots has %d handles, mapping has %d present", roots.Len(), len(present))
	}
	roots.Range(func(f vfs.File) bool {
		if !present[f] {
			t.Fatalf("valid roots contains %s which is not present in the mapping", f.Path())
		}
		return true
	})
}
