package vfs

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// FileSet is a set of handles that is safe for concurrent use without external locking.
// Reads never block writers; a reader may observe a set that is one update behind.
type FileSet struct {
	files sync.Map // File -> struct{}
	count atomic.Int64
}

// NewFileSet creates a set seeded with files
func NewFileSet(files ...File) *FileSet {
	s := &FileSet{}
	for _, f := range files {
		s.Add(f)
	}
	return s
}

// Add inserts f and reports whether it was absent
func (s *FileSet) Add(f File) bool {
	if f == nil {
		return false
	}
	if _, loaded := s.files.LoadOrStore(f, struct{}{}); loaded {
		return false
	}
	s.count.Add(1)
	return true
}

// Remove deletes f and reports whether it was present
func (s *FileSet) Remove(f File) bool {
	if f == nil {
		return false
	}
	if _, loaded := s.files.LoadAndDelete(f); !loaded {
		return false
	}
	s.count.Add(-1)
	return true
}

// Contains reports whether f is in the set
func (s *FileSet) Contains(f File) bool {
	if f == nil {
		return false
	}
	_, ok := s.files.Load(f)
	return ok
}

// Len returns the number of handles in the set
func (s *FileSet) Len() int {
	return int(s.count.Load())
}

// Range calls fn for each handle until fn returns false
func (s *FileSet) Range(fn func(File) bool) {
	s.files.Range(func(key, _ any) bool {
		return fn(key.(File))
	})
}

// Snapshot returns the handles sorted by path
func (s *FileSet) Snapshot() []File {
	out := make([]File, 0, s.Len())
	s.Range(func(f File) bool {
		out = append(out, f)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out
}

// Paths returns the sorted paths of the handles in the set
func (s *FileSet) Paths() []string {
	snap := s.Snapshot()
	out := make([]string, len(snap))
	for i, f := range snap {
		out[i] = f.Path()
	}
	return out
}

// Fingerprint hashes the sorted member paths; equal fingerprints mean equal path sets
func (s *FileSet) Fingerprint() uint64 {
	h := xxhash.New()
	for _, p := range s.Paths() {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
