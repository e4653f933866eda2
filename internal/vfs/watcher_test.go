package vfs

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/extlib/testhelpers"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) find(op Op, path string) (Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.Op == op && e.File != nil && e.File.Path() == path {
			return e, true
		}
	}
	return Event{}, false
}

func (p *recordingPublisher) has(op Op, path string) bool {
	_, ok := p.find(op, path)
	return ok
}

func startWatcher(t *testing.T, root string, moveWindowMs int) (*Watcher, *LocalFS, *recordingPublisher) {
	t.Helper()

	cfg := testhelpers.NewTestConfigBuilder(root).
		WithWatch(true).
		WithMoveWindow(moveWindowMs).
		WithExclusions("**/ignored/**").
		Build()

	lfs := NewLocalFS()
	pub := &recordingPublisher{}
	w, err := NewWatcher(cfg, lfs, pub)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	return w, lfs, pub
}

func TestWatcher_Create(t *testing.T) {
	root := t.TempDir()
	_, _, pub := startWatcher(t, root, 50)

	paths := testhelpers.WriteFiles(t, root, map[string]string{"a.py": "a"}, "a.py")

	testhelpers.WaitFor(t, func() bool { return pub.has(Created, paths[0]) }, 2*time.Second)
	e, _ := pub.find(Created, paths[0])
	assert.True(t, e.File.IsValid())
}

func TestWatcher_Delete(t *testing.T) {
	root := t.TempDir()
	paths := testhelpers.WriteFiles(t, root, map[string]string{"a.py": "a"}, "a.py")
	_, lfs, pub := startWatcher(t, root, 50)

	handle, ok := lfs.Resolve(paths[0])
	require.True(t, ok)

	require.NoError(t, os.Remove(paths[0]))

	testhelpers.WaitFor(t, func() bool { return pub.has(Deleted, paths[0]) }, 2*time.Second)
	e, _ := pub.find(Deleted, paths[0])
	assert.Same(t, handle, e.File, "the deleted event carries the interned handle")
	assert.False(t, handle.IsValid())
}

func TestWatcher_RenamePairsIntoMove(t *testing.T) {
	root := t.TempDir()
	paths := testhelpers.WriteFiles(t, root, map[string]string{"a.py": "a"}, "a.py")
	_, lfs, pub := startWatcher(t, root, 500)

	old, ok := lfs.Resolve(paths[0])
	require.True(t, ok)

	newPath := filepath.Join(root, "b.py")
	require.NoError(t, os.Rename(paths[0], newPath))

	testhelpers.WaitFor(t, func() bool { return pub.has(Moved, newPath) }, 2*time.Second)
	e, _ := pub.find(Moved, newPath)
	assert.Equal(t, paths[0], e.OldPath())
	assert.Equal(t, "a.py", e.OldName)
	assert.Equal(t, root, e.OldParent.Path())
	assert.False(t, old.IsValid(), "the source handle is invalidated by the move")

	// Give the expiry ticker a chance to run; the paired rename must not also become a delete
	time.Sleep(600 * time.Millisecond)
	assert.False(t, pub.has(Deleted, paths[0]))
}

func TestWatcher_UnpairedRenameExpiresAsDelete(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	paths := testhelpers.WriteFiles(t, root, map[string]string{"a.py": "a"}, "a.py")
	_, lfs, pub := startWatcher(t, root, 50)

	_, ok := lfs.Resolve(paths[0])
	require.True(t, ok)

	require.NoError(t, os.Rename(paths[0], filepath.Join(outside, "a.py")))

	testhelpers.WaitFor(t, func() bool { return pub.has(Deleted, paths[0]) }, 2*time.Second)
	assert.False(t, pub.has(Moved, filepath.Join(outside, "a.py")))
}

func TestWatcher_ZeroMoveWindowReportsDeleteAndCreate(t *testing.T) {
	root := t.TempDir()
	paths := testhelpers.WriteFiles(t, root, map[string]string{"a.py": "a"}, "a.py")
	_, lfs, pub := startWatcher(t, root, 0)

	_, ok := lfs.Resolve(paths[0])
	require.True(t, ok)

	newPath := filepath.Join(root, "b.py")
	require.NoError(t, os.Rename(paths[0], newPath))

	testhelpers.WaitFor(t, func() bool {
		return pub.has(Deleted, paths[0]) && pub.has(Created, newPath)
	}, 2*time.Second)
	assert.False(t, pub.has(Moved, newPath))
}

func TestWatcher_NewDirectoryContentsArePublished(t *testing.T) {
	root := t.TempDir()
	_, _, pub := startWatcher(t, root, 50)

	staging := t.TempDir()
	testhelpers.WriteFiles(t, staging, map[string]string{"pkg/x.py": "x"})
	dest := filepath.Join(root, "pkg")
	require.NoError(t, os.Rename(filepath.Join(staging, "pkg"), dest))

	testhelpers.WaitFor(t, func() bool {
		return pub.has(Created, dest) && pub.has(Created, filepath.Join(dest, "x.py"))
	}, 2*time.Second)
}

func TestWatcher_ExcludedDirectoryIsIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ignored"), 0755))
	_, _, pub := startWatcher(t, root, 50)

	paths := testhelpers.WriteFiles(t, root, map[string]string{
		"ignored/skip.py": "s",
		"keep.py":         "k",
	}, "ignored/skip.py", "keep.py")

	testhelpers.WaitFor(t, func() bool { return pub.has(Created, paths[1]) }, 2*time.Second)
	assert.False(t, pub.has(Created, paths[0]))
}

func TestWatcher_DisabledDoesNothing(t *testing.T) {
	root := t.TempDir()
	cfg := testhelpers.NewTestConfigBuilder(root).Build()

	w, err := NewWatcher(cfg, NewLocalFS(), &recordingPublisher{})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	assert.False(t, w.Stats().IsActive)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w, _, _ := startWatcher(t, root, 50)

	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
	assert.False(t, w.Stats().IsActive)
}

func TestWatcher_StatsCountPublishedEvents(t *testing.T) {
	root := t.TempDir()
	w, _, pub := startWatcher(t, root, 50)

	paths := testhelpers.WriteFiles(t, root, map[string]string{"a.py": "a"}, "a.py")
	testhelpers.WaitFor(t, func() bool { return pub.has(Created, paths[0]) }, 2*time.Second)

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.EventsProcessed, int64(1))
	assert.True(t, stats.IsActive)
	assert.False(t, stats.LastEventTime.IsZero())
}
