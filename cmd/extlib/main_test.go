package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/extlib/internal/config"
	"github.com/standardbeagle/extlib/internal/project"
	"github.com/standardbeagle/extlib/internal/projectsync"
	"github.com/standardbeagle/extlib/internal/vfs"
	"github.com/standardbeagle/extlib/testhelpers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testConfig = `
watch {
    enabled false
}
library "python" {
    name "Gen files"
    glob "gen/**/*.py"
}
library "go_gen" {
    name "Generated Go"
    output_group "go_generated"
}
`

const testManifest = `
name = "demo"

[output_groups]
go_generated = ["bazel-out/gen/api.pb.go", "bazel-out/gen/missing.pb.go"]
`

// setupTestProject writes a workspace with a config and manifest, isolated from ~/.extlib.kdl
func setupTestProject(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	testhelpers.WriteFiles(t, root, map[string]string{
		config.ConfigFileName:      testConfig,
		config.DefaultManifestPath: testManifest,
		"gen/a.py":                 "a",
		"gen/sub/b.py":             "b",
		"bazel-out/gen/api.pb.go":  "package gen",
		"src/main.go":              "package main",
	})
	return root
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.RunContext(context.Background(), append([]string{"extlib"}, args...))
	return out.String(), err
}

func TestLibrariesCommand(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "libraries")
	require.NoError(t, err)
	assert.Contains(t, out, "Gen files")
	assert.Contains(t, out, "2/2 valid")
	assert.Contains(t, out, "Generated Go")
	assert.Contains(t, out, "1/2 valid")
}

func TestLibrariesCommand_JSON(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "--json", "ls")
	require.NoError(t, err)

	var libs []libraryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &libs))
	require.Len(t, libs, 2)
	assert.Equal(t, "python", libs[0].Provider)
	assert.Equal(t, "go_gen", libs[1].Provider)
	assert.Equal(t, 1, libs[1].Valid)
}

func TestSyncCommand(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "--json", "sync", "--mode", "incremental")
	require.NoError(t, err)

	var res syncOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "incremental", res.Mode)
	assert.Equal(t, "success", res.Result)
	assert.Empty(t, res.Error)
	assert.Len(t, res.Libraries, 2)
	assert.Equal(t, []string{"go_generated"}, res.OutputGroups)
}

func TestSyncCommand_BrokenManifest(t *testing.T) {
	root := setupTestProject(t)
	testhelpers.WriteFiles(t, root, map[string]string{config.DefaultManifestPath: "name = ["})

	out, err := runCLI(t, "--root", root, "sync")
	require.Error(t, err)
	assert.Contains(t, out, "Sync (full): failure")
}

func TestSyncCommand_InvalidMode(t *testing.T) {
	root := setupTestProject(t)

	_, err := runCLI(t, "--root", root, "sync", "--mode", "sideways")
	assert.Error(t, err)
}

func TestManifestOverride(t *testing.T) {
	root := setupTestProject(t)
	other := filepath.Join(t.TempDir(), "other.toml")
	require.NoError(t, os.WriteFile(other, []byte("[output_groups]\ngo_generated = [\"src/main.go\"]\n"), 0644))

	out, err := runCLI(t, "--root", root, "--manifest", other, "show", "go_gen")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join("src", "main.go"))
}

func TestShowCommand(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "show", "Gen files")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Gen files [python] 2/2 valid", lines[0])
	assert.Equal(t, "  "+filepath.Join("gen", "a.py"), lines[1], "roots are printed relative to the root")
	assert.Equal(t, "  "+filepath.Join("gen", "sub", "b.py"), lines[2])
}

func TestShowCommand_Suggestions(t *testing.T) {
	root := setupTestProject(t)

	_, err := runCLI(t, "--root", root, "show", "pyhton")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no library named "pyhton"`)
	assert.Contains(t, err.Error(), "did you mean python")

	_, err = runCLI(t, "--root", root, "show")
	assert.Error(t, err)
}

func TestExcludeFlag(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "--exclude", "**/sub/**", "show", "python")
	require.NoError(t, err)
	assert.Contains(t, out, "1/1 valid")
	assert.NotContains(t, out, "b.py")
}

// syncBuffer is written from timer goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReprinter(t *testing.T) {
	root := t.TempDir()
	paths := testhelpers.WriteFiles(t, root, map[string]string{"gen/a.py": "a", "gen/b.py": "b"}, "gen/a.py")
	cfg := testhelpers.NewTestConfigBuilder(root).WithGlobLibrary("python", "Gen files", "gen/*.py").Build()

	p, err := project.Open(context.Background(), cfg, project.Options{})
	require.NoError(t, err)
	defer p.Close()
	_, err = p.Sync(context.Background(), projectsync.Full)
	require.NoError(t, err)

	var out syncBuffer
	r := newReprinter(p, &out, 10*time.Millisecond)
	sub := p.Subscribe(r)
	defer sub.Unsubscribe()
	defer r.stop()

	// An event that changes nothing is coalesced away
	f, ok := p.FS.Resolve(filepath.Join(root, "gen", "b.py"))
	require.True(t, ok)
	p.Bus.Publish(vfs.Event{Op: vfs.Created, File: f})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, out.String())

	require.NoError(t, os.Remove(paths[0]))
	for _, gone := range p.FS.Forget(paths[0]) {
		p.Bus.Publish(vfs.Event{Op: vfs.Deleted, File: gone})
	}

	testhelpers.WaitFor(t, func() bool { return strings.Contains(out.String(), "1/2 valid") }, 2*time.Second)
	assert.Contains(t, out.String(), "Libraries changed")
}

func TestEqualFingerprints(t *testing.T) {
	assert.True(t, equalFingerprints(map[string]uint64{"a": 1}, map[string]uint64{"a": 1}))
	assert.False(t, equalFingerprints(map[string]uint64{"a": 1}, map[string]uint64{"a": 2}))
	assert.False(t, equalFingerprints(map[string]uint64{"a": 1}, map[string]uint64{"b": 1}))
	assert.False(t, equalFingerprints(map[string]uint64{"a": 1}, nil))
}
