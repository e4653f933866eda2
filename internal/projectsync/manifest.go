package projectsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/extlib/internal/debug"
	extliberrors "github.com/standardbeagle/extlib/internal/errors"
)

// manifest is the on-disk form written by build integration:
//
//	name = "myproject"
//	workspace_root = "."
//	sync_time = 2024-05-01T10:00:00Z
//
//	[output_groups]
//	python = ["bazel-out/gen/a.py", "bazel-out/gen/b.py"]
type manifest struct {
	Name          string              `toml:"name"`
	WorkspaceRoot string              `toml:"workspace_root"`
	SyncTime      *time.Time          `toml:"sync_time"`
	OutputGroups  map[string][]string `toml:"output_groups"`
}

// ManifestLoader reads project data from a TOML manifest. A relative
// workspace_root is resolved against the default root.
type ManifestLoader struct {
	Path        string
	DefaultRoot string
	DefaultName string
	// AllowMissing turns a missing manifest into project data with no output groups
	AllowMissing bool
}

// NewManifestLoader creates a loader for the manifest at path
func NewManifestLoader(path, defaultRoot, defaultName string) *ManifestLoader {
	return &ManifestLoader{Path: path, DefaultRoot: defaultRoot, DefaultName: defaultName}
}

// Load implements DataLoader. The mode does not change what a manifest contains.
func (m *ManifestLoader) Load(ctx context.Context, mode Mode) (*ProjectData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(m.Path)
	if err != nil {
		if m.AllowMissing && errors.Is(err, fs.ErrNotExist) {
			debug.LogSync("No manifest at %s, using the workspace root only\n", m.Path)
			content = nil
		} else {
			return nil, extliberrors.NewFileError("read", m.Path, err)
		}
	}

	data, err := m.parse(content)
	if err != nil {
		return nil, extliberrors.NewSyncError("manifest", fmt.Errorf("%s: %w", m.Path, err))
	}

	if data.SyncTime.IsZero() {
		if info, err := os.Stat(m.Path); err == nil {
			data.SyncTime = info.ModTime()
		} else {
			data.SyncTime = time.Now()
		}
	}

	debug.LogSync("Loaded manifest %s (%s): %d output groups\n", m.Path, mode, len(data.OutputGroups))
	return data, nil
}

func (m *ManifestLoader) parse(content []byte) (*ProjectData, error) {
	var raw manifest
	if err := toml.Unmarshal(content, &raw); err != nil {
		return nil, err
	}

	root := m.DefaultRoot
	if raw.WorkspaceRoot != "" {
		root = raw.WorkspaceRoot
		if !filepath.IsAbs(root) {
			root = filepath.Join(m.DefaultRoot, root)
		}
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	name := raw.Name
	if name == "" {
		name = m.DefaultName
	}
	if name == "" {
		name = filepath.Base(root)
	}

	data := &ProjectData{
		WorkspaceRoot: root,
		Name:          name,
		OutputGroups:  make(map[string][]string, len(raw.OutputGroups)),
	}
	for group, paths := range raw.OutputGroups {
		data.OutputGroups[group] = append([]string(nil), paths...)
	}
	if raw.SyncTime != nil {
		data.SyncTime = *raw.SyncTime
	}
	return data, nil
}
