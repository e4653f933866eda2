// Package projectsync defines the project sync lifecycle: listeners hear when a
// sync starts and ends, plugins receive the freshly loaded project data in
// between, and a Runner drives the whole sequence.
package projectsync

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Mode selects how much work a sync does
type Mode int

const (
	// Full reloads project data from the build system
	Full Mode = iota
	// Incremental reloads project data but callers may skip unchanged targets
	Incremental
	// NoBuild reuses the data of the last successful sync when there is one
	NoBuild
)

func (m Mode) String() string {
	switch m {
	case Full:
		return "full"
	case Incremental:
		return "incremental"
	case NoBuild:
		return "no_build"
	default:
		return "unknown"
	}
}

// ParseMode accepts the names produced by Mode.String
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return Full, nil
	case "incremental":
		return Incremental, nil
	case "no_build", "nobuild", "no-build":
		return NoBuild, nil
	}
	return Full, fmt.Errorf("unknown sync mode %q", s)
}

// Result is the outcome a sync reports to listeners when it ends
type Result int

const (
	Success Result = iota
	PartialSuccess
	Failure
	Cancelled
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case PartialSuccess:
		return "partial_success"
	case Failure:
		return "failure"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProjectData is what a sync learned about the project from the build system
type ProjectData struct {
	WorkspaceRoot string
	Name          string
	// OutputGroups maps a group name to the files the build produced for it.
	// Paths may be relative to WorkspaceRoot.
	OutputGroups map[string][]string
	SyncTime     time.Time
}

// OutputGroup returns the absolute paths of a group in declaration order
func (d *ProjectData) OutputGroup(name string) []string {
	if d == nil {
		return nil
	}
	paths := d.OutputGroups[name]
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(d.WorkspaceRoot, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

// GroupNames returns the sorted names of all output groups
func (d *ProjectData) GroupNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.OutputGroups))
	for name := range d.OutputGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Listener is told when a sync starts and when it ends.
// AfterSync is called for every OnSyncStart, whatever the outcome.
type Listener interface {
	OnSyncStart(ctx context.Context, mode Mode)
	AfterSync(ctx context.Context, result Result)
}

// Plugin receives the project data once a sync has loaded it
type Plugin interface {
	UpdateProjectStructure(ctx context.Context, data *ProjectData) error
}

// DataLoader produces project data for a sync
type DataLoader interface {
	Load(ctx context.Context, mode Mode) (*ProjectData, error)
}

// DataLoaderFunc adapts a function to DataLoader
type DataLoaderFunc func(ctx context.Context, mode Mode) (*ProjectData, error)

func (f DataLoaderFunc) Load(ctx context.Context, mode Mode) (*ProjectData, error) {
	return f(ctx, mode)
}
