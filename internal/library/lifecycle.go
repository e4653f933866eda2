package library

import (
	"context"

	"github.com/standardbeagle/extlib/internal/debug"
	"github.com/standardbeagle/extlib/internal/projectsync"
)

var (
	_ projectsync.Listener = (*Registry)(nil)
	_ projectsync.Plugin   = (*Registry)(nil)
)

// OnSyncStart hides every library until the sync delivers new project data or ends
func (r *Registry) OnSyncStart(_ context.Context, mode projectsync.Mode) {
	r.syncing.Store(true)
	debug.LogSync("Registry hidden for %s sync\n", mode)
}

// UpdateProjectStructure rebuilds the libraries from the new project data and
// makes them visible again
func (r *Registry) UpdateProjectStructure(ctx context.Context, data *projectsync.ProjectData) error {
	defer r.syncing.Store(false)
	return r.Rebuild(ctx, data)
}

// AfterSync makes the libraries visible whatever the outcome of the sync.
// A sync that fails before delivering project data keeps the previous libraries.
func (r *Registry) AfterSync(_ context.Context, result projectsync.Result) {
	r.syncing.Store(false)
	debug.LogSync("Registry visible after sync (%s)\n", result)
}
