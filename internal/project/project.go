// Package project ties the pieces of extlib together for one open project:
// the local VFS and its event bus, the filesystem watcher, the library
// registry and the sync runner. A Project is created when the project is
// opened and everything it owns is released by Close.
package project

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/standardbeagle/extlib/internal/config"
	"github.com/standardbeagle/extlib/internal/debug"
	"github.com/standardbeagle/extlib/internal/library"
	"github.com/standardbeagle/extlib/internal/projectsync"
	"github.com/standardbeagle/extlib/internal/vfs"
)

type Project struct {
	Config   *config.Config
	FS       *vfs.LocalFS
	Bus      *vfs.Bus
	Registry *library.Registry
	Runner   *projectsync.Runner

	watcher   *vfs.Watcher
	closeOnce sync.Once
}

// Options customize how a project is assembled. The zero value builds
// providers from the config and reads project data from the configured manifest.
type Options struct {
	Providers []library.Provider
	Loader    projectsync.DataLoader
}

// Open assembles a project from cfg and starts watching the project root when
// watching is enabled. No sync is run; call Sync for that.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := config.NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}

	providers := opts.Providers
	if providers == nil {
		providers = library.ProvidersFromConfig(cfg)
	}

	loader := opts.Loader
	if loader == nil {
		ml := projectsync.NewManifestLoader(cfg.ManifestPath(), cfg.Project.Root, cfg.Project.Name)
		ml.AllowMissing = true
		loader = ml
	}

	p := &Project{
		Config: cfg,
		FS:     vfs.NewLocalFS(),
		Bus:    vfs.NewBus(),
		Runner: projectsync.NewRunner(loader),
	}
	p.Registry = library.NewRegistry(providers, p.FS, p.Bus,
		library.WithMaxGoroutines(cfg.Performance.MaxGoroutines))
	p.Runner.AddListener(p.Registry)
	p.Runner.AddPlugin(p.Registry)

	if cfg.Watch.Enabled {
		w, err := vfs.NewWatcher(cfg, p.FS, p.Bus)
		if err != nil {
			_ = p.Registry.Close()
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			_ = w.Stop()
			_ = p.Registry.Close()
			return nil, fmt.Errorf("failed to start file watcher: %w", err)
		}
		p.watcher = w
	}

	debug.LogSync("Opened project %s at %s with %d providers\n", cfg.Project.Name, cfg.Project.Root, len(providers))
	return p, nil
}

// Sync runs one sync of the project
func (p *Project) Sync(ctx context.Context, mode projectsync.Mode) (projectsync.Result, error) {
	result, err := p.Runner.Run(ctx, mode)
	if err != nil && result != projectsync.Cancelled {
		log.Printf("Sync (%s) finished with %s: %v", mode, result, err)
	}
	return result, err
}

// Subscribe registers l for filesystem events after the registry has seen them
func (p *Project) Subscribe(l vfs.Listener) vfs.Subscription {
	return p.Bus.Subscribe(l)
}

// WatchStats reports watcher activity, or false when the project is not watched
func (p *Project) WatchStats() (vfs.WatchStats, bool) {
	if p.watcher == nil {
		return vfs.WatchStats{}, false
	}
	return p.watcher.Stats(), true
}

// Close stops the watcher and detaches the registry from the event bus
func (p *Project) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if p.watcher != nil {
			if stopErr := p.watcher.Stop(); stopErr != nil {
				err = fmt.Errorf("failed to stop file watcher: %w", stopErr)
			}
		}
		_ = p.Registry.Close()
		debug.LogSync("Closed project %s\n", p.Config.Project.Name)
	})
	return err
}
