package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/extlib/internal/config"
	"github.com/standardbeagle/extlib/internal/debug"
	"github.com/standardbeagle/extlib/internal/projectsync"
)

// Provider contributes at most one synthetic library per sync
type Provider interface {
	// ProviderKey identifies the provider and is the lookup key for its library
	ProviderKey() string
	LibraryName() string
	// LibraryFiles lists the files of the library for the given project data.
	// An empty list means the provider contributes nothing this sync.
	LibraryFiles(ctx context.Context, data *projectsync.ProjectData) ([]string, error)
}

// OutputGroupProvider takes its files from a named output group of the project data
type OutputGroupProvider struct {
	Key   string
	Name  string
	Group string
}

func (p *OutputGroupProvider) ProviderKey() string { return p.Key }
func (p *OutputGroupProvider) LibraryName() string { return p.Name }

func (p *OutputGroupProvider) LibraryFiles(ctx context.Context, data *projectsync.ProjectData) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return data.OutputGroup(p.Group), nil
}

// GlobProvider takes its files from doublestar patterns under a root.
// An empty Root means the workspace root of the project data.
type GlobProvider struct {
	Key      string
	Name     string
	Root     string
	Patterns []string
	Exclude  []string
}

func (p *GlobProvider) ProviderKey() string { return p.Key }
func (p *GlobProvider) LibraryName() string { return p.Name }

func (p *GlobProvider) LibraryFiles(ctx context.Context, data *projectsync.ProjectData) ([]string, error) {
	root := p.Root
	if root == "" && data != nil {
		root = data.WorkspaceRoot
	}
	if root == "" {
		return nil, fmt.Errorf("glob provider %s has no root", p.Key)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range p.Patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if seen[rel] || p.excluded(rel) {
				continue
			}
			seen[rel] = true
			files = append(files, filepath.Join(root, filepath.FromSlash(rel)))
		}
	}

	debug.LogLibrary("Glob provider %s matched %d files under %s\n", p.Key, len(files), root)
	return files, nil
}

func (p *GlobProvider) excluded(rel string) bool {
	for _, pattern := range p.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// ProvidersFromConfig builds one provider per configured library, in
// declaration order
func ProvidersFromConfig(cfg *config.Config) []Provider {
	providers := make([]Provider, 0, len(cfg.Libraries))
	for _, lib := range cfg.Libraries {
		name := lib.Name
		if name == "" {
			name = lib.Key
		}
		if lib.OutputGroup != "" {
			providers = append(providers, &OutputGroupProvider{Key: lib.Key, Name: name, Group: lib.OutputGroup})
			continue
		}
		providers = append(providers, &GlobProvider{
			Key:      lib.Key,
			Name:     name,
			Patterns: append([]string(nil), lib.Globs...),
			Exclude:  append([]string(nil), cfg.Exclude...),
		})
	}
	return providers
}

// ProviderFunc adapts a function to Provider
type ProviderFunc struct {
	Key   string
	Name  string
	Files func(ctx context.Context, data *projectsync.ProjectData) ([]string, error)
}

func (p *ProviderFunc) ProviderKey() string { return p.Key }
func (p *ProviderFunc) LibraryName() string { return p.Name }

func (p *ProviderFunc) LibraryFiles(ctx context.Context, data *projectsync.ProjectData) ([]string, error) {
	return p.Files(ctx, data)
}
