// Package testhelpers provides shared utilities for testing extlib
package testhelpers

import (
	"github.com/standardbeagle/extlib/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configs with safe defaults.
// Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(root).
//		WithGlobLibrary("python", "Gen files", "gen/**/*.py").
//		WithWatch(true).
//		Build()
type TestConfigBuilder struct {
	projectRoot string
	exclusions  []string
	libraries   []config.Library
	watch       bool
	moveWindow  int
	manifest    string
}

// NewTestConfigBuilder creates a config builder for a project path with watching disabled
func NewTestConfigBuilder(projectRoot string) *TestConfigBuilder {
	return &TestConfigBuilder{
		projectRoot: projectRoot,
		exclusions:  []string{"**/.git/**"},
		moveWindow:  50,
		manifest:    config.DefaultManifestPath,
	}
}

// WithExclusions adds additional exclusion patterns
func (b *TestConfigBuilder) WithExclusions(patterns ...string) *TestConfigBuilder {
	b.exclusions = append(b.exclusions, patterns...)
	return b
}

// WithGlobLibrary declares a library whose files match globs under the root
func (b *TestConfigBuilder) WithGlobLibrary(key, name string, globs ...string) *TestConfigBuilder {
	b.libraries = append(b.libraries, config.Library{Key: key, Name: name, Globs: globs})
	return b
}

// WithOutputGroupLibrary declares a library fed from a manifest output group
func (b *TestConfigBuilder) WithOutputGroupLibrary(key, name, group string) *TestConfigBuilder {
	b.libraries = append(b.libraries, config.Library{Key: key, Name: name, OutputGroup: group})
	return b
}

// WithWatch toggles the filesystem watcher
func (b *TestConfigBuilder) WithWatch(enabled bool) *TestConfigBuilder {
	b.watch = enabled
	return b
}

// WithMoveWindow sets how long a rename waits for its create
func (b *TestConfigBuilder) WithMoveWindow(ms int) *TestConfigBuilder {
	b.moveWindow = ms
	return b
}

// WithManifest overrides the manifest path
func (b *TestConfigBuilder) WithManifest(path string) *TestConfigBuilder {
	b.manifest = path
	return b
}

// Build creates the final test config with all settings
func (b *TestConfigBuilder) Build() *config.Config {
	return &config.Config{
		Version: 1,
		Project: config.Project{
			Root:     b.projectRoot,
			Name:     "test-project",
			Manifest: b.manifest,
		},
		Watch: config.Watch{
			Enabled:      b.watch,
			DebounceMs:   10, // Fast debounce for tests
			MoveWindowMs: b.moveWindow,
		},
		Performance: config.Performance{
			MaxGoroutines: 4, // Limited for predictable behavior
		},
		Libraries: append([]config.Library{}, b.libraries...),
		Exclude:   append([]string{}, b.exclusions...),
	}
}
