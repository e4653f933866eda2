package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	// ConfigFileName is looked up in the project root and the user's home directory
	ConfigFileName = ".extlib.kdl"

	// DefaultManifestPath is where build integration writes the project manifest, relative to the root
	DefaultManifestPath = ".extlib/project.toml"

	DefaultWatchDebounceMs = 200
	DefaultMoveWindowMs    = 100
)

type Config struct {
	Version     int
	Project     Project
	Watch       Watch
	Performance Performance
	Libraries   []Library
	Exclude     []string
}

type Project struct {
	Root     string
	Name     string
	Manifest string // Project data manifest written by the build system sync
}

type Watch struct {
	Enabled      bool // Forward filesystem changes to library records between syncs
	DebounceMs   int  // Coalescing window for change notifications to listeners such as the CLI
	MoveWindowMs int  // How long a rename waits for its matching create before it counts as a delete; 0 disables pairing
}

type Performance struct {
	MaxGoroutines int // Upper bound on providers listing files concurrently during a rebuild
}

// Library declares one provider. Exactly one of OutputGroup or Globs selects the files.
type Library struct {
	Key         string
	Name        string
	OutputGroup string
	Globs       []string
}

// Load reads configuration for a project rooted at rootDir.
// The global ~/.extlib.kdl is used as a base and the project file overrides it.
func Load(rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	homeDir, err := os.UserHomeDir()
	var baseConfig *Config
	if err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	if kdlCfg, err := LoadKDL(searchDir); err != nil {
		return nil, err
	} else if kdlCfg != nil {
		projectConfig = kdlCfg
	}

	absRoot, err := filepath.Abs(searchDir)
	if err != nil {
		absRoot = searchDir
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		// The home directory config must not point the project at the home directory
		baseConfig.Project.Root = absRoot
		return baseConfig, nil
	}

	return Default(absRoot), nil
}

// Default returns the configuration used when no config file exists
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{
			Root:     root,
			Name:     filepath.Base(root),
			Manifest: DefaultManifestPath,
		},
		Watch: Watch{
			Enabled:      true,
			DebounceMs:   DefaultWatchDebounceMs,
			MoveWindowMs: DefaultMoveWindowMs,
		},
		Performance: Performance{
			MaxGoroutines: runtime.NumCPU(),
		},
		Exclude: defaultExclusions(),
	}
}

// ManifestPath returns the absolute path of the project manifest
func (c *Config) ManifestPath() string {
	if filepath.IsAbs(c.Project.Manifest) {
		return c.Project.Manifest
	}
	return filepath.Join(c.Project.Root, c.Project.Manifest)
}

// mergeConfigs merges a base config with a project config.
// Project config takes precedence, but base exclusions and base-only libraries are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	}

	seen := make(map[string]bool, len(project.Libraries))
	for _, lib := range project.Libraries {
		seen[lib.Key] = true
	}
	merged.Libraries = append([]Library{}, project.Libraries...)
	for _, lib := range base.Libraries {
		if !seen[lib.Key] {
			merged.Libraries = append(merged.Libraries, lib)
		}
	}

	return &merged
}

// DeduplicatePatterns removes repeated patterns while keeping first-seen order
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func defaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/.hg/**",
		"**/.idea/**",
		"**/node_modules/**",
		"**/__pycache__/**",
	}
}
