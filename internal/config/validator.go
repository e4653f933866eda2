package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	extliberrors "github.com/standardbeagle/extlib/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults.
// Returns a *errors.ConfigError naming the offending section on failure.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return extliberrors.NewConfigError("project", cfg.Project.Root, err)
	}

	if err := v.validateWatchConfig(&cfg.Watch); err != nil {
		return extliberrors.NewConfigError("watch", "", err)
	}

	for i := range cfg.Libraries {
		if err := v.validateLibrary(&cfg.Libraries[i]); err != nil {
			return extliberrors.NewConfigError("library", cfg.Libraries[i].Key, err)
		}
	}
	if key, dup := duplicateLibraryKey(cfg.Libraries); dup {
		return extliberrors.NewConfigError("library", key, errors.New("library key declared more than once"))
	}

	for _, pattern := range cfg.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return extliberrors.NewConfigError("exclude", pattern, errors.New("invalid glob pattern"))
		}
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	if project.Manifest == "" {
		return errors.New("project manifest path cannot be empty")
	}
	return nil
}

func (v *Validator) validateWatchConfig(watch *Watch) error {
	if watch.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms cannot be negative, got %d", watch.DebounceMs)
	}
	if watch.MoveWindowMs < 0 {
		return fmt.Errorf("move_window_ms cannot be negative, got %d", watch.MoveWindowMs)
	}
	if watch.MoveWindowMs > 10000 {
		return fmt.Errorf("move_window_ms should not exceed 10000, got %d", watch.MoveWindowMs)
	}
	return nil
}

func (v *Validator) validateLibrary(lib *Library) error {
	if strings.TrimSpace(lib.Key) == "" {
		return errors.New("library key cannot be empty")
	}
	if lib.OutputGroup == "" && len(lib.Globs) == 0 {
		return errors.New("library needs an output_group or at least one glob")
	}
	if lib.OutputGroup != "" && len(lib.Globs) > 0 {
		return errors.New("library cannot declare both output_group and glob")
	}
	for _, g := range lib.Globs {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("invalid glob pattern %q", g)
		}
	}
	return nil
}

func duplicateLibraryKey(libs []Library) (string, bool) {
	seen := make(map[string]bool, len(libs))
	for _, lib := range libs {
		if seen[lib.Key] {
			return lib.Key, true
		}
		seen[lib.Key] = true
	}
	return "", false
}

func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Performance.MaxGoroutines <= 0 {
		cfg.Performance.MaxGoroutines = runtime.NumCPU()
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = DefaultWatchDebounceMs
	}
	for i := range cfg.Libraries {
		if cfg.Libraries[i].Name == "" {
			cfg.Libraries[i].Name = cfg.Libraries[i].Key
		}
	}
}
