package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Error types for the external library manager
type ErrorType string

const (
	// Library errors
	ErrorTypeProvider ErrorType = "provider"
	ErrorTypeSync     ErrorType = "sync"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// ProviderError represents a library provider that failed to list its files
type ProviderError struct {
	Type        ErrorType
	ProviderKey string
	LibraryName string
	Underlying  error
	Timestamp   time.Time
}

// NewProviderError creates a new provider error
func NewProviderError(providerKey, libraryName string, err error) *ProviderError {
	return &ProviderError{
		Type:        ErrorTypeProvider,
		ProviderKey: providerKey,
		LibraryName: libraryName,
		Underlying:  err,
		Timestamp:   time.Now(),
	}
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.LibraryName != "" {
		return fmt.Sprintf("provider %s (%s) failed: %v", e.ProviderKey, e.LibraryName, e.Underlying)
	}
	return fmt.Sprintf("provider %s failed: %v", e.ProviderKey, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// SyncError represents a failed phase of a project sync
type SyncError struct {
	Type       ErrorType
	Phase      string
	Underlying error
	Timestamp  time.Time
}

// NewSyncError creates a new sync error for the given phase
func NewSyncError(phase string, err error) *SyncError {
	return &SyncError{
		Type:       ErrorTypeSync,
		Phase:      phase,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed: %v", e.Phase, e.Underlying)
}

// Unwrap returns the underlying error
func (e *SyncError) Unwrap() error {
	return e.Underlying
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFileNotFound
	if errors.Is(err, fs.ErrPermission) {
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error, dropping nil entries
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
