package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"
)

func TestProviderError(t *testing.T) {
	underlying := errors.New("manifest missing group")
	err := NewProviderError("python", "Gen files", underlying)

	if err.Type != ErrorTypeProvider {
		t.Errorf("Expected Type to be ErrorTypeProvider, got %v", err.Type)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "provider python (Gen files) failed: manifest missing group"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}

	anon := NewProviderError("python", "", underlying)
	if anon.Error() != "provider python failed: manifest missing group" {
		t.Errorf("Unexpected message without library name: %q", anon.Error())
	}
}

func TestSyncError(t *testing.T) {
	underlying := errors.New("bad manifest")
	err := NewSyncError("load", underlying)

	if err.Type != ErrorTypeSync {
		t.Errorf("Expected Type to be ErrorTypeSync, got %v", err.Type)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "sync load failed: bad manifest"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestFileError(t *testing.T) {
	underlying := fmt.Errorf("open /path/to/file: %w", fs.ErrPermission)
	err := NewFileError("read", "/path/to/file", underlying)

	if err.Type != ErrorTypePermission {
		t.Errorf("Expected Type to be ErrorTypePermission, got %v", err.Type)
	}

	if err.Path != "/path/to/file" {
		t.Errorf("Expected Path to be '/path/to/file', got %s", err.Path)
	}

	if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("Expected error to unwrap to fs.ErrPermission")
	}
}

func TestFileErrorWithNotFound(t *testing.T) {
	err := NewFileError("stat", "/missing/file", fs.ErrNotExist)

	if err.Type != ErrorTypeFileNotFound {
		t.Errorf("Expected Type to be ErrorTypeFileNotFound, got %v", err.Type)
	}

	expectedMsg := "file stat failed for /missing/file: file does not exist"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("invalid value")
	err := NewConfigError("field_name", "invalid_value", underlying)

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := `config error for field field_name (value invalid_value): invalid value`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestMultiError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	multiErr := NewMultiError([]error{err1, nil, err2, nil})
	if len(multiErr.Errors) != 2 {
		t.Errorf("Expected 2 errors after filtering nil, got %d", len(multiErr.Errors))
	}
	if multiErr.Error() != "2 errors: [error 1 error 2]" {
		t.Errorf("Unexpected message %q", multiErr.Error())
	}
	if !errors.Is(multiErr, err2) {
		t.Errorf("Expected errors.Is to find err2 through Unwrap")
	}

	if NewMultiError([]error{err1}).Error() != "error 1" {
		t.Errorf("Expected single error message to pass through")
	}

	empty := NewMultiError(nil)
	if empty.Error() != "no errors" {
		t.Errorf("Expected 'no errors', got %q", empty.Error())
	}
	if empty.ErrorOrNil() != nil {
		t.Errorf("Expected ErrorOrNil to return nil for empty multi-error")
	}
	if multiErr.ErrorOrNil() == nil {
		t.Errorf("Expected ErrorOrNil to return the multi-error")
	}
}

func TestTimestamp(t *testing.T) {
	err := NewSyncError("test", errors.New("test"))
	if err.Timestamp.IsZero() {
		t.Errorf("Expected non-zero timestamp")
	}

	now := time.Now()
	if err.Timestamp.After(now) || now.Sub(err.Timestamp) > time.Second {
		t.Errorf("Timestamp seems incorrect: %v", err.Timestamp)
	}
}
