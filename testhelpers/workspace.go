package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFiles creates each relative path under root with the given content,
// creating parent directories as needed, and returns the absolute paths in
// the same order as names.
func WriteFiles(t *testing.T, root string, files map[string]string, names ...string) []string {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}

	out := make([]string, len(names))
	for i, rel := range names {
		out[i] = filepath.Join(root, rel)
	}
	return out
}

// WaitFor waits for a condition to become true with timeout
// Usage:
//
//	testhelpers.WaitFor(t, func() bool {
//	    return lib.ValidRoots().Len() == 2
//	}, 2*time.Second)
func WaitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
