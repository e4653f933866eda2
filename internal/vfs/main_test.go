package vfs

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain fails the package if a watcher goroutine outlives its test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
