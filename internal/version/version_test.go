package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullInfo_ReflectsLinkTimeValues(t *testing.T) {
	origCommit, origDate := GitCommit, BuildDate
	defer func() { GitCommit, BuildDate = origCommit, origDate }()

	GitCommit = "abc1234"
	BuildDate = "2026-10-18"

	assert.Equal(t, "extlib "+Version+" (commit: abc1234, built: 2026-10-18)", FullInfo())
}

func TestBuildID_IsStable(t *testing.T) {
	id := BuildID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, BuildID())
}
