package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, c, d := Info()
	assert.Equal(t, v+" (commit: "+c+", built: "+d+")", String())
}

func TestStringWithLdflags(t *testing.T) {
	old := [3]string{Version, GitCommit, BuildDate}
	t.Cleanup(func() { Version, GitCommit, BuildDate = old[0], old[1], old[2] })

	Version, GitCommit, BuildDate = "1.2.3", "abc123", "2026-01-02"
	assert.Equal(t, "1.2.3 (commit: abc123, built: 2026-01-02)", String())
}
