package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	Stamp()
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })

	Version, Commit, Date = "v1.2.0", "abc123", ""
	assert.Equal(t, "v1.2.0 (abc123)", String())

	Commit, Date = "", "2026-01-02T03:04:05Z"
	assert.Equal(t, "v1.2.0 (local, 2026-01-02T03:04:05Z)", String())
}
