package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/root-talis/dankai/migration"
)

func TestVersionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00000", migration.Version(0).String())
	assert.Equal(t, "00001", migration.Version(1).String())
	assert.Equal(t, "00042", migration.Version(42).String())
	// Values wider than the display width are never truncated.
	assert.Equal(t, "20220118115519", migration.Version(20220118115519).String())
}

func TestDirectionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "up", migration.Up.String())
	assert.Equal(t, "down", migration.Down.String())
}
