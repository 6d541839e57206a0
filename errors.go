package dankai

import (
	"errors"
	"fmt"

	"github.com/root-talis/dankai/migration"
)

// ErrDirtyState blocks every migration attempt after a failed run. It is
// never cleared automatically; only an explicit force resolves it.
var ErrDirtyState = errors.New("database is in a dirty state: inspect it and force the correct version before migrating")

// ExecutionError reports the exact script whose execution failed. The rest
// of the plan is abandoned and the version store is left dirty.
type ExecutionError struct {
	Migration migration.Migration
	Direction migration.Direction
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf(
		"failed to apply %s migration %s (%s): %v",
		e.Direction,
		e.Migration.Version,
		e.Migration.Name,
		e.Err,
	)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
