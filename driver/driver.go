package driver

import (
	"context"
	"errors"

	"github.com/root-talis/dankai/migration"
)

// State is the singleton version record owned by the target database. It is
// the sole source of truth across invocations; every operation re-reads it.
type State struct {
	Version migration.Version
	Dirty   bool
}

// Driver combines the version store and the script execution primitive for
// one database backend. Exec never inspects the script body.
type Driver interface {
	// State returns the persisted record, or a zero State if the store
	// was never initialized.
	State(ctx context.Context) (State, error)
	SetVersion(ctx context.Context, v migration.Version) error
	SetDirty(ctx context.Context, dirty bool) error

	// Initialize creates the singleton record with version 0. A second
	// call fails with ErrAlreadyInitialized.
	Initialize(ctx context.Context) error

	Exec(ctx context.Context, script string) error

	// Lock and Unlock guard a whole engine run against concurrent
	// migrators on the same database.
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error

	// Drop removes every object in the target schema, including the
	// version store itself.
	Drop(ctx context.Context) error
}

var (
	ErrAlreadyInitialized = errors.New("version store is already initialized")
	ErrLockFailed         = errors.New("could not acquire the migration lock")
	ErrInvalidStateTable  = errors.New("an error has occurred when reading the version table")
)
