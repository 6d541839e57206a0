package source

import (
	"errors"
	"io"

	"github.com/root-talis/dankai/migration"
)

type Source interface {
	GetAvailableMigrations() (*[]migration.Description, error)
	ReadMigration(mig migration.Migration, direction migration.Direction) (io.Reader, error)
}

var (
	ErrMigrationDuplicated = errors.New("migration version already exists")
	ErrMalformedName       = errors.New("migration file name is malformed")
	ErrScriptMissing       = errors.New("no migration script exists for the requested direction")
)
