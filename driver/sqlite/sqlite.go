package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/root-talis/dankai/driver"
	"github.com/root-talis/dankai/migration"
)

type DriverConfig struct {
	StateTableName string
}

type sqliteDriver struct {
	conn   *sql.DB
	config DriverConfig
}

// NewDriver wraps an open SQLite connection (modernc.org/sqlite).
func NewDriver(conn *sql.DB, config DriverConfig) driver.Driver {
	return &sqliteDriver{
		conn:   conn,
		config: config,
	}
}

// ---

func (drv *sqliteDriver) State(ctx context.Context) (driver.State, error) {
	tableName := drv.makeEscapedStateTableName()

	if err := drv.ensureStateTableExists(ctx, &tableName); err != nil {
		return driver.State{}, fmt.Errorf("failed to read the current version: %w", err)
	}

	var state driver.State

	row := drv.conn.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT version, dirty FROM %s WHERE id = 1",
		tableName,
	))

	err := row.Scan(&state.Version, &state.Dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return driver.State{}, nil
	}
	if err != nil {
		return driver.State{}, fmt.Errorf("%w: %v", driver.ErrInvalidStateTable, err)
	}

	return state, nil
}

func (drv *sqliteDriver) SetVersion(ctx context.Context, v migration.Version) error {
	tableName := drv.makeEscapedStateTableName()

	if err := drv.ensureStateTableExists(ctx, &tableName); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, version, dirty) VALUES (1, ?, 0) "+
			"ON CONFLICT (id) DO UPDATE SET version = excluded.version",
		tableName,
	), int64(v))
	if err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	return nil
}

func (drv *sqliteDriver) SetDirty(ctx context.Context, dirty bool) error {
	tableName := drv.makeEscapedStateTableName()

	if err := drv.ensureStateTableExists(ctx, &tableName); err != nil {
		return fmt.Errorf("failed to set the dirty flag: %w", err)
	}

	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, version, dirty) VALUES (1, 0, ?) "+
			"ON CONFLICT (id) DO UPDATE SET dirty = excluded.dirty",
		tableName,
	), dirty)
	if err != nil {
		return fmt.Errorf("failed to set the dirty flag: %w", err)
	}

	return nil
}

func (drv *sqliteDriver) Initialize(ctx context.Context) error {
	tableName := drv.makeEscapedStateTableName()

	if err := drv.ensureStateTableExists(ctx, &tableName); err != nil {
		return fmt.Errorf("failed to initialize the version store: %w", err)
	}

	result, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, version, dirty) "+
			"SELECT 1, 0, 0 WHERE NOT EXISTS (SELECT 1 FROM %s WHERE id = 1)",
		tableName, tableName,
	))
	if err != nil {
		return fmt.Errorf("failed to initialize the version store: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to initialize the version store: %w", err)
	}

	if inserted == 0 {
		return driver.ErrAlreadyInitialized
	}

	return nil
}

// Exec runs the script statement by statement inside a single transaction.
func (drv *sqliteDriver) Exec(ctx context.Context, script string) error {
	tx, err := drv.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin a transaction: %w", err)
	}

	for _, statement := range splitStatements(script) {
		if _, err = tx.ExecContext(ctx, statement); err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				return fmt.Errorf("failed to roll back after %v: %w", err, rollbackErr)
			}
			return fmt.Errorf("failed to execute the migration script: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit the migration script: %w", err)
	}

	return nil
}

// Lock is a no-op: SQLite serializes writers through its own file locking,
// and the database lives in a single local file.
func (drv *sqliteDriver) Lock(_ context.Context) error {
	return nil
}

func (drv *sqliteDriver) Unlock(_ context.Context) error {
	return nil
}

func (drv *sqliteDriver) Drop(ctx context.Context) error {
	rows, err := drv.conn.QueryContext(
		ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'",
	)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	tables := make([]string, 0)
	for rows.Next() {
		var table string
		if err = rows.Scan(&table); err != nil {
			return fmt.Errorf("failed to list tables: %w", err)
		}
		tables = append(tables, table)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	for _, table := range tables {
		if _, err = drv.conn.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", escapeSqliteIdentifier(table))); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	return nil
}

// ---

func (drv *sqliteDriver) makeEscapedStateTableName() string {
	return escapeSqliteIdentifier(drv.config.StateTableName)
}

func (drv *sqliteDriver) ensureStateTableExists(ctx context.Context, escapedTableName *string) error {
	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s ("+
			"id      INTEGER PRIMARY KEY CHECK (id = 1), "+
			"version INTEGER NOT NULL, "+
			"dirty   INTEGER NOT NULL"+
			")",
		*escapedTableName,
	))

	if err != nil {
		return fmt.Errorf("failed to create the version table %s: %w", *escapedTableName, err)
	}

	return nil
}

func escapeSqliteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// splitStatements breaks a script into individual statements on semicolons,
// skipping semicolons inside quoted literals and identifiers, and stripping
// -- comments.
func splitStatements(script string) []string {
	statements := make([]string, 0)

	var (
		current strings.Builder
		quote   rune // active ' or " region, 0 outside
		comment bool // inside a -- comment, ends at the line break
	)

	flush := func() {
		if statement := strings.TrimSpace(current.String()); statement != "" {
			statements = append(statements, statement)
		}
		current.Reset()
	}

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		character := runes[i]

		switch {
		case comment:
			if character == '\n' {
				comment = false
				current.WriteRune(character)
			}
		case quote != 0:
			current.WriteRune(character)
			if character == quote {
				// A doubled quote is an escape, not a terminator.
				if i+1 < len(runes) && runes[i+1] == quote {
					current.WriteRune(runes[i+1])
					i++
				} else {
					quote = 0
				}
			}
		case character == '\'' || character == '"':
			quote = character
			current.WriteRune(character)
		case character == '-' && i+1 < len(runes) && runes[i+1] == '-':
			comment = true
			i++
		case character == ';':
			flush()
		default:
			current.WriteRune(character)
		}
	}

	flush()

	return statements
}
