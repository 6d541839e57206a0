package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/lib/pq"

	"github.com/root-talis/dankai/driver"
	"github.com/root-talis/dankai/migration"
)

type DriverConfig struct {
	DatabaseName   string
	StateTableName string
}

type postgresDriver struct {
	conn   *sql.DB
	config DriverConfig

	// Advisory locks are session-scoped, so the lock lives on a dedicated
	// connection held out of the pool between Lock and Unlock.
	lockConn *sql.Conn
}

// NewDriver wraps an open PostgreSQL connection (lib/pq).
func NewDriver(conn *sql.DB, config DriverConfig) driver.Driver {
	return &postgresDriver{
		conn:   conn,
		config: config,
	}
}

// ---

func (drv *postgresDriver) State(ctx context.Context) (driver.State, error) {
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

func (drv *postgresDriver) SetVersion(ctx context.Context, v migration.Version) error {
	tableName := drv.makeEscapedStateTableName()

	if err := drv.ensureStateTableExists(ctx, &tableName); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, version, dirty) VALUES (1, $1, false) "+
			"ON CONFLICT (id) DO UPDATE SET version = excluded.version",
		tableName,
	), int64(v))
	if err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	return nil
}

func (drv *postgresDriver) SetDirty(ctx context.Context, dirty bool) error {
	tableName := drv.makeEscapedStateTableName()

	if err := drv.ensureStateTableExists(ctx, &tableName); err != nil {
		return fmt.Errorf("failed to set the dirty flag: %w", err)
	}

	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, version, dirty) VALUES (1, 0, $1) "+
			"ON CONFLICT (id) DO UPDATE SET dirty = excluded.dirty",
		tableName,
	), dirty)
	if err != nil {
		return fmt.Errorf("failed to set the dirty flag: %w", err)
	}

	return nil
}

func (drv *postgresDriver) Initialize(ctx context.Context) error {
	tableName := drv.makeEscapedStateTableName()

	if err := drv.ensureStateTableExists(ctx, &tableName); err != nil {
		return fmt.Errorf("failed to initialize the version store: %w", err)
	}

	result, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, version, dirty) VALUES (1, 0, false) "+
			"ON CONFLICT (id) DO NOTHING",
		tableName,
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

// Exec sends the script as a single simple query, so multi-statement
// scripts run as written.
func (drv *postgresDriver) Exec(ctx context.Context, script string) error {
	if _, err := drv.conn.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to execute the migration script: %w", err)
	}

	return nil
}

// ---

func (drv *postgresDriver) Lock(ctx context.Context) error {
	if drv.lockConn != nil {
		return fmt.Errorf("%w: lock already held", driver.ErrLockFailed)
	}

	conn, err := drv.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", driver.ErrLockFailed, err)
	}

	var acquired bool

	row := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", drv.lockKey())
	if err = row.Scan(&acquired); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", driver.ErrLockFailed, err)
	}

	if !acquired {
		_ = conn.Close()
		return driver.ErrLockFailed
	}

	drv.lockConn = conn

	return nil
}

func (drv *postgresDriver) Unlock(ctx context.Context) error {
	if drv.lockConn == nil {
		return nil
	}

	conn := drv.lockConn
	drv.lockConn = nil
	defer conn.Close()

	var released bool

	row := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", drv.lockKey())
	if err := row.Scan(&released); err != nil {
		return fmt.Errorf("failed to release the migration lock: %w", err)
	}

	// false means the lock is not held by this session.
	if !released {
		return errors.New("failed to release the migration lock: this session does not hold it")
	}

	return nil
}

func (drv *postgresDriver) lockKey() int64 {
	hash := fnv.New64a()
	hash.Write([]byte("dankai:" + drv.config.DatabaseName))

	return int64(hash.Sum64())
}

// ---

func (drv *postgresDriver) Drop(ctx context.Context) error {
	rows, err := drv.conn.QueryContext(ctx, "SELECT tablename FROM pg_tables WHERE schemaname = current_schema()")
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
		_, err = drv.conn.ExecContext(ctx, fmt.Sprintf(
			"DROP TABLE IF EXISTS %s CASCADE",
			pq.QuoteIdentifier(table),
		))
		if err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	return nil
}

// ---

func (drv *postgresDriver) makeEscapedStateTableName() string {
	return pq.QuoteIdentifier(drv.config.StateTableName)
}

func (drv *postgresDriver) ensureStateTableExists(ctx context.Context, escapedTableName *string) error {
	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s ("+
			"id      integer PRIMARY KEY, "+
			"version bigint NOT NULL, "+
			"dirty   boolean NOT NULL"+
			")",
		*escapedTableName,
	))

	if err != nil {
		return fmt.Errorf("failed to create the version table %s: %w", *escapedTableName, err)
	}

	return nil
}
