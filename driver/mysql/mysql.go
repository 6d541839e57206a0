package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/root-talis/dankai/driver"
	"github.com/root-talis/dankai/migration"
)

const duplicateEntryErrNumber = 1062

type DriverConfig struct {
	DatabaseName   string
	StateTableName string
}

type mysqlDriver struct {
	conn   *sql.DB
	config DriverConfig

	// GET_LOCK is session-scoped, so the lock lives on a dedicated
	// connection held out of the pool between Lock and Unlock.
	lockConn *sql.Conn
}

// NewDriver wraps an open MySQL connection. Scripts with multiple statements
// require multiStatements=true in the DSN.
func NewDriver(conn *sql.DB, config DriverConfig) driver.Driver {
	return &mysqlDriver{
		conn:   conn,
		config: config,
	}
}

// ---

func (drv *mysqlDriver) State(ctx context.Context) (driver.State, error) {
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

func (drv *mysqlDriver) SetVersion(ctx context.Context, v migration.Version) error {
	tableName := drv.makeEscapedStateTableName()

	if err := drv.ensureStateTableExists(ctx, &tableName); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, version, dirty) VALUES (1, ?, 0) "+
			"ON DUPLICATE KEY UPDATE version = VALUES(version)",
		tableName,
	), int64(v))
	if err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	return nil
}

func (drv *mysqlDriver) SetDirty(ctx context.Context, dirty bool) error {
	tableName := drv.makeEscapedStateTableName()

	if err := drv.ensureStateTableExists(ctx, &tableName); err != nil {
		return fmt.Errorf("failed to set the dirty flag: %w", err)
	}

	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, version, dirty) VALUES (1, 0, ?) "+
			"ON DUPLICATE KEY UPDATE dirty = VALUES(dirty)",
		tableName,
	), dirty)
	if err != nil {
		return fmt.Errorf("failed to set the dirty flag: %w", err)
	}

	return nil
}

func (drv *mysqlDriver) Initialize(ctx context.Context) error {
	tableName := drv.makeEscapedStateTableName()

	if err := drv.ensureStateTableExists(ctx, &tableName); err != nil {
		return fmt.Errorf("failed to initialize the version store: %w", err)
	}

	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, version, dirty) VALUES (1, 0, 0)",
		tableName,
	))

	var mysqlErr *mysqldrv.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == duplicateEntryErrNumber {
		return driver.ErrAlreadyInitialized
	}
	if err != nil {
		return fmt.Errorf("failed to initialize the version store: %w", err)
	}

	return nil
}

func (drv *mysqlDriver) Exec(ctx context.Context, script string) error {
	if _, err := drv.conn.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to execute the migration script: %w", err)
	}

	return nil
}

// ---

const lockTimeoutSeconds = 10

func (drv *mysqlDriver) Lock(ctx context.Context) error {
	if drv.lockConn != nil {
		return fmt.Errorf("%w: lock already held", driver.ErrLockFailed)
	}

	conn, err := drv.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", driver.ErrLockFailed, err)
	}

	var acquired sql.NullInt64

	row := conn.QueryRowContext(
		ctx,
		"SELECT GET_LOCK(?, ?)",
		drv.lockName(),
		lockTimeoutSeconds,
	)
	if err = row.Scan(&acquired); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", driver.ErrLockFailed, err)
	}

	if !acquired.Valid || acquired.Int64 != 1 {
		_ = conn.Close()
		return driver.ErrLockFailed
	}

	drv.lockConn = conn

	return nil
}

func (drv *mysqlDriver) Unlock(ctx context.Context) error {
	if drv.lockConn == nil {
		return nil
	}

	conn := drv.lockConn
	drv.lockConn = nil
	defer conn.Close()

	var released sql.NullInt64

	row := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", drv.lockName())
	if err := row.Scan(&released); err != nil {
		return fmt.Errorf("failed to release the migration lock: %w", err)
	}

	// 0 means another session owns the lock, NULL means it does not exist.
	if !released.Valid || released.Int64 != 1 {
		return errors.New("failed to release the migration lock: this session does not hold it")
	}

	return nil
}

func (drv *mysqlDriver) lockName() string {
	return fmt.Sprintf("dankai:%s", drv.config.DatabaseName)
}

// ---

func (drv *mysqlDriver) Drop(ctx context.Context) error {
	rows, err := drv.conn.QueryContext(
		ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = ?",
		drv.config.DatabaseName,
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

	if _, err = drv.conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}

	for _, table := range tables {
		_, err = drv.conn.ExecContext(ctx, fmt.Sprintf(
			"DROP TABLE IF EXISTS `%s`.`%s`",
			escapeMysqlString(drv.config.DatabaseName),
			escapeMysqlString(table),
		))
		if err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	if _, err = drv.conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1"); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}

	return nil
}

// ---

func (drv *mysqlDriver) makeEscapedStateTableName() string {
	return fmt.Sprintf(
		"`%s`.`%s`",
		escapeMysqlString(drv.config.DatabaseName),
		escapeMysqlString(drv.config.StateTableName),
	)
}

func (drv *mysqlDriver) ensureStateTableExists(ctx context.Context, escapedTableName *string) error {
	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s ("+
			"id      int not null, "+
			"version bigint unsigned not null, "+
			"dirty   tinyint(1) not null, "+
			"primary key (id)"+
			") default charset utf8",
		*escapedTableName,
	))

	if err != nil {
		return fmt.Errorf("failed to create the version table %s: %w", *escapedTableName, err)
	}

	return nil
}

// originally from https://gist.github.com/siddontang/8875771
func escapeMysqlString(sql string) string { //nolint:cyclop
	const prealloc = 2
	dest := make([]rune, 0, prealloc*len(sql))

	for _, character := range sql {
		var escape rune

		switch character {
		case 0:
			escape = '0'
		case '\n':
			escape = 'n'
		case '\r':
			escape = 'r'
		case '\\':
			escape = '\\'
		case '\'':
			escape = '\''
		case '"':
			escape = '"'
		case '`':
			escape = '`'
		case '\032':
			escape = 'Z'
		}

		if escape != 0 {
			dest = append(dest, '\\', escape)
		} else {
			dest = append(dest, character)
		}
	}

	return string(dest)
}
