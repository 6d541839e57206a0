package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"cosmossdk.io/log"
	"github.com/fatih/color"
	mysqldsn "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/root-talis/dankai"
	"github.com/root-talis/dankai/driver"
	"github.com/root-talis/dankai/driver/mysql"
	"github.com/root-talis/dankai/driver/postgres"
	"github.com/root-talis/dankai/driver/sqlite"
	"github.com/root-talis/dankai/internal/config"
	"github.com/root-talis/dankai/migration"
	"github.com/root-talis/dankai/source/files"
)

// Global configuration variables
var (
	configPath     string
	migrationsDir  string
	driverName     string
	dsn            string
	stateTableName string
	verbose        bool
	noColor        bool
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dankai",
		Short: "Versioned SQL schema migrations with a dirty safety flag",
		Long: `dankai applies ordered, versioned SQL change-scripts to a database and
tracks the currently applied version in the database itself.

Migration scripts live in a directory and are named
<version>_<name>.up.sql / <version>_<name>.down.sql. A failed script
leaves the version store dirty; no further migration runs until the
correct version is forced explicitly.

Examples:
  # Apply every pending migration to a local SQLite file
  dankai --driver sqlite --dsn ./app.db up

  # Revert one step
  dankai --driver postgres --dsn "postgres://localhost/app?sslmode=disable" down

  # Jump to an exact version, up or down as needed
  dankai goto 12

  # Recover after a failed script
  dankai force 11`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			explicit := cmd.Flags().Changed("config")
			if !explicit {
				path = config.DefaultFileName
			}

			fileCfg, err := config.Load(path, explicit)
			if err != nil {
				return err
			}

			// Flags win over the config file.
			if !cmd.Flags().Changed("dir") && fileCfg.Dir != nil {
				migrationsDir = *fileCfg.Dir
			}
			if !cmd.Flags().Changed("driver") && fileCfg.Driver != nil {
				driverName = *fileCfg.Driver
			}
			if !cmd.Flags().Changed("dsn") && fileCfg.DSN != nil {
				dsn = *fileCfg.DSN
			}
			if !cmd.Flags().Changed("table") && fileCfg.Table != nil {
				stateTableName = *fileCfg.Table
			}
			if !cmd.Flags().Changed("verbose") && fileCfg.Verbose != nil {
				verbose = *fileCfg.Verbose
			}

			if noColor {
				color.NoColor = true
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a dankai.toml config file")
	cmd.PersistentFlags().StringVar(&migrationsDir, "dir", "migrations", "directory containing migration scripts")
	cmd.PersistentFlags().StringVar(&driverName, "driver", "sqlite", "database driver: mysql, postgres or sqlite")
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "database DSN (for sqlite, the database file path)")
	cmd.PersistentFlags().StringVar(&stateTableName, "table", "schema_version", "name of the version table")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every engine step to stderr")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		NewUpCmd(),
		NewDownCmd(),
		NewGotoCmd(),
		NewVersionCmd(),
		NewListCmd(),
		NewForceCmd(),
		NewCreateCmd(),
		NewInitCmd(),
		NewDropCmd(),
	)

	return cmd
}

// ---

// newEngine wires the file source and the selected database driver into an
// engine. The returned closer shuts the database connection down.
func newEngine() (dankai.Dankai, func(), error) {
	src, err := files.NewFilesSource(os.DirFS(migrationsDir), ".")
	if err != nil {
		return nil, nil, err
	}

	drv, closer, err := newDriver()
	if err != nil {
		return nil, nil, err
	}

	logger := log.NewNopLogger()
	if verbose {
		logger = log.NewLogger(os.Stderr)
	}

	return dankai.New(src, drv, dankai.WithLogger(logger)), closer, nil
}

func newDriver() (driver.Driver, func(), error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("no database DSN given (use --dsn or a config file)")
	}

	switch driverName {
	case "mysql":
		return newMysqlDriver()
	case "postgres":
		return newPostgresDriver()
	case "sqlite":
		return newSqliteDriver()
	default:
		return nil, nil, fmt.Errorf("unknown driver %q (expected mysql, postgres or sqlite)", driverName)
	}
}

func newMysqlDriver() (driver.Driver, func(), error) {
	cfg, err := mysqldsn.ParseDSN(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse the MySQL DSN: %w", err)
	}

	// Scripts routinely contain several statements.
	cfg.MultiStatements = true

	conn, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open the database: %w", err)
	}

	drv := mysql.NewDriver(conn, mysql.DriverConfig{
		DatabaseName:   cfg.DBName,
		StateTableName: stateTableName,
	})

	return drv, func() { _ = conn.Close() }, nil
}

func newPostgresDriver() (driver.Driver, func(), error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open the database: %w", err)
	}

	var databaseName string
	if err = conn.QueryRow("SELECT current_database()").Scan(&databaseName); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	drv := postgres.NewDriver(conn, postgres.DriverConfig{
		DatabaseName:   databaseName,
		StateTableName: stateTableName,
	})

	return drv, func() { _ = conn.Close() }, nil
}

func newSqliteDriver() (driver.Driver, func(), error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open the database: %w", err)
	}

	drv := sqlite.NewDriver(conn, sqlite.DriverConfig{
		StateTableName: stateTableName,
	})

	return drv, func() { _ = conn.Close() }, nil
}

// ---

func parseVersionArg(arg string) (migration.Version, error) {
	v, err := strconv.ParseUint(arg, 10, migration.VersionBits)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: expected a non-negative integer", arg)
	}

	return migration.Version(v), nil
}
