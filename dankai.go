package dankai

import (
	"context"
	"fmt"
	"io"

	"cosmossdk.io/log"

	"github.com/root-talis/dankai/driver"
	"github.com/root-talis/dankai/migration"
	source2 "github.com/root-talis/dankai/source"
)

// ---

type Dankai interface {
	// Up applies every pending up migration.
	Up(ctx context.Context) error
	// UpTo applies pending up migrations up to and including target.
	UpTo(ctx context.Context, target migration.Version) error
	// Down reverts every applied migration.
	Down(ctx context.Context) error
	// DownTo reverts applied migrations until the store lands exactly on
	// target.
	DownTo(ctx context.Context, target migration.Version) error
	// Steps applies n single steps: up for positive n, down for negative.
	Steps(ctx context.Context, n int) error
	// Goto migrates up or down, whichever brings the store to target.
	Goto(ctx context.Context, target migration.Version) error
	// Force overwrites the stored version and clears the dirty flag
	// without planning or executing anything.
	Force(ctx context.Context, version migration.Version) error

	State(ctx context.Context) (driver.State, error)
	List(ctx context.Context) ([]MigrationState, error)
	Initialize(ctx context.Context) error
	Drop(ctx context.Context) error
}

type MigrationStatus uint

const (
	Pending MigrationStatus = iota
	Applied
)

type MigrationState struct {
	migration.Description
	Status MigrationStatus
}

// ---

type dankaiImpl struct {
	source source2.Source
	driver driver.Driver
	logger log.Logger
}

type Option func(*dankaiImpl)

func WithLogger(logger log.Logger) Option {
	return func(d *dankaiImpl) {
		d.logger = logger
	}
}

// ---

func New(source source2.Source, driver driver.Driver, opts ...Option) Dankai {
	d := &dankaiImpl{
		source: source,
		driver: driver,
		logger: log.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// ---

func (d *dankaiImpl) Up(ctx context.Context) error {
	return d.migrate(ctx, func(available []migration.Description, current migration.Version) (migration.Plan, error) {
		return planUp(available, current, noLimit)
	})
}

func (d *dankaiImpl) UpTo(ctx context.Context, target migration.Version) error {
	return d.migrate(ctx, func(available []migration.Description, current migration.Version) (migration.Plan, error) {
		return planUpTo(available, current, target)
	})
}

func (d *dankaiImpl) Down(ctx context.Context) error {
	return d.migrate(ctx, func(available []migration.Description, current migration.Version) (migration.Plan, error) {
		return planDown(available, current, noLimit)
	})
}

func (d *dankaiImpl) DownTo(ctx context.Context, target migration.Version) error {
	return d.migrate(ctx, func(available []migration.Description, current migration.Version) (migration.Plan, error) {
		return planDownTo(available, current, target)
	})
}

func (d *dankaiImpl) Steps(ctx context.Context, n int) error {
	if n == 0 {
		return nil
	}

	return d.migrate(ctx, func(available []migration.Description, current migration.Version) (migration.Plan, error) {
		if n > 0 {
			return planUp(available, current, n)
		}
		return planDown(available, current, -n)
	})
}

func (d *dankaiImpl) Goto(ctx context.Context, target migration.Version) error {
	state, err := d.State(ctx)
	if err != nil {
		return err
	}

	switch {
	case target > state.Version:
		return d.UpTo(ctx, target)
	case target < state.Version:
		return d.DownTo(ctx, target)
	default:
		d.logger.Info("already at the requested version", "version", state.Version)
		return nil
	}
}

func (d *dankaiImpl) Force(ctx context.Context, version migration.Version) error {
	if err := d.driver.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire the migration lock: %w", err)
	}
	defer d.unlock(ctx)

	// The dirty flag is cleared last so that an interrupted force still
	// leaves the store blocked.
	if err := d.driver.SetVersion(ctx, version); err != nil {
		return fmt.Errorf("failed to force version %s: %w", version, err)
	}

	if err := d.driver.SetDirty(ctx, false); err != nil {
		return fmt.Errorf("failed to clear the dirty flag: %w", err)
	}

	d.logger.Info("forced version", "version", version)

	return nil
}

func (d *dankaiImpl) State(ctx context.Context) (driver.State, error) {
	state, err := d.driver.State(ctx)
	if err != nil {
		return driver.State{}, fmt.Errorf("failed to read the current version: %w", err)
	}

	return state, nil
}

func (d *dankaiImpl) List(ctx context.Context) ([]MigrationState, error) {
	state, err := d.State(ctx)
	if err != nil {
		return nil, err
	}

	available, err := d.source.GetAvailableMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get the list of available migrations: %w", err)
	}

	result := make([]MigrationState, 0, len(*available))
	for _, descr := range *available {
		status := Pending
		if descr.Version <= state.Version {
			status = Applied
		}

		result = append(result, MigrationState{
			Description: descr,
			Status:      status,
		})
	}

	return result, nil
}

func (d *dankaiImpl) Initialize(ctx context.Context) error {
	if err := d.driver.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize the version store: %w", err)
	}

	return nil
}

func (d *dankaiImpl) Drop(ctx context.Context) error {
	if err := d.driver.Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop the database contents: %w", err)
	}

	return nil
}

// ---

type planFunc func(available []migration.Description, current migration.Version) (migration.Plan, error)

func (d *dankaiImpl) migrate(ctx context.Context, plan planFunc) error {
	if err := d.driver.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire the migration lock: %w", err)
	}
	defer d.unlock(ctx)

	state, err := d.driver.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to read the current version: %w", err)
	}

	if state.Dirty {
		return fmt.Errorf("%w (version %s)", ErrDirtyState, state.Version)
	}

	available, err := d.source.GetAvailableMigrations()
	if err != nil {
		return fmt.Errorf("failed to get the list of available migrations: %w", err)
	}

	steps, err := plan(*available, state.Version)
	if err != nil {
		return fmt.Errorf("failed to plan the migration: %w", err)
	}

	if len(steps) == 0 {
		d.logger.Info("nothing to migrate", "version", state.Version)
		return nil
	}

	return d.apply(ctx, steps)
}

// apply runs the plan in strict sequence. The version is persisted after
// every individual step, so a crash mid-plan leaves the store pointing at
// the last fully-applied step.
func (d *dankaiImpl) apply(ctx context.Context, plan migration.Plan) error {
	for _, step := range plan {
		script, err := d.readScript(step)
		if err != nil {
			return err
		}

		d.logger.Info("applying migration",
			"version", step.Migration.Version,
			"name", step.Migration.Name,
			"direction", step.Direction,
		)

		if err = d.driver.Exec(ctx, script); err != nil {
			if dirtyErr := d.driver.SetDirty(ctx, true); dirtyErr != nil {
				d.logger.Error("failed to mark the version store dirty", "err", dirtyErr)
			}

			return &ExecutionError{
				Migration: step.Migration,
				Direction: step.Direction,
				Err:       err,
			}
		}

		if err = d.driver.SetVersion(ctx, step.Resulting); err != nil {
			// The script ran but the store no longer reflects it.
			if dirtyErr := d.driver.SetDirty(ctx, true); dirtyErr != nil {
				d.logger.Error("failed to mark the version store dirty", "err", dirtyErr)
			}

			return fmt.Errorf("failed to persist version %s: %w", step.Resulting, err)
		}
	}

	return nil
}

func (d *dankaiImpl) readScript(step migration.Step) (string, error) {
	reader, err := d.source.ReadMigration(step.Migration, step.Direction)
	if err != nil {
		return "", fmt.Errorf("failed to read migration %s: %w", step.Migration.Version, err)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read migration %s: %w", step.Migration.Version, err)
	}

	return string(content), nil
}

func (d *dankaiImpl) unlock(ctx context.Context) {
	if err := d.driver.Unlock(ctx); err != nil {
		d.logger.Error("failed to release the migration lock", "err", err)
	}
}
