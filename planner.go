package dankai

import (
	"fmt"

	"github.com/root-talis/dankai/migration"
	"github.com/root-talis/dankai/source"
)

// noLimit disables step-count truncation when planning.
const noLimit = -1

// planUp selects every up migration with version strictly greater than
// current, ascending, truncated to limit steps. Each step results in that
// migration's own version.
func planUp(available []migration.Description, current migration.Version, limit int) (migration.Plan, error) {
	plan := make(migration.Plan, 0)

	for _, descr := range available {
		if descr.Version <= current {
			continue
		}
		if limit >= 0 && len(plan) >= limit {
			break
		}
		if !descr.CanApply {
			return nil, fmt.Errorf("%w: up script for migration %s", source.ErrScriptMissing, descr.Version)
		}

		plan = append(plan, migration.Step{
			Migration: descr.Migration,
			Direction: migration.Up,
			Resulting: descr.Version,
		})
	}

	return plan, nil
}

// planUpTo selects every up migration with current < version <= target,
// ascending. A target at or below current yields an empty plan.
func planUpTo(available []migration.Description, current migration.Version, target migration.Version) (migration.Plan, error) {
	plan := make(migration.Plan, 0)

	for _, descr := range available {
		if descr.Version <= current {
			continue
		}
		if descr.Version > target {
			break
		}
		if !descr.CanApply {
			return nil, fmt.Errorf("%w: up script for migration %s", source.ErrScriptMissing, descr.Version)
		}

		plan = append(plan, migration.Step{
			Migration: descr.Migration,
			Direction: migration.Up,
			Resulting: descr.Version,
		})
	}

	return plan, nil
}

// planDown selects every down migration with version <= current, descending,
// truncated to limit steps. Each step results in that migration's version
// minus one.
func planDown(available []migration.Description, current migration.Version, limit int) (migration.Plan, error) {
	plan := make(migration.Plan, 0)

	for i := len(available) - 1; i >= 0; i-- {
		descr := available[i]

		if descr.Version > current {
			continue
		}
		if limit >= 0 && len(plan) >= limit {
			break
		}
		if !descr.CanUndo {
			return nil, fmt.Errorf("%w: down script for migration %s", source.ErrScriptMissing, descr.Version)
		}

		plan = append(plan, migration.Step{
			Migration: descr.Migration,
			Direction: migration.Down,
			Resulting: descr.Version - 1,
		})
	}

	return plan, nil
}

// planDownTo walks down migrations descending, skipping those above current.
// Migrations strictly between target and current step down to version-1 as
// usual; the first migration at or below target snaps to target itself and
// ends the walk. The snap is the only way a run lands exactly on a requested
// target whose value is not some migration's version minus one.
func planDownTo(available []migration.Description, current migration.Version, target migration.Version) (migration.Plan, error) {
	plan := make(migration.Plan, 0)

	if target >= current {
		return plan, nil
	}

	for i := len(available) - 1; i >= 0; i-- {
		descr := available[i]

		if descr.Version > current {
			continue
		}
		if !descr.CanUndo {
			return nil, fmt.Errorf("%w: down script for migration %s", source.ErrScriptMissing, descr.Version)
		}

		if descr.Version <= target {
			plan = append(plan, migration.Step{
				Migration: descr.Migration,
				Direction: migration.Down,
				Resulting: target,
			})
			break
		}

		plan = append(plan, migration.Step{
			Migration: descr.Migration,
			Direction: migration.Down,
			Resulting: descr.Version - 1,
		})
	}

	return plan, nil
}
