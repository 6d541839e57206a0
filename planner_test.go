package dankai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/root-talis/dankai/migration"
	"github.com/root-talis/dankai/source"
)

func pair(version migration.Version, name string) migration.Description {
	return migration.Description{
		Migration: migration.Migration{Version: version, Name: name},
		CanApply:  true,
		CanUndo:   true,
	}
}

func upOnly(version migration.Version, name string) migration.Description {
	descr := pair(version, name)
	descr.CanUndo = false
	return descr
}

func downOnly(version migration.Version, name string) migration.Description {
	descr := pair(version, name)
	descr.CanApply = false
	return descr
}

func step(version migration.Version, name string, direction migration.Direction, resulting migration.Version) migration.Step {
	return migration.Step{
		Migration: migration.Migration{Version: version, Name: name},
		Direction: direction,
		Resulting: resulting,
	}
}

var denseSet = []migration.Description{ // nolint:gochecknoglobals
	pair(1, "initial_structure"),
	pair(2, "indexes"),
	pair(3, "sessions_table"),
}

var sparseSet = []migration.Description{ // nolint:gochecknoglobals
	pair(5, "initial_structure"),
	pair(10, "indexes"),
	pair(15, "sessions_table"),
}

// ---

var planUpTests = []struct { // nolint:gochecknoglobals
	name        string
	available   []migration.Description
	current     migration.Version
	limit       int
	expected    migration.Plan
	expectError bool
}{
	/* s0 */ {
		name:      "test s0: should plan every migration from an empty database",
		available: denseSet,
		current:   0,
		limit:     noLimit,
		expected: migration.Plan{
			step(1, "initial_structure", migration.Up, 1),
			step(2, "indexes", migration.Up, 2),
			step(3, "sessions_table", migration.Up, 3),
		},
	},
	/* s1 */ {
		name:      "test s1: should plan only migrations above the current version",
		available: denseSet,
		current:   2,
		limit:     noLimit,
		expected: migration.Plan{
			step(3, "sessions_table", migration.Up, 3),
		},
	},
	/* s2 */ {
		name:      "test s2: should produce an empty plan when everything is applied",
		available: denseSet,
		current:   3,
		limit:     noLimit,
		expected:  migration.Plan{},
	},
	/* s3 */ {
		name:      "test s3: should truncate the plan to a single step",
		available: denseSet,
		current:   0,
		limit:     1,
		expected: migration.Plan{
			step(1, "initial_structure", migration.Up, 1),
		},
	},
	/* s4 */ {
		name:      "test s4: should not error about an unreachable broken migration beyond the limit",
		available: []migration.Description{pair(1, "a"), downOnly(2, "b")},
		current:   0,
		limit:     1,
		expected: migration.Plan{
			step(1, "a", migration.Up, 1),
		},
	},
	/* s5 */ {
		name:      "test s5: should plan sparse versions as-is",
		available: sparseSet,
		current:   5,
		limit:     noLimit,
		expected: migration.Plan{
			step(10, "indexes", migration.Up, 10),
			step(15, "sessions_table", migration.Up, 15),
		},
	},

	/* e0 */ {
		name:        "test e0: should fail when a selected migration has no up script",
		available:   []migration.Description{pair(1, "a"), downOnly(2, "b")},
		current:     0,
		limit:       noLimit,
		expectError: true,
	},
}

func TestPlanUp(t *testing.T) {
	t.Parallel()

	for _, test := range planUpTests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			plan, err := planUp(test.available, test.current, test.limit)

			if test.expectError {
				assert.ErrorIs(t, err, source.ErrScriptMissing)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, test.expected, plan)
		})
	}
}

// ---

var planUpToTests = []struct { // nolint:gochecknoglobals
	name        string
	available   []migration.Description
	current     migration.Version
	target      migration.Version
	expected    migration.Plan
	expectError bool
}{
	/* s0 */ {
		name:      "test s0: should stop at the target version",
		available: denseSet,
		current:   0,
		target:    2,
		expected: migration.Plan{
			step(1, "initial_structure", migration.Up, 1),
			step(2, "indexes", migration.Up, 2),
		},
	},
	/* s1 */ {
		name:      "test s1: should produce an empty plan when the target equals the current version",
		available: denseSet,
		current:   2,
		target:    2,
		expected:  migration.Plan{},
	},
	/* s2 */ {
		name:      "test s2: should produce an empty plan when the target is below the current version",
		available: denseSet,
		current:   3,
		target:    1,
		expected:  migration.Plan{},
	},
	/* s3 */ {
		name:      "test s3: should include a target between versions as far as possible",
		available: sparseSet,
		current:   0,
		target:    12,
		expected: migration.Plan{
			step(5, "initial_structure", migration.Up, 5),
			step(10, "indexes", migration.Up, 10),
		},
	},

	/* e0 */ {
		name:        "test e0: should fail when a selected migration has no up script",
		available:   []migration.Description{downOnly(1, "a"), pair(2, "b")},
		current:     0,
		target:      2,
		expectError: true,
	},
}

func TestPlanUpTo(t *testing.T) {
	t.Parallel()

	for _, test := range planUpToTests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			plan, err := planUpTo(test.available, test.current, test.target)

			if test.expectError {
				assert.ErrorIs(t, err, source.ErrScriptMissing)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, test.expected, plan)
		})
	}
}

// ---

var planDownTests = []struct { // nolint:gochecknoglobals
	name        string
	available   []migration.Description
	current     migration.Version
	limit       int
	expected    migration.Plan
	expectError bool
}{
	/* s0 */ {
		name:      "test s0: should plan every applied migration in descending order",
		available: denseSet,
		current:   3,
		limit:     noLimit,
		expected: migration.Plan{
			step(3, "sessions_table", migration.Down, 2),
			step(2, "indexes", migration.Down, 1),
			step(1, "initial_structure", migration.Down, 0),
		},
	},
	/* s1 */ {
		name:      "test s1: should produce an empty plan on an empty database",
		available: denseSet,
		current:   0,
		limit:     noLimit,
		expected:  migration.Plan{},
	},
	/* s2 */ {
		name:      "test s2: should select the greatest version at or below current for a single step",
		available: sparseSet,
		current:   12,
		limit:     1,
		expected: migration.Plan{
			step(10, "indexes", migration.Down, 9),
		},
	},
	/* s3 */ {
		name:      "test s3: should step sparse versions down by version minus one",
		available: sparseSet,
		current:   10,
		limit:     noLimit,
		expected: migration.Plan{
			step(10, "indexes", migration.Down, 9),
			step(5, "initial_structure", migration.Down, 4),
		},
	},

	/* e0 */ {
		name:        "test e0: should fail when a selected migration has no down script",
		available:   []migration.Description{pair(1, "a"), upOnly(2, "b")},
		current:     2,
		limit:       noLimit,
		expectError: true,
	},
}

func TestPlanDown(t *testing.T) {
	t.Parallel()

	for _, test := range planDownTests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			plan, err := planDown(test.available, test.current, test.limit)

			if test.expectError {
				assert.ErrorIs(t, err, source.ErrScriptMissing)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, test.expected, plan)
		})
	}
}

// ---

var planDownToTests = []struct { // nolint:gochecknoglobals
	name        string
	available   []migration.Description
	current     migration.Version
	target      migration.Version
	expected    migration.Plan
	expectError bool
}{
	/* s0 */ {
		name:      "test s0: should walk down to the target",
		available: denseSet,
		current:   2,
		target:    0,
		expected: migration.Plan{
			step(2, "indexes", migration.Down, 1),
			step(1, "initial_structure", migration.Down, 0),
		},
	},
	/* s1 */ {
		name:      "test s1: should snap the first migration at or below the target to the target itself",
		available: sparseSet,
		current:   15,
		target:    7,
		expected: migration.Plan{
			step(15, "sessions_table", migration.Down, 14),
			step(10, "indexes", migration.Down, 9),
			step(5, "initial_structure", migration.Down, 7),
		},
	},
	/* s2 */ {
		name:      "test s2: should produce an empty plan when the target equals the current version",
		available: denseSet,
		current:   2,
		target:    2,
		expected:  migration.Plan{},
	},
	/* s3 */ {
		name:      "test s3: should produce an empty plan when the target is above the current version",
		available: denseSet,
		current:   1,
		target:    3,
		expected:  migration.Plan{},
	},
	/* s4 */ {
		name:      "test s4: should snap the walk as soon as a migration at or below the target is reached",
		available: denseSet,
		current:   2,
		target:    1,
		expected: migration.Plan{
			step(2, "indexes", migration.Down, 1),
			step(1, "initial_structure", migration.Down, 1),
		},
	},
	/* s5 */ {
		name:      "test s5: should skip migrations above the current version",
		available: sparseSet,
		current:   12,
		target:    0,
		expected: migration.Plan{
			step(10, "indexes", migration.Down, 9),
			step(5, "initial_structure", migration.Down, 4),
		},
	},

	/* e0 */ {
		name:        "test e0: should fail when a selected migration has no down script",
		available:   []migration.Description{pair(1, "a"), upOnly(2, "b")},
		current:     2,
		target:      0,
		expectError: true,
	},
}

func TestPlanDownTo(t *testing.T) {
	t.Parallel()

	for _, test := range planDownToTests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			plan, err := planDownTo(test.available, test.current, test.target)

			if test.expectError {
				assert.ErrorIs(t, err, source.ErrScriptMissing)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, test.expected, plan)
		})
	}
}
