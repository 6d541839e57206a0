package migration

import "fmt"

type Direction rune

const (
	Down Direction = 'd'
	Up   Direction = 'u'
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// ---

const VersionBits = 64

// DisplayWidth is the zero-padding applied to versions in generated file
// names and CLI output. Parsing accepts any width; this is a display
// convention only.
const DisplayWidth = 5

type Version uint64

func (v Version) String() string {
	return fmt.Sprintf("%0*d", DisplayWidth, uint64(v))
}

type Migration struct {
	Version Version
	Name    string
}

// ---

// Description is a migration as discovered in a source. An up and a down
// script with the same version form a pair; either side may be absent.
type Description struct {
	Migration
	CanApply bool // an up script exists
	CanUndo  bool // a down script exists
}

// ---

// Step is one planned application: run the script for Direction, then
// persist Resulting as the new current version.
type Step struct {
	Migration Migration
	Direction Direction
	Resulting Version
}

// Plan is the ordered list of steps computed for one invocation. It is
// transient and never persisted.
type Plan []Step
