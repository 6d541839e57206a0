package files

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/root-talis/dankai/migration"
	"github.com/root-talis/dankai/source"
)

// Migration scripts are named <version>_<name>.up.sql / <version>_<name>.down.sql.
// The version is a decimal run of any width; generated names zero-pad it to
// migration.DisplayWidth digits.
var fileNamePattern = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

var ErrNotADirectory = errors.New("migrations path is not a directory")

type filesSource struct {
	fsys fs.FS
	dir  string
}

func NewFilesSource(fsys fs.FS, directory string) (source.Source, error) {
	stat, err := fs.Stat(fsys, directory)
	if err != nil {
		return nil, fmt.Errorf("failed to stat migrations directory: %w", err)
	}

	if !stat.IsDir() {
		return nil, ErrNotADirectory
	}

	return &filesSource{
		fsys: fsys,
		dir:  directory,
	}, nil
}

// ---

func (src *filesSource) GetAvailableMigrations() (*[]migration.Description, error) {
	dirEntries, err := fs.ReadDir(src.fsys, src.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read contents of migrations directory: %w", err)
	}

	migrations := make(versionMap)
	for _, entry := range dirEntries {
		if entry.IsDir() || !entry.Type().IsRegular() {
			continue
		}

		fileName := entry.Name()
		if !strings.HasSuffix(fileName, ".sql") {
			continue
		}

		mig, direction, err := ParseFileName(fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse directory entries: %w", err)
		}

		if err = migrations.updateDescription(mig, direction); err != nil {
			return nil, fmt.Errorf("failed to parse directory entries: %w", err)
		}
	}

	keys := getSortedVersions(migrations)
	result := buildMigrationsSlice(keys, migrations)

	return &result, nil
}

func (src *filesSource) ReadMigration(mig migration.Migration, direction migration.Direction) (io.Reader, error) {
	dirEntries, err := fs.ReadDir(src.fsys, src.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read contents of migrations directory: %w", err)
	}

	for _, entry := range dirEntries {
		if entry.IsDir() || !entry.Type().IsRegular() {
			continue
		}

		parsed, dir, err := ParseFileName(entry.Name())
		if err != nil || parsed.Version != mig.Version || dir != direction {
			continue
		}

		content, err := fs.ReadFile(src.fsys, path.Join(src.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		return bytes.NewReader(content), nil
	}

	return nil, fmt.Errorf("%w: %s script for migration %s", source.ErrScriptMissing, direction, mig.Version)
}

// ---

// ParseFileName extracts the version, name and direction from a migration
// file name. Version 0 is rejected: it denotes the empty database in the
// version store and can never be the result of applying a migration.
func ParseFileName(fileName string) (migration.Migration, migration.Direction, error) {
	match := fileNamePattern.FindStringSubmatch(fileName)
	if match == nil {
		return migration.Migration{}, 0, fmt.Errorf("%w: %s", source.ErrMalformedName, fileName)
	}

	version, err := strconv.ParseUint(match[1], 10, migration.VersionBits)
	if err != nil {
		return migration.Migration{}, 0, fmt.Errorf("%w: version in %s does not fit into %d bits", source.ErrMalformedName, fileName, migration.VersionBits)
	}

	if version == 0 {
		return migration.Migration{}, 0, fmt.Errorf("%w: version 0 is not allowed: %s", source.ErrMalformedName, fileName)
	}

	direction := migration.Up
	if match[3] == "down" {
		direction = migration.Down
	}

	return migration.Migration{
		Version: migration.Version(version),
		Name:    match[2],
	}, direction, nil
}

// FileName builds the canonical file name for a migration script, with the
// version zero-padded for display.
func FileName(mig migration.Migration, direction migration.Direction) string {
	return fmt.Sprintf("%s_%s.%s.sql", mig.Version, mig.Name, direction)
}

// ---

type versionMap map[migration.Version]migration.Description

func (m versionMap) updateDescription(mig migration.Migration, direction migration.Direction) error {
	descr, exists := m[mig.Version]

	switch {
	case !exists:
		m[mig.Version] = migration.Description{
			Migration: mig,
			CanApply:  direction == migration.Up,
			CanUndo:   direction == migration.Down,
		}

	case descr.Name != mig.Name:
		return fmt.Errorf(
			"%w: migration %s already exists with name \"%s\" (new name \"%s\" is encountered)",
			source.ErrMigrationDuplicated,
			mig.Version,
			descr.Name,
			mig.Name,
		)

	case direction == migration.Up:
		if descr.CanApply {
			return fmt.Errorf("%w: second up script for migration %s", source.ErrMigrationDuplicated, mig.Version)
		}
		descr.CanApply = true
		m[mig.Version] = descr

	case direction == migration.Down:
		if descr.CanUndo {
			return fmt.Errorf("%w: second down script for migration %s", source.ErrMigrationDuplicated, mig.Version)
		}
		descr.CanUndo = true
		m[mig.Version] = descr
	}

	return nil
}

func getSortedVersions(migrations versionMap) []uint64 {
	keys := make([]uint64, 0, len(migrations))

	for k := range migrations {
		keys = append(keys, uint64(k))
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

func buildMigrationsSlice(keys []uint64, migrations versionMap) []migration.Description {
	result := make([]migration.Description, len(keys))
	for i, k := range keys {
		result[i] = migrations[migration.Version(k)]
	}
	return result
}
