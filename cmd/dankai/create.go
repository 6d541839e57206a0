package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/root-talis/dankai/migration"
	"github.com/root-talis/dankai/source/files"
)

func NewCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty up/down migration pair",
		Long: `Create <version>_<name>.up.sql and <version>_<name>.down.sql in the
migrations directory, where <version> is one above the highest existing
version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
				return fmt.Errorf("failed to create the migrations directory: %w", err)
			}

			next, err := nextVersion()
			if err != nil {
				return err
			}

			mig := migration.Migration{Version: next, Name: name}

			for _, direction := range []migration.Direction{migration.Up, migration.Down} {
				path := filepath.Join(migrationsDir, files.FileName(mig, direction))

				if err = os.WriteFile(path, nil, 0o644); err != nil {
					return fmt.Errorf("failed to create %s: %w", path, err)
				}

				color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), path)
			}

			return nil
		},
	}
}

func nextVersion() (migration.Version, error) {
	src, err := files.NewFilesSource(os.DirFS(migrationsDir), ".")
	if err != nil {
		return 0, err
	}

	available, err := src.GetAvailableMigrations()
	if err != nil {
		return 0, err
	}

	var max migration.Version
	for _, descr := range *available {
		if descr.Version > max {
			max = descr.Version
		}
	}

	return max + 1, nil
}
