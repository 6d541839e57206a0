package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewDropCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop everything in the target database",
		Long: `Drop every table in the target database, including the version store.
Requires the -f flag to confirm.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to drop the database without -f")
			}

			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer closer()

			if err = engine.Drop(cmd.Context()); err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "database dropped")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "confirm dropping the database")

	return cmd
}
