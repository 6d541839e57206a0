package main

import (
	"github.com/spf13/cobra"
)

func NewForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Overwrite the stored version and clear the dirty flag",
		Long: `Set the stored version directly, bypassing planning and execution, and
clear the dirty flag. This is an escape hatch for manual recovery after a
failed migration, not a validated transition.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersionArg(args[0])
			if err != nil {
				return err
			}

			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer closer()

			if err = engine.Force(cmd.Context(), version); err != nil {
				return err
			}

			return printState(cmd, engine)
		},
	}
}
