package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/root-talis/dankai"
)

func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer closer()

			migrations, err := engine.List(cmd.Context())
			if err != nil {
				return err
			}

			applied := color.New(color.FgGreen)
			pending := color.New(color.FgYellow)

			for _, state := range migrations {
				marker := ""
				if !state.CanUndo {
					marker = " (no down script)"
				}
				if !state.CanApply {
					marker = " (no up script)"
				}

				line := fmt.Sprintf("%s  %s%s", state.Version, state.Name, marker)

				if state.Status == dankai.Applied {
					applied.Fprintf(cmd.OutOrStdout(), "applied  %s\n", line)
				} else {
					pending.Fprintf(cmd.OutOrStdout(), "pending  %s\n", line)
				}
			}

			return nil
		},
	}
}
