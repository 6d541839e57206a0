package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/root-talis/dankai"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Report the currently applied version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer closer()

			return printState(cmd, engine)
		},
	}
}

func printState(cmd *cobra.Command, engine dankai.Dankai) error {
	state, err := engine.State(cmd.Context())
	if err != nil {
		return err
	}

	if state.Dirty {
		color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "%s (dirty)\n", state.Version)
		return nil
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "%s\n", state.Version)

	return nil
}
