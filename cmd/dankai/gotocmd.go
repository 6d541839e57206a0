package main

import (
	"github.com/spf13/cobra"
)

func NewGotoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "goto <version>",
		Short: "Migrate up or down to an exact version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseVersionArg(args[0])
			if err != nil {
				return err
			}

			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer closer()

			if err = engine.Goto(cmd.Context(), target); err != nil {
				return err
			}

			return printState(cmd, engine)
		},
	}
}
