package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func NewDownCmd() *cobra.Command {
	var (
		toVersion string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "down [n]",
		Short: "Revert applied migrations",
		Long: `Revert applied migrations in descending version order.

With no arguments a single migration is reverted. With a step count n at
most n migrations are reverted; --all reverts everything. With --to, the
store lands exactly on the target version.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && toVersion != "" {
				return fmt.Errorf("--all cannot be combined with --to")
			}
			if len(args) == 1 && (toVersion != "" || all) {
				return fmt.Errorf("a step count cannot be combined with --to or --all")
			}

			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer closer()

			ctx := cmd.Context()

			switch {
			case toVersion != "":
				target, err := parseVersionArg(toVersion)
				if err != nil {
					return err
				}
				if err = engine.DownTo(ctx, target); err != nil {
					return err
				}

			case all:
				if err = engine.Down(ctx); err != nil {
					return err
				}

			case len(args) == 1:
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid step count %q: expected a positive integer", args[0])
				}
				if err = engine.Steps(ctx, -n); err != nil {
					return err
				}

			default:
				if err = engine.Steps(ctx, -1); err != nil {
					return err
				}
			}

			return printState(cmd, engine)
		},
	}

	cmd.Flags().StringVar(&toVersion, "to", "", "migrate down until the store lands on this version")
	cmd.Flags().BoolVar(&all, "all", false, "revert every applied migration")

	return cmd
}
