package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func NewUpCmd() *cobra.Command {
	var toVersion string

	cmd := &cobra.Command{
		Use:   "up [n]",
		Short: "Apply pending migrations",
		Long: `Apply pending up migrations in ascending version order.

With no arguments every pending migration is applied. With a step count n
at most n migrations are applied. With --to, migrations are applied up to
and including the target version.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if toVersion != "" && len(args) == 1 {
				return fmt.Errorf("--to cannot be combined with a step count")
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
				if err = engine.UpTo(ctx, target); err != nil {
					return err
				}

			case len(args) == 1:
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid step count %q: expected a positive integer", args[0])
				}
				if err = engine.Steps(ctx, n); err != nil {
					return err
				}

			default:
				if err = engine.Up(ctx); err != nil {
					return err
				}
			}

			return printState(cmd, engine)
		},
	}

	cmd.Flags().StringVar(&toVersion, "to", "", "migrate up to this version and stop")

	return cmd
}
