package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Bootstrap the version store",
		Long: `Create the version record with version 0 and a clean dirty flag. Fails
if the store is already initialized.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer closer()

			if err = engine.Initialize(cmd.Context()); err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "version store initialized")

			return nil
		},
	}
}
