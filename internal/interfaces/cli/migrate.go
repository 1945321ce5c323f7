package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackend(cmd, func(_ context.Context, b *Backend) error {
					if err := b.Migrator.Up(); err != nil {
						return err
					}
					return printMigrationState(cmd, b)
				})
			},
		},
		&cobra.Command{
			Use:   "down N",
			Short: "Roll back N migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps, err := parsePositive(args[0], "steps")
				if err != nil {
					return err
				}
				return withBackend(cmd, func(_ context.Context, b *Backend) error {
					if err := b.Migrator.Down(int(steps)); err != nil {
						return err
					}
					return printMigrationState(cmd, b)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackend(cmd, func(_ context.Context, b *Backend) error {
					return printMigrationState(cmd, b)
				})
			},
		},
		&cobra.Command{
			Use:   "force V",
			Short: "Record V as the schema version and clear the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return errors.Validationf("invalid version %q", args[0])
				}
				return withBackend(cmd, func(_ context.Context, b *Backend) error {
					if err := b.Migrator.Force(v); err != nil {
						return err
					}
					return printMigrationState(cmd, b)
				})
			},
		},
	)
	return cmd
}

func printMigrationState(cmd *cobra.Command, b *Backend) error {
	state, err := b.Migrator.Status()
	if err != nil {
		return err
	}
	return PrintResult(cmd, newMigrationView(state))
}

// parsePositive parses a strictly positive integer argument.
func parsePositive(s, what string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.NewValidation(fmt.Sprintf("%s must be a positive integer, got %q", what, s))
	}
	return n, nil
}
