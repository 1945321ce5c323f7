package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

func newDerivativesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "derivatives",
		Aliases: []string{"drv"},
		Short:   "Inspect stored derivatives",
	}

	var (
		name               string
		minTotal, maxTotal float64
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List derivatives, optionally by name and total value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ranged := cmd.Flags().Changed("min") || cmd.Flags().Changed("max")
			if ranged && !cmd.Flags().Changed("max") {
				return errors.NewValidation("--min requires --max")
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend) error {
				var (
					list []*derivative.Derivative
					err  error
				)
				switch {
				case ranged:
					list, err = b.Derivatives.FindByTotalValueRange(ctx, minTotal, maxTotal)
					if err == nil && name != "" {
						list = derivative.Filter(list, derivative.Criteria{NameContains: name})
					}
				case name != "":
					list, err = b.Derivatives.FindByName(ctx, name)
				default:
					list, err = b.Derivatives.FindAll(ctx)
				}
				if err != nil {
					return err
				}
				return PrintResult(cmd, newDerivativeList(list))
			})
		},
	}
	list.Flags().StringVar(&name, "name", "", "case-insensitive name substring")
	list.Flags().Float64Var(&minTotal, "min", 0, "lowest total value (inclusive)")
	list.Flags().Float64Var(&maxTotal, "max", 0, "highest total value (inclusive)")

	var activeOnly, byRisk bool
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show a derivative and its obligations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositive(args[0], "id")
			if err != nil {
				return err
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend) error {
				d, err := b.Derivatives.FindByID(ctx, id)
				if err != nil {
					return err
				}
				if byRisk {
					d.SortByRiskLevel()
				}
				var shown []obligation.Obligation
				if activeOnly {
					shown = d.ActiveObligations()
				} else {
					shown = d.Obligations()
				}
				return PrintResult(cmd, newDerivativeView(d, shown))
			})
		},
	}
	show.Flags().BoolVar(&activeOnly, "active", false, "only list active obligations")
	show.Flags().BoolVar(&byRisk, "sort-risk", false, "order obligations by risk level")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a derivative; its obligations are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositive(args[0], "id")
			if err != nil {
				return err
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend) error {
				ok, err := b.Derivatives.Delete(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New(errors.ErrCodeDerivativeNotFound, fmt.Sprintf("derivative %d not found", id))
				}
				PrintSuccess(cmd, fmt.Sprintf("deleted derivative %d", id))
				return nil
			})
		},
	}

	snapshot := &cobra.Command{
		Use:   "snapshot ID",
		Short: "Archive the current valuation of a derivative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositive(args[0], "id")
			if err != nil {
				return err
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend) error {
				if b.Snapshots == nil {
					return errSnapshotsOff
				}
				d, err := b.Derivatives.FindByID(ctx, id)
				if err != nil {
					return err
				}
				info, err := b.Snapshots.Save(ctx, d)
				if err != nil {
					return err
				}
				return PrintResult(cmd, snapshotList{*info})
			})
		},
	}

	var latest bool
	snapshots := &cobra.Command{
		Use:   "snapshots ID",
		Short: "List the archived snapshots of a derivative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositive(args[0], "id")
			if err != nil {
				return err
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend) error {
				if b.Snapshots == nil {
					return errSnapshotsOff
				}
				if latest {
					snap, err := b.Snapshots.Latest(ctx, id)
					if err != nil {
						return err
					}
					return PrintResult(cmd, snapshotView{snap})
				}
				list, err := b.Snapshots.List(ctx, id)
				if err != nil {
					return err
				}
				return PrintResult(cmd, snapshotList(list))
			})
		},
	}
	snapshots.Flags().BoolVar(&latest, "latest", false, "print the newest snapshot instead of the list")

	cmd.AddCommand(list, show, del, snapshot, snapshots)
	return cmd
}

var errSnapshotsOff = errors.NewValidation("the snapshot archive is disabled or the object store is unreachable")
