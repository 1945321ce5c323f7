package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

func newObligationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "obligations",
		Aliases: []string{"obl"},
		Short:   "Inspect stored insurance obligations",
	}

	var statusFlag, typeFlag string
	list := &cobra.Command{
		Use:   "list",
		Short: "List obligations, optionally by status and type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				status obligation.Status
				typ    obligation.Type
			)
			if statusFlag != "" {
				s, err := obligation.ParseStatus(statusFlag)
				if err != nil {
					return err
				}
				status = s
			}
			if typeFlag != "" {
				t, err := obligation.ParseType(typeFlag)
				if err != nil {
					return err
				}
				typ = t
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend) error {
				list, err := listObligations(ctx, b.Obligations, status, typ)
				if err != nil {
					return err
				}
				return PrintResult(cmd, newObligationList(list))
			})
		},
	}
	list.Flags().StringVar(&statusFlag, "status", "", "DRAFT, PENDING, ACTIVE, EXPIRED, CANCELLED or CLAIMED")
	list.Flags().StringVar(&typeFlag, "type", "", "HEALTH, LIFE or PROPERTY")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one obligation with its details and risks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositive(args[0], "id")
			if err != nil {
				return err
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend) error {
				o, err := b.Obligations.FindByID(ctx, id)
				if err != nil {
					return err
				}
				return PrintResult(cmd, newObligationView(o))
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an obligation and detach it from every derivative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositive(args[0], "id")
			if err != nil {
				return err
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend) error {
				ok, err := b.Obligations.Delete(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New(errors.ErrCodeObligationNotFound, fmt.Sprintf("obligation %d not found", id))
				}
				PrintSuccess(cmd, fmt.Sprintf("deleted obligation %d", id))
				return nil
			})
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

// listObligations queries by the most selective filter and applies the
// other one in memory.
func listObligations(ctx context.Context, repo obligation.Repository, status obligation.Status, typ obligation.Type) ([]obligation.Obligation, error) {
	switch {
	case typ != "":
		list, err := repo.FindByType(ctx, typ)
		if err != nil || status == "" {
			return list, err
		}
		out := make([]obligation.Obligation, 0, len(list))
		for _, o := range list {
			if o.Status() == status {
				out = append(out, o)
			}
		}
		return out, nil
	case status != "":
		return repo.FindByStatus(ctx, status)
	default:
		return repo.FindAll(ctx)
	}
}
