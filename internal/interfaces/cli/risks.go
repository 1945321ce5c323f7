package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
)

func newRisksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risks",
		Short: "Manage the risk catalogue",
	}

	var category string
	list := &cobra.Command{
		Use:   "list",
		Short: "List catalogued risks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var c risk.Category
			if category != "" {
				parsed, err := risk.ParseCategory(category)
				if err != nil {
					return err
				}
				c = parsed
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend) error {
				var (
					rs  []risk.Risk
					err error
				)
				if c != "" {
					rs, err = b.Risks.FindByCategory(ctx, c)
				} else {
					rs, err = b.Risks.FindAll(ctx)
				}
				if err != nil {
					return err
				}
				return PrintResult(cmd, riskList(rs))
			})
		},
	}
	list.Flags().StringVar(&category, "category", "", "only risks of this category")

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Insert the standard risks that are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, b *Backend) error {
				n, err := b.Risks.SeedStandard(ctx)
				if err != nil {
					return err
				}
				PrintSuccess(cmd, fmt.Sprintf("seeded %d of %d standard risks", n, len(risk.Standard())))
				return nil
			})
		},
	}

	cmd.AddCommand(list, seed)
	return cmd
}
