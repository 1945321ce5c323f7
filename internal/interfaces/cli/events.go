package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/insurance-derivatives/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow ledger change events",
	}

	var (
		limit         int
		fromBeginning bool
		group         string
		topics        []string
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print change events as they arrive",
		Long: "tail joins the ledger topics and prints each change event. It stops after\n" +
			"--limit events, when --timeout elapses, or on interrupt.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.NewValidation("--limit must not be negative")
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			all := kafka.NewTopics(cliCtx.Config.Events.TopicPrefix)
			selected, err := selectTopics(all, topics)
			if err != nil {
				return err
			}

			src, err := cliCtx.Events(cliCtx.Config, kafka.ConsumerOptions{
				Topics:        selected,
				GroupID:       group,
				FromBeginning: fromBeginning,
			}, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := src.Close(); cerr != nil {
					cliCtx.Logger.Warn("event source close failed", logging.Err(cerr))
				}
			}()

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			asJSON := cliCtx.OutputFormat == "json"
			enc := json.NewEncoder(cmd.OutOrStdout())
			n, err := src.Consume(ctx, limit, func(_ context.Context, ev kafka.Event) error {
				if asJSON {
					return enc.Encode(ev.EventEnvelope)
				}
				_, werr := fmt.Fprintln(cmd.OutOrStdout(), formatEvent(ev))
				return werr
			})
			if err != nil {
				return err
			}
			if !asJSON {
				PrintSuccess(cmd, fmt.Sprintf("%d event(s)", n))
			}
			return nil
		},
	}
	tail.Flags().IntVar(&limit, "limit", 0, "stop after this many events (0 means no limit)")
	tail.Flags().BoolVar(&fromBeginning, "from-beginning", false, "start from the oldest retained event")
	tail.Flags().StringVar(&group, "group", "", "consumer group (default: a fresh group per run)")
	tail.Flags().StringSliceVar(&topics, "topic", nil, "obligations, derivatives or risks (default: all)")

	cmd.AddCommand(tail)
	return cmd
}

func selectTopics(all kafka.Topics, names []string) ([]string, error) {
	if len(names) == 0 {
		return all.All(), nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		switch n {
		case "obligations":
			out = append(out, all.Obligations)
		case "derivatives":
			out = append(out, all.Derivatives)
		case "risks":
			out = append(out, all.Risks)
		default:
			return nil, errors.Validationf("unknown topic %q", n)
		}
	}
	return out, nil
}

func formatEvent(ev kafka.Event) string {
	return fmt.Sprintf("%s  %-20s %-18s key=%s",
		ev.Timestamp.UTC().Format(time.RFC3339), ev.Topic, ev.EventType, ev.Key)
}
