package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/blonki/internal/domain"
)

func newReviewCmd() *cobra.Command {
	var responseTime time.Duration
	cmd := &cobra.Command{
		Use:       "review <card-id> correct|incorrect",
		Short:     "Record a review and reschedule the card",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(domain.Correct), string(domain.Incorrect)},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid card id %q", args[0])
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			card, err := a.svc.Review(cmd.Context(), id, domain.Outcome(args[1]), responseTime)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card %d due %s (interval %d days, ease %.2f, %s)\n",
				card.ID, card.DueDate.Format(time.DateOnly), card.Interval, card.EaseFactor, a.svc.Algorithm().Name())
			return nil
		},
	}
	cmd.Flags().DurationVar(&responseTime, "time", 0, "how long the answer took, e.g. 4s")
	return cmd
}
