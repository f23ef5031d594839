package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDecksCmd() *cobra.Command {
	var deckID int64
	cmd := &cobra.Command{
		Use:   "decks",
		Short: "List decks, or the cards of one deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if deckID != 0 {
				if _, err := a.lib.Decks(cmd.Context(), deckID); err != nil {
					return err
				}
				cards, err := a.lib.CardsByDeck(cmd.Context(), deckID)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ID\tFRONT\tINTERVAL\tDUE")
				for _, c := range cards {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", c.ID, c.Front, c.Interval, c.DueDate.Format("2006-01-02"))
				}
				return nil
			}

			decks, err := a.lib.ListDecks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "ID\tNAME\tCARDS")
			for _, d := range decks {
				fmt.Fprintf(tw, "%d\t%s\t%d\n", d.ID, d.Name, d.CardCount)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&deckID, "deck", 0, "list the cards of this deck")
	return cmd
}
