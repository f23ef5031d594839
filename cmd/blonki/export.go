package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conorfennell/blonki/internal/blob"
)

func newExportCmd() *cobra.Command {
	var (
		deckIDs []int64
		out     string
		upload  bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export decks to an .apkg archive",
		Long: `Export writes the selected decks, or every deck, to an archive named
blonki-export-YYYY-MM-DD.apkg in the export directory. Use --out - to write
to stdout, or --upload to store it in the configured bucket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			export, err := a.svc.Export(ctx, deckIDs...)
			if err != nil {
				return err
			}

			if upload {
				store, err := blob.New(ctx, a.cfg.Blob)
				if err != nil {
					return err
				}
				loc, err := store.Put(ctx, export.Name, export.Data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d cards from %d decks to %s\n", export.Cards, export.Decks, loc)
				return nil
			}

			if out == "-" {
				_, err := cmd.OutOrStdout().Write(export.Data)
				return err
			}
			if out == "" {
				out = filepath.Join(a.cfg.Export.Dir, export.Name)
			}
			if err := os.WriteFile(out, export.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d cards from %d decks to %s\n", export.Cards, export.Decks, out)
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&deckIDs, "deck", nil, "deck id to export (repeatable; default all)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path, or - for stdout")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload to the configured bucket instead of writing a file")
	return cmd
}
