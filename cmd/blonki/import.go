package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conorfennell/blonki/internal/ingest"
)

func newImportCmd() *cobra.Command {
	var (
		merge    bool
		reposDir string
	)
	cmd := &cobra.Command{
		Use:   "import <source>...",
		Short: "Import archives from files, directories, git repositories or URLs",
		Long: `Import reads every .apkg archive named by the sources into the library.
A source is a file, a directory (searched recursively), a git remote ending
in .git, or an http(s) URL. Without --merge the first archive replaces the
library contents.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ing := ingest.New(a.translator, a.lib,
				ingest.WithReposDir(reposDir),
				ingest.WithProgress(cmd.ErrOrStderr()),
				ingest.WithLogger(a.log),
			)
			report, err := ing.Run(cmd.Context(), args, merge)
			if report != nil {
				out := cmd.OutOrStdout()
				for _, r := range report.Results {
					if r.Error != "" {
						fmt.Fprintf(out, "%s: failed: %s\n", r.Source, r.Error)
						continue
					}
					fmt.Fprintf(out, "%s: %d cards into %q (%d duplicates skipped)\n", r.Source, r.Cards, r.Deck, r.Skipped)
				}
				fmt.Fprintf(out, "Imported %d cards from %d archives.\n", report.Cards(), len(report.Results))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "merge into the existing library instead of replacing it")
	cmd.Flags().StringVar(&reposDir, "repos", "repos", "directory git sources are checked out into")
	return cmd
}
