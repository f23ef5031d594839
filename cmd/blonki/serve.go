package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/blonki/internal/blob"
	"github.com/conorfennell/blonki/internal/ingest"
	"github.com/conorfennell/blonki/internal/web"
)

func newServeCmd() *cobra.Command {
	var reposDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			opts := []web.Option{
				web.WithLogger(a.log),
				web.WithRateLimit(a.cfg.Server.RateLimit),
				web.WithCORSOrigins(a.cfg.Server.CORSOrigins),
				web.WithRemoteImport(a.cfg.Server.RemoteImport),
			}
			if a.cfg.Blob.Enabled() {
				store, err := blob.New(ctx, a.cfg.Blob)
				if err != nil {
					return err
				}
				opts = append(opts, web.WithUploader(store))
			}
			ing := ingest.New(a.translator, a.lib, ingest.WithReposDir(reposDir), ingest.WithLogger(a.log))

			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           web.NewServer(a.lib, a.svc, ing, opts...),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				a.log.Info("Starting server", "addr", srv.Addr, "library", a.lib.Description())
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			a.log.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reposDir, "repos", "repos", "directory git sources are checked out into")
	return cmd
}
