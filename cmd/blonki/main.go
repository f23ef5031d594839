// Command blonki imports, exports and reviews flashcard decks stored as
// APKG archives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conorfennell/blonki/internal/apkg"
	"github.com/conorfennell/blonki/internal/config"
	"github.com/conorfennell/blonki/internal/logging"
	"github.com/conorfennell/blonki/internal/service"
	"github.com/conorfennell/blonki/internal/srs"
	"github.com/conorfennell/blonki/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "blonki",
		Short:         "Flashcard library with APKG import and export",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())
	root.AddCommand(
		newImportCmd(),
		newExportCmd(),
		newDecksCmd(),
		newReviewCmd(),
		newServeCmd(),
	)
	return root
}

// app is everything a command needs, built from the loaded configuration.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	lib        *storage.Library
	translator *apkg.Translator
	svc        *service.Service
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := logging.Setup(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	algorithm, err := srs.FromSettings(cfg.SRS)
	if err != nil {
		return nil, err
	}

	lib, err := storage.Open(cmd.Context(), cfg.Library)
	if err != nil {
		return nil, err
	}
	logger.Debug("Library opened", "backend", lib.Description())

	tr := apkg.New(
		apkg.WithLogger(logger),
		apkg.WithCompression(cfg.Export.Compress),
		apkg.WithCollectionSettings(cfg.Export.IncludeSettings),
	)
	return &app{
		cfg:        cfg,
		log:        logger,
		lib:        lib,
		translator: tr,
		svc:        service.New(lib, tr, algorithm, service.WithLogger(logger)),
	}, nil
}

func (a *app) Close() error {
	return a.lib.Close()
}
