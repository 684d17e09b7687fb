package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/devblin/infisical/internal/server"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewServeCommand(app *App) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the integration access API and the refresh scheduler",
		Long: `Serve the internal integration auth API and, unless disabled, periodically
refresh access tokens that are about to expire. Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), app, noScheduler)
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Do not run the background refresh scheduler")

	return cmd
}

func runServe(parent context.Context, app *App, noScheduler bool) error {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	container, err := app.Container()
	if err != nil {
		return err
	}

	cfg := container.GetConfig()
	if err := cfg.RequireServer(); err != nil {
		return err
	}

	deps, err := container.BuildIntegrationDependencies(ctx)
	if err != nil {
		return err
	}

	httpServer := server.NewHTTPServer(ctx, server.HTTPServerDependencies{
		APIKey:                    cfg.APIKey,
		IntegrationAuthController: deps.IntegrationAuthController,
	})

	g, gctx := errgroup.WithContext(ctx)

	if !noScheduler {
		g.Go(func() error {
			return deps.RefreshScheduler.Start(gctx)
		})
	}

	g.Go(func() error {
		log.Info().Str("address", cfg.HTTPAddress).Msg("Starting HTTP server")

		err := httpServer.Listen(cfg.HTTPAddress, fiber.ListenConfig{
			GracefulContext:       gctx,
			DisableStartupMessage: true,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
		return err
	}

	log.Info().Msg("Service stopped")

	return nil
}
