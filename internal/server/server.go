package server

import (
	"context"
	"time"

	"github.com/devblin/infisical/internal/controllers"
	"github.com/devblin/infisical/internal/middlewares"
	"github.com/devblin/infisical/internal/version"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/rs/zerolog/log"
)

const serviceName = "infisical-integrations"

type HTTPServerDependencies struct {
	APIKey                    string
	IntegrationAuthController *controllers.IntegrationAuthController
	DisableRequestLogging     bool
}

func NewHTTPServer(ctx context.Context, deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName: serviceName,
	})

	router.Use(cors.New())
	if !deps.DisableRequestLogging {
		router.Use(logger.New())
	}

	// Health check endpoint (no authentication required)
	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   serviceName,
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	if deps.APIKey == "" {
		log.Fatal().Msg("API key is empty, please configure INFISICAL_API_KEY")
	}

	integrationAuth := router.Group("/integration-auths/:integrationAuthID")
	integrationAuth.Use(middlewares.APIKeyMiddleware(deps.APIKey))

	integrationAuth.Get("/access", deps.IntegrationAuthController.GetAccess)
	integrationAuth.Post("/refresh", deps.IntegrationAuthController.Refresh)

	return router
}
