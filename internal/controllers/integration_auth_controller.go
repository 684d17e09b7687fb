package controllers

import (
	"errors"
	"time"

	"github.com/devblin/infisical/internal/managers"
	"github.com/devblin/infisical/pkg/domain"
	"github.com/devblin/infisical/pkg/integrations/refresh"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// IntegrationAuthController serves integration access tokens to internal callers
type IntegrationAuthController struct {
	accessManager domain.IntegrationAccessManager
}

type IntegrationAuthControllerDependencies struct {
	AccessManager domain.IntegrationAccessManager
}

func NewIntegrationAuthController(deps IntegrationAuthControllerDependencies) *IntegrationAuthController {
	return &IntegrationAuthController{
		accessManager: deps.AccessManager,
	}
}

type IntegrationAccessResponse struct {
	IntegrationAuthID string     `json:"integration_auth_id"`
	AccessID          string     `json:"access_id,omitempty"`
	AccessToken       string     `json:"access_token"`
	AccessExpiresAt   *time.Time `json:"access_expires_at,omitempty"`
}

// GetAccess returns a valid access token, refreshing it first when it has expired
func (c *IntegrationAuthController) GetAccess(ctx fiber.Ctx) error {
	integrationAuthID := ctx.Params("integrationAuthID")

	access, err := c.accessManager.GetIntegrationAuthAccess(ctx.RequestCtx(), integrationAuthID)
	if err != nil {
		return toFiberError(integrationAuthID, err)
	}

	return ctx.JSON(newIntegrationAccessResponse(integrationAuthID, access))
}

// Refresh forces a refresh token exchange regardless of the current expiry
func (c *IntegrationAuthController) Refresh(ctx fiber.Ctx) error {
	integrationAuthID := ctx.Params("integrationAuthID")

	access, err := c.accessManager.RefreshIntegrationAuthAccess(ctx.RequestCtx(), integrationAuthID)
	if err != nil {
		return toFiberError(integrationAuthID, err)
	}

	log.Info().Str("integration_auth_id", integrationAuthID).Msg("Integration auth refreshed")

	return ctx.JSON(newIntegrationAccessResponse(integrationAuthID, access))
}

func newIntegrationAccessResponse(integrationAuthID string, access domain.IntegrationAccess) IntegrationAccessResponse {
	return IntegrationAccessResponse{
		IntegrationAuthID: integrationAuthID,
		AccessID:          access.AccessID,
		AccessToken:       access.AccessToken,
		AccessExpiresAt:   access.AccessExpiresAt,
	}
}

func toFiberError(integrationAuthID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrIntegrationAuthNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Integration auth not found")
	case errors.Is(err, managers.ErrNoRefreshToken):
		return fiber.NewError(fiber.StatusConflict, "Integration auth has no refresh token")
	case errors.Is(err, refresh.ErrUnsupportedIntegration):
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Integration does not support token refresh")
	case errors.Is(err, refresh.ErrRefreshFailed):
		log.Error().Err(err).Str("integration_auth_id", integrationAuthID).Msg("Failed to refresh integration auth")
		return fiber.NewError(fiber.StatusBadGateway, "Failed to refresh access token")
	}

	log.Error().Err(err).Str("integration_auth_id", integrationAuthID).Msg("Failed to get integration access")

	return fiber.NewError(fiber.StatusInternalServerError, "Failed to get integration access")
}
