package managers

import (
	"context"
	"fmt"
	"time"

	"github.com/devblin/infisical/pkg/domain"
	"github.com/rs/zerolog/log"
)

type IntegrationAccessManagerDependencies struct {
	AuthManager domain.IntegrationAuthManager
	Exchanger   domain.RefreshExchanger
	Now         func() time.Time
}

type integrationAccessManager struct {
	authManager domain.IntegrationAuthManager
	exchanger   domain.RefreshExchanger
	now         func() time.Time
}

func NewIntegrationAccessManager(deps IntegrationAccessManagerDependencies) domain.IntegrationAccessManager {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &integrationAccessManager{
		authManager: deps.AuthManager,
		exchanger:   deps.Exchanger,
		now:         now,
	}
}

// GetIntegrationAuthAccess returns the stored access token, exchanging the
// refresh token first when the access token has expired.
func (m *integrationAccessManager) GetIntegrationAuthAccess(ctx context.Context, integrationAuthID string) (domain.IntegrationAccess, error) {
	auth, err := m.authManager.GetIntegrationAuth(ctx, integrationAuthID)
	if err != nil {
		return domain.IntegrationAccess{}, err
	}

	if auth.IsAccessExpired(m.now()) {
		log.Debug().
			Str("integration_auth_id", auth.ID).
			Str("integration", string(auth.Integration)).
			Msg("Access token expired, refreshing")

		return m.refresh(ctx, auth)
	}

	return m.authManager.GetAccess(ctx, auth)
}

// RefreshIntegrationAuthAccess exchanges the refresh token regardless of expiry.
func (m *integrationAccessManager) RefreshIntegrationAuthAccess(ctx context.Context, integrationAuthID string) (domain.IntegrationAccess, error) {
	auth, err := m.authManager.GetIntegrationAuth(ctx, integrationAuthID)
	if err != nil {
		return domain.IntegrationAccess{}, err
	}

	return m.refresh(ctx, auth)
}

func (m *integrationAccessManager) refresh(ctx context.Context, auth domain.IntegrationAuth) (domain.IntegrationAccess, error) {
	refreshToken, err := m.authManager.GetRefreshToken(ctx, auth)
	if err != nil {
		return domain.IntegrationAccess{}, err
	}

	accessToken, err := m.exchanger.ExchangeRefresh(ctx, auth, refreshToken)
	if err != nil {
		return domain.IntegrationAccess{}, err
	}

	refreshed, err := m.authManager.GetIntegrationAuth(ctx, auth.ID)
	if err != nil {
		return domain.IntegrationAccess{}, fmt.Errorf("failed to reload integration auth: %w", err)
	}

	access, err := m.authManager.GetAccess(ctx, refreshed)
	if err != nil {
		return domain.IntegrationAccess{}, err
	}

	// The exchange result is authoritative even when the provider response was
	// incomplete and nothing got persisted.
	access.AccessToken = accessToken

	return access, nil
}
