package managers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/devblin/infisical/pkg/domain"
	"golang.org/x/oauth2"
)

type integrationTokenSource struct {
	ctx               context.Context
	provider          domain.IntegrationAccessProvider
	integrationAuthID string
}

// NewIntegrationTokenSource serves tokens of one integration auth, refreshing
// through the provider once the cached token expires.
func NewIntegrationTokenSource(ctx context.Context, provider domain.IntegrationAccessProvider, integrationAuthID string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &integrationTokenSource{
		ctx:               ctx,
		provider:          provider,
		integrationAuthID: integrationAuthID,
	})
}

func (s *integrationTokenSource) Token() (*oauth2.Token, error) {
	access, err := s.provider.GetIntegrationAuthAccess(s.ctx, s.integrationAuthID)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration auth access: %w", err)
	}

	if access.AccessToken == "" {
		return nil, fmt.Errorf("integration auth %s has no access token", s.integrationAuthID)
	}

	token := &oauth2.Token{
		AccessToken: access.AccessToken,
		TokenType:   "Bearer",
	}

	if access.AccessExpiresAt != nil {
		token.Expiry = *access.AccessExpiresAt
	}

	return token, nil
}

// NewIntegrationHTTPClient returns a client that authenticates every request
// as the given integration auth.
func NewIntegrationHTTPClient(ctx context.Context, provider domain.IntegrationAccessProvider, integrationAuthID string) *http.Client {
	return oauth2.NewClient(ctx, NewIntegrationTokenSource(ctx, provider, integrationAuthID))
}
