package domain

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// TokenDetails is the normalized result of any provider refresh exchange.
type TokenDetails struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// Complete reports whether all three fields were produced by the exchange.
func (t TokenDetails) Complete() bool {
	return t.AccessToken != "" && t.RefreshToken != "" && !t.AccessExpiresAt.IsZero()
}

func (t TokenDetails) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.AccessExpiresAt,
	}
}

type SetIntegrationAuthAccessParams struct {
	IntegrationAuthID string
	AccessID          *string
	AccessToken       string
	AccessExpiresAt   *time.Time
}

type SetIntegrationAuthRefreshParams struct {
	IntegrationAuthID string
	RefreshToken      string
}

// IntegrationAuthSetter is the persistence collaborator of the refresh dispatcher.
type IntegrationAuthSetter interface {
	SetIntegrationAuthAccess(ctx context.Context, p SetIntegrationAuthAccessParams) error
	SetIntegrationAuthRefresh(ctx context.Context, p SetIntegrationAuthRefreshParams) error
}

type RefreshExchanger interface {
	ExchangeRefresh(ctx context.Context, auth IntegrationAuth, refreshToken string) (string, error)
}

type IntegrationAccess struct {
	AccessID        string
	AccessToken     string
	AccessExpiresAt *time.Time
}

type IntegrationAccessProvider interface {
	GetIntegrationAuthAccess(ctx context.Context, integrationAuthID string) (IntegrationAccess, error)
}

type IntegrationAccessManager interface {
	IntegrationAccessProvider
	RefreshIntegrationAuthAccess(ctx context.Context, integrationAuthID string) (IntegrationAccess, error)
}
