package refresh

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/devblin/infisical/pkg/domain"
)

type gcpRefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
	TokenType   string `json:"token_type"`
}

// GCP takes a JSON body and never rotates the refresh token.
func NewGCPSecretManagerProvider(creds ClientCredentials, tokenURL string) Provider {
	return Provider{
		Integration: domain.IntegrationType_GCPSecretManager,
		Name:        "GCP secret manager",
		TokenURL:    tokenURL,
		Encoding:    BodyEncodingJSON,
		Headers: map[string]string{
			"Accept-Encoding": "application/json",
		},
		BuildBody: func(refreshToken string) map[string]string {
			return map[string]string{
				"grant_type":    "refresh_token",
				"refresh_token": refreshToken,
				"client_secret": creds.GCPClientSecret,
				"client_id":     creds.GCPClientID,
			}
		},
		Normalize: normalizeGCP,
	}
}

// The expiry is computed in epoch milliseconds and used as the absolute
// instant; it is not added to now a second time.
func normalizeGCP(body []byte, refreshToken string, now time.Time) (domain.TokenDetails, error) {
	var res gcpRefreshResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.TokenDetails{}, fmt.Errorf("%w: %v", ErrInvalidTokenResponse, err)
	}

	if res.AccessToken == "" {
		return domain.TokenDetails{}, fmt.Errorf("%w: missing access_token", ErrInvalidTokenResponse)
	}

	expiresAtMillis := now.UnixMilli() + res.ExpiresIn*1000

	return domain.TokenDetails{
		AccessToken:     res.AccessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: time.UnixMilli(expiresAtMillis),
	}, nil
}
