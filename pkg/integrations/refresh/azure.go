package refresh

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/devblin/infisical/pkg/domain"
)

type azureRefreshResponse struct {
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
	ExtExpiresIn int64  `json:"ext_expires_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func NewAzureKeyVaultProvider(creds ClientCredentials, tokenURL string) Provider {
	return Provider{
		Integration: domain.IntegrationType_AzureKeyVault,
		Name:        "Azure",
		TokenURL:    tokenURL,
		Encoding:    BodyEncodingForm,
		BuildBody: func(refreshToken string) map[string]string {
			return map[string]string{
				"client_id":     creds.AzureClientID,
				"scope":         "openid offline_access",
				"refresh_token": refreshToken,
				"grant_type":    "refresh_token",
				"client_secret": creds.AzureClientSecret,
			}
		},
		Normalize: normalizeAzure,
	}
}

func normalizeAzure(body []byte, _ string, now time.Time) (domain.TokenDetails, error) {
	var res azureRefreshResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.TokenDetails{}, fmt.Errorf("%w: %v", ErrInvalidTokenResponse, err)
	}

	if res.AccessToken == "" {
		return domain.TokenDetails{}, fmt.Errorf("%w: missing access_token", ErrInvalidTokenResponse)
	}

	return domain.TokenDetails{
		AccessToken:     res.AccessToken,
		RefreshToken:    res.RefreshToken,
		AccessExpiresAt: expiresAfterSeconds(now, res.ExpiresIn),
	}, nil
}
