package refresh

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/devblin/infisical/pkg/domain"
)

type herokuRefreshResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
}

// Heroku authenticates the client by secret alone, no client_id is sent.
func NewHerokuProvider(creds ClientCredentials, tokenURL string) Provider {
	return Provider{
		Integration: domain.IntegrationType_Heroku,
		Name:        "Heroku",
		TokenURL:    tokenURL,
		Encoding:    BodyEncodingForm,
		BuildBody: func(refreshToken string) map[string]string {
			return map[string]string{
				"grant_type":    "refresh_token",
				"refresh_token": refreshToken,
				"client_secret": creds.HerokuClientSecret,
			}
		},
		Normalize: normalizeHeroku,
	}
}

func normalizeHeroku(body []byte, _ string, now time.Time) (domain.TokenDetails, error) {
	var res herokuRefreshResponse
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
