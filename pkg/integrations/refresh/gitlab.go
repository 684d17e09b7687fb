package refresh

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/devblin/infisical/pkg/domain"
)

type gitLabRefreshResponse struct {
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	CreatedAt    int64  `json:"created_at"`
}

func GitLabRedirectURI(siteURL string) string {
	return fmt.Sprintf("%s/integrations/gitlab/oauth2/callback", strings.TrimSuffix(siteURL, "/"))
}

// GitLab is the only provider that requires the redirect_uri on refresh.
func NewGitLabProvider(creds ClientCredentials, tokenURL string) Provider {
	return Provider{
		Integration: domain.IntegrationType_GitLab,
		Name:        "GitLab",
		TokenURL:    tokenURL,
		Encoding:    BodyEncodingForm,
		Headers: map[string]string{
			"Accept-Encoding": "application/json",
		},
		BuildBody: func(refreshToken string) map[string]string {
			return map[string]string{
				"grant_type":    "refresh_token",
				"refresh_token": refreshToken,
				"client_id":     creds.GitLabClientID,
				"client_secret": creds.GitLabClientSecret,
				"redirect_uri":  GitLabRedirectURI(creds.SiteURL),
			}
		},
		Normalize: normalizeGitLab,
	}
}

func normalizeGitLab(body []byte, _ string, now time.Time) (domain.TokenDetails, error) {
	var res gitLabRefreshResponse
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
