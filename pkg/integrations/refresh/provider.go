package refresh

import (
	"time"

	"github.com/devblin/infisical/pkg/domain"
)

type BodyEncoding int

const (
	BodyEncodingForm BodyEncoding = iota
	BodyEncodingJSON
)

func (e BodyEncoding) ContentType() string {
	if e == BodyEncodingJSON {
		return "application/json"
	}

	return "application/x-www-form-urlencoded"
}

// Provider is one entry of the strategy table: where to post, how to encode
// the body and how to read the response back into TokenDetails.
type Provider struct {
	Integration domain.IntegrationType
	Name        string
	TokenURL    string
	Encoding    BodyEncoding
	Headers     map[string]string
	BuildBody   func(refreshToken string) map[string]string
	Normalize   func(body []byte, refreshToken string, now time.Time) (domain.TokenDetails, error)
}

const (
	DefaultAzureTokenURL  = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	DefaultHerokuTokenURL = "https://id.heroku.com/oauth/token"
	DefaultGitLabTokenURL = "https://gitlab.com/oauth/token"
	DefaultGCPTokenURL    = "https://oauth2.googleapis.com/token"
)

// ClientCredentials are the OAuth client settings of every supported provider.
type ClientCredentials struct {
	SiteURL string

	AzureClientID     string
	AzureClientSecret string

	HerokuClientSecret string

	GitLabClientID     string
	GitLabClientSecret string

	GCPClientID     string
	GCPClientSecret string
}

// TokenURLs overrides provider token endpoints. Empty fields use the defaults.
type TokenURLs struct {
	Azure  string
	Heroku string
	GitLab string
	GCP    string
}

func DefaultProviders(creds ClientCredentials, urls TokenURLs) []Provider {
	return []Provider{
		NewAzureKeyVaultProvider(creds, orDefault(urls.Azure, DefaultAzureTokenURL)),
		NewHerokuProvider(creds, orDefault(urls.Heroku, DefaultHerokuTokenURL)),
		NewGitLabProvider(creds, orDefault(urls.GitLab, DefaultGitLabTokenURL)),
		NewGCPSecretManagerProvider(creds, orDefault(urls.GCP, DefaultGCPTokenURL)),
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}

// expiresAfterSeconds is the "now + expires_in seconds" rule shared by the
// form-encoded providers.
func expiresAfterSeconds(now time.Time, expiresIn int64) time.Time {
	return now.Add(time.Duration(expiresIn) * time.Second)
}
