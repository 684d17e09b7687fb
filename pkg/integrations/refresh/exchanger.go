package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devblin/infisical/pkg/domain"
	"github.com/rs/zerolog/log"
)

const maxResponseBodySize = 1 << 20

type ExchangerDependencies struct {
	HTTPClient *http.Client
	Setter     domain.IntegrationAuthSetter
	Reporter   domain.ErrorReporter
	Providers  []Provider
	Now        func() time.Time
}

type Exchanger struct {
	httpClient *http.Client
	setter     domain.IntegrationAuthSetter
	reporter   domain.ErrorReporter
	providers  map[domain.IntegrationType]Provider
	now        func() time.Time
}

func NewExchanger(deps ExchangerDependencies) *Exchanger {
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	reporter := deps.Reporter
	if reporter == nil {
		reporter = domain.NoOpErrorReporter{}
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	providers := make(map[domain.IntegrationType]Provider, len(deps.Providers))
	for _, p := range deps.Providers {
		providers[p.Integration] = p
	}

	return &Exchanger{
		httpClient: httpClient,
		setter:     deps.Setter,
		reporter:   reporter,
		providers:  providers,
		now:        now,
	}
}

// Supports reports whether a provider is registered for the integration.
func (e *Exchanger) Supports(integration domain.IntegrationType) bool {
	_, ok := e.providers[integration]
	return ok
}

// ExchangeRefresh trades refreshToken for a new access token, persists the new
// token pair on the integration auth and returns the access token.
func (e *Exchanger) ExchangeRefresh(ctx context.Context, auth domain.IntegrationAuth, refreshToken string) (string, error) {
	accessToken, err := e.exchangeRefresh(ctx, auth, refreshToken)
	if err != nil {
		e.reporter.ClearUser()
		e.reporter.CaptureException(err)

		log.Error().
			Err(err).
			Str("integration_auth_id", auth.ID).
			Str("integration", string(auth.Integration)).
			Msg("Failed to exchange refresh token")

		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	return accessToken, nil
}

func (e *Exchanger) exchangeRefresh(ctx context.Context, auth domain.IntegrationAuth, refreshToken string) (string, error) {
	details, err := e.Exchange(ctx, auth.Integration, refreshToken)
	if err != nil {
		return "", err
	}

	if !details.Complete() {
		log.Warn().
			Str("integration_auth_id", auth.ID).
			Str("integration", string(auth.Integration)).
			Msg("Token response incomplete, skipping persistence")

		return details.AccessToken, nil
	}

	if e.setter == nil {
		return details.AccessToken, nil
	}

	expiresAt := details.AccessExpiresAt

	if err := e.setter.SetIntegrationAuthAccess(ctx, domain.SetIntegrationAuthAccessParams{
		IntegrationAuthID: auth.ID,
		AccessID:          nil,
		AccessToken:       details.AccessToken,
		AccessExpiresAt:   &expiresAt,
	}); err != nil {
		return "", fmt.Errorf("failed to set integration auth access: %w", err)
	}

	if err := e.setter.SetIntegrationAuthRefresh(ctx, domain.SetIntegrationAuthRefreshParams{
		IntegrationAuthID: auth.ID,
		RefreshToken:      details.RefreshToken,
	}); err != nil {
		return "", fmt.Errorf("failed to set integration auth refresh: %w", err)
	}

	log.Info().
		Str("integration_auth_id", auth.ID).
		Str("integration", string(auth.Integration)).
		Time("access_expires_at", expiresAt).
		Msg("Refreshed integration access token")

	return details.AccessToken, nil
}

// Exchange performs the provider round trip without persisting anything.
func (e *Exchanger) Exchange(ctx context.Context, integration domain.IntegrationType, refreshToken string) (domain.TokenDetails, error) {
	provider, ok := e.providers[integration]
	if !ok {
		return domain.TokenDetails{}, fmt.Errorf("%w: %s", ErrUnsupportedIntegration, integration)
	}

	req, err := newTokenRequest(ctx, provider, refreshToken)
	if err != nil {
		return domain.TokenDetails{}, e.providerError(provider, 0, "", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return domain.TokenDetails{}, e.providerError(provider, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return domain.TokenDetails{}, e.providerError(provider, resp.StatusCode, "", fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode >= 400 {
		return domain.TokenDetails{}, e.providerError(provider, resp.StatusCode, string(body), errors.New(http.StatusText(resp.StatusCode)))
	}

	details, err := provider.Normalize(body, refreshToken, e.now())
	if err != nil {
		return domain.TokenDetails{}, e.providerError(provider, resp.StatusCode, string(body), err)
	}

	return details, nil
}

func (e *Exchanger) providerError(provider Provider, status int, body string, err error) *ProviderError {
	return &ProviderError{
		Integration: provider.Integration,
		Provider:    provider.Name,
		StatusCode:  status,
		Message:     parseOAuthErrorMessage(body),
		Body:        body,
		Err:         err,
	}
}

func newTokenRequest(ctx context.Context, provider Provider, refreshToken string) (*http.Request, error) {
	fields := provider.BuildBody(refreshToken)

	var body io.Reader
	switch provider.Encoding {
	case BodyEncodingJSON:
		payload, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	default:
		form := url.Values{}
		for k, v := range fields {
			form.Set(k, v)
		}
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.TokenURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", provider.Encoding.ContentType())
	req.Header.Set("Accept", "application/json")
	for k, v := range provider.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func parseOAuthErrorMessage(body string) string {
	if body == "" {
		return ""
	}

	var res oauthErrorResponse
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return ""
	}

	if res.ErrorDescription != "" {
		return res.ErrorDescription
	}

	return res.Error
}
