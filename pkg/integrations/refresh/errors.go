package refresh

import (
	"errors"
	"fmt"

	"github.com/devblin/infisical/pkg/domain"
)

var (
	// ErrRefreshFailed wraps every failure returned by ExchangeRefresh.
	ErrRefreshFailed = errors.New("failed to get new OAuth2 access token")

	ErrUnsupportedIntegration = errors.New("failed to exchange token for incompatible integration")

	ErrInvalidTokenResponse = errors.New("invalid token response")
)

// ProviderError labels a failure with the provider that produced it.
type ProviderError struct {
	Integration domain.IntegrationType
	Provider    string
	StatusCode  int
	Message     string
	Body        string
	Err         error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("failed to refresh OAuth2 access token for %s", e.Provider)

	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status: %d)", msg, e.StatusCode)
	}

	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether the provider rejected the refresh token or client.
func (e *ProviderError) IsAuthError() bool {
	return e.StatusCode == 400 || e.StatusCode == 401 || e.StatusCode == 403
}

func (e *ProviderError) IsServerError() bool {
	return e.StatusCode >= 500
}
