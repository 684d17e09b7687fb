package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devblin/infisical/internal/controllers"
	"github.com/devblin/infisical/internal/managers"
	"github.com/devblin/infisical/pkg/domain"
	"github.com/devblin/infisical/pkg/integrations/refresh"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

type fakeAccessManager struct {
	access    map[string]domain.IntegrationAccess
	err       error
	refreshed []string
	accessed  []string
}

func (m *fakeAccessManager) GetIntegrationAuthAccess(ctx context.Context, id string) (domain.IntegrationAccess, error) {
	m.accessed = append(m.accessed, id)
	return m.lookup(id)
}

func (m *fakeAccessManager) RefreshIntegrationAuthAccess(ctx context.Context, id string) (domain.IntegrationAccess, error) {
	m.refreshed = append(m.refreshed, id)
	return m.lookup(id)
}

func (m *fakeAccessManager) lookup(id string) (domain.IntegrationAccess, error) {
	if m.err != nil {
		return domain.IntegrationAccess{}, m.err
	}

	access, ok := m.access[id]
	if !ok {
		return domain.IntegrationAccess{}, domain.ErrIntegrationAuthNotFound
	}

	return access, nil
}

func newTestApp(t *testing.T, manager *fakeAccessManager) *fiber.App {
	t.Helper()

	return NewHTTPServer(context.Background(), HTTPServerDependencies{
		APIKey: testAPIKey,
		IntegrationAuthController: controllers.NewIntegrationAuthController(controllers.IntegrationAuthControllerDependencies{
			AccessManager: manager,
		}),
		DisableRequestLogging: true,
	})
}

func doRequest(t *testing.T, app *fiber.App, method, path, apiKey string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, &fakeAccessManager{})

	resp := doRequest(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, serviceName, body["service"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestIntegrationAuthRoutes_RequireAPIKey(t *testing.T) {
	manager := &fakeAccessManager{}
	app := newTestApp(t, manager)

	resp := doRequest(t, app, http.MethodGet, "/integration-auths/abc/access", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/integration-auths/abc/refresh", "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Empty(t, manager.accessed)
	assert.Empty(t, manager.refreshed)
}

func TestIntegrationAuthRoutes_Access(t *testing.T) {
	expiresAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	manager := &fakeAccessManager{
		access: map[string]domain.IntegrationAccess{
			"abc": {AccessID: "acct", AccessToken: "access-token", AccessExpiresAt: &expiresAt},
		},
	}
	app := newTestApp(t, manager)

	resp := doRequest(t, app, http.MethodGet, "/integration-auths/abc/access", testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body controllers.IntegrationAccessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "abc", body.IntegrationAuthID)
	assert.Equal(t, "acct", body.AccessID)
	assert.Equal(t, "access-token", body.AccessToken)
	require.NotNil(t, body.AccessExpiresAt)
	assert.True(t, expiresAt.Equal(*body.AccessExpiresAt))

	assert.Equal(t, []string{"abc"}, manager.accessed)
	assert.Empty(t, manager.refreshed)
}

func TestIntegrationAuthRoutes_Refresh(t *testing.T) {
	manager := &fakeAccessManager{
		access: map[string]domain.IntegrationAccess{
			"abc": {AccessToken: "fresh-token"},
		},
	}
	app := newTestApp(t, manager)

	resp := doRequest(t, app, http.MethodPost, "/integration-auths/abc/refresh", testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"access_token":"fresh-token"`)
	assert.Equal(t, []string{"abc"}, manager.refreshed)
}

func TestIntegrationAuthRoutes_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "not found", err: fmt.Errorf("lookup: %w", domain.ErrIntegrationAuthNotFound), wantStatus: http.StatusNotFound},
		{name: "no refresh token", err: managers.ErrNoRefreshToken, wantStatus: http.StatusConflict},
		{name: "unsupported", err: fmt.Errorf("%w: %w", refresh.ErrRefreshFailed, refresh.ErrUnsupportedIntegration), wantStatus: http.StatusUnprocessableEntity},
		{name: "provider rejected", err: fmt.Errorf("%w: %w", refresh.ErrRefreshFailed, &refresh.ProviderError{StatusCode: 400}), wantStatus: http.StatusBadGateway},
		{name: "unexpected", err: fmt.Errorf("store offline"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, &fakeAccessManager{err: tt.err})

			resp := doRequest(t, app, http.MethodPost, "/integration-auths/abc/refresh", testAPIKey)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
