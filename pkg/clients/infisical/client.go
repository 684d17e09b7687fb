package infisical

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/devblin/infisical/pkg/domain"
	"github.com/rs/zerolog/log"
)

// ClientInterface defines the Infisical API operations used by the secrets service
type ClientInterface interface {
	GetProjectSecrets(ctx context.Context, req GetProjectSecretsRequest) ([]domain.EncryptedSecret, error)
	GetSecretVersions(ctx context.Context, req GetSecretVersionsRequest) ([]domain.EncryptedSecretVersion, error)
	BatchSecrets(ctx context.Context, req domain.BatchSecretRequest) (*BatchSecretsResponse, error)
	GetLatestFileKey(ctx context.Context, workspaceID string) (*domain.ProjectKey, error)
}

// Client provides a high-level interface for interacting with the Infisical API
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new Infisical client with the given options
func NewClient(options ...ClientOption) *Client {
	config := DefaultConfig()

	for _, option := range options {
		option(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// GetProjectSecrets fetches the encrypted secrets of one workspace environment
func (c *Client) GetProjectSecrets(ctx context.Context, req GetProjectSecretsRequest) ([]domain.EncryptedSecret, error) {
	if req.WorkspaceID == "" {
		return nil, fmt.Errorf("workspace ID is required")
	}

	if req.Environment == "" {
		return nil, fmt.Errorf("environment is required")
	}

	queryParams := url.Values{}
	queryParams.Add("environment", req.Environment)
	queryParams.Add("workspaceId", req.WorkspaceID)

	path := fmt.Sprintf("/api/v2/secrets?%s", queryParams.Encode())

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get project secrets: %w", err)
	}

	var result getProjectSecretsResponse
	if err := c.handleResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to process get project secrets response: %w", err)
	}

	return result.Secrets, nil
}

// GetSecretVersions fetches one page of the version history of a secret
func (c *Client) GetSecretVersions(ctx context.Context, req GetSecretVersionsRequest) ([]domain.EncryptedSecretVersion, error) {
	if req.SecretID == "" {
		return nil, fmt.Errorf("secret ID is required")
	}

	queryParams := url.Values{}
	queryParams.Add("limit", strconv.Itoa(req.Limit))
	queryParams.Add("offset", strconv.Itoa(req.Offset))

	path := fmt.Sprintf("/api/v1/secret/%s/secret-versions?%s", url.PathEscape(req.SecretID), queryParams.Encode())

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get secret versions: %w", err)
	}

	var result getSecretVersionsResponse
	if err := c.handleResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to process get secret versions response: %w", err)
	}

	return result.SecretVersions, nil
}

// BatchSecrets submits create, update and delete operations in one request
func (c *Client) BatchSecrets(ctx context.Context, req domain.BatchSecretRequest) (*BatchSecretsResponse, error) {
	if req.WorkspaceID == "" {
		return nil, fmt.Errorf("workspace ID is required")
	}

	if req.Environment == "" {
		return nil, fmt.Errorf("environment is required")
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v2/secrets/batch", req)
	if err != nil {
		return nil, fmt.Errorf("failed to batch secrets: %w", err)
	}

	var result BatchSecretsResponse
	if err := c.handleResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to process batch secrets response: %w", err)
	}

	return &result, nil
}

// GetLatestFileKey fetches the workspace key wrapped for the calling user
func (c *Client) GetLatestFileKey(ctx context.Context, workspaceID string) (*domain.ProjectKey, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace ID is required")
	}

	path := fmt.Sprintf("/api/v1/key/%s/latest", url.PathEscape(workspaceID))

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest file key: %w", err)
	}

	var result getLatestFileKeyResponse
	if err := c.handleResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to process latest file key response: %w", err)
	}

	if result.LatestKey == nil {
		return nil, &Error{StatusCode: http.StatusNotFound, Message: "workspace has no key for this user"}
	}

	return result.LatestKey, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	headers := map[string]string{}
	if c.config.Token != "" {
		headers["Authorization"] = "Bearer " + c.config.Token
	}

	return c.doRequestWithHeaders(ctx, method, path, body, headers)
}

// doRequestWithHeaders performs an HTTP request with custom headers. Only
// idempotent methods are retried, on transport failures and retryable statuses.
func (c *Client) doRequestWithHeaders(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var bodyBytes []byte

	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	url := c.config.BaseURL + path

	retries := 0
	if isIdempotent(method) {
		retries = c.config.RetryAttempts
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		var requestBody io.Reader
		if bodyBytes != nil {
			requestBody = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, requestBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		for key, value := range c.config.DefaultHeaders {
			req.Header.Set(key, value)
		}

		for key, value := range headers {
			req.Header.Set(key, value)
		}

		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		status := &Error{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
			RequestID:  resp.Header.Get("X-Request-ID"),
		}

		if status.IsServerError() {
			log.Error().
				Int("status_code", resp.StatusCode).
				Str("method", method).
				Str("path", req.URL.Path).
				Str("request_id", status.RequestID).
				Int("attempt", attempt+1).
				Msg("server error")
		}

		if status.IsRetryable() && attempt < retries {
			resp.Body.Close()
			lastErr = status
			continue
		}

		return resp, nil
	}

	if retries == 0 {
		return nil, fmt.Errorf("request failed: %w", lastErr)
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", retries, lastErr)
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead:
		return true
	}

	return false
}

// handleResponse processes the HTTP response and unmarshals JSON if successful
func (c *Client) handleResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResponse struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}

		message := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if json.Unmarshal(body, &errorResponse) == nil {
			if errorResponse.Message != "" {
				message = errorResponse.Message
			} else if errorResponse.Error != "" {
				message = errorResponse.Error
			}
		}

		return &Error{
			StatusCode: resp.StatusCode,
			Message:    message,
			Body:       string(body),
			RequestID:  resp.Header.Get("X-Request-ID"),
		}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
