package managers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devblin/infisical/pkg/crypto"
	"github.com/devblin/infisical/pkg/domain"
)

var ErrNoRefreshToken = errors.New("integration auth has no refresh token")

type IntegrationAuthManagerDependencies struct {
	Store         domain.IntegrationAuthStore
	EncryptionKey string
}

type integrationAuthManager struct {
	store         domain.IntegrationAuthStore
	encryptionKey string
}

func NewIntegrationAuthManager(deps IntegrationAuthManagerDependencies) (domain.IntegrationAuthManager, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("integration auth store is required")
	}

	if len(deps.EncryptionKey) != crypto.SymmetricKeySize {
		return nil, fmt.Errorf("%w: root encryption key must be %d bytes", crypto.ErrInvalidKey, crypto.SymmetricKeySize)
	}

	return &integrationAuthManager{
		store:         deps.Store,
		encryptionKey: deps.EncryptionKey,
	}, nil
}

func (m *integrationAuthManager) SetIntegrationAuthAccess(ctx context.Context, p domain.SetIntegrationAuthAccessParams) error {
	access, err := m.encrypt(p.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	params := domain.UpdateAccessParams{
		IntegrationAuthID: p.IntegrationAuthID,
		Access:            access,
		AccessExpiresAt:   p.AccessExpiresAt,
	}

	if p.AccessID != nil {
		accessID, err := m.encrypt(*p.AccessID)
		if err != nil {
			return fmt.Errorf("failed to encrypt access id: %w", err)
		}
		params.AccessID = &accessID
	}

	if err := m.store.UpdateAccess(ctx, params); err != nil {
		return fmt.Errorf("failed to update integration auth access: %w", err)
	}

	return nil
}

func (m *integrationAuthManager) SetIntegrationAuthRefresh(ctx context.Context, p domain.SetIntegrationAuthRefreshParams) error {
	refresh, err := m.encrypt(p.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	if err := m.store.UpdateRefresh(ctx, domain.UpdateRefreshParams{
		IntegrationAuthID: p.IntegrationAuthID,
		Refresh:           refresh,
	}); err != nil {
		return fmt.Errorf("failed to update integration auth refresh: %w", err)
	}

	return nil
}

func (m *integrationAuthManager) CreateIntegrationAuth(ctx context.Context, p domain.CreateIntegrationAuthParams) (domain.IntegrationAuth, error) {
	if p.WorkspaceID == "" {
		return domain.IntegrationAuth{}, fmt.Errorf("workspace ID is required")
	}

	if p.Integration == "" {
		return domain.IntegrationAuth{}, fmt.Errorf("integration is required")
	}

	if !p.Integration.IsKnown() {
		return domain.IntegrationAuth{}, fmt.Errorf("%w: %s", domain.ErrUnknownIntegration, p.Integration)
	}

	auth := domain.IntegrationAuth{
		WorkspaceID:     p.WorkspaceID,
		Integration:     p.Integration,
		TeamID:          p.TeamID,
		URL:             p.URL,
		AccessExpiresAt: p.AccessExpiresAt,
	}

	var err error

	if auth.AccessID, err = m.encryptOptional(p.AccessID); err != nil {
		return domain.IntegrationAuth{}, fmt.Errorf("failed to encrypt access id: %w", err)
	}

	if auth.Access, err = m.encryptOptional(p.AccessToken); err != nil {
		return domain.IntegrationAuth{}, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	if auth.Refresh, err = m.encryptOptional(p.RefreshToken); err != nil {
		return domain.IntegrationAuth{}, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	created, err := m.store.CreateIntegrationAuth(ctx, auth)
	if err != nil {
		return domain.IntegrationAuth{}, fmt.Errorf("failed to create integration auth: %w", err)
	}

	return created, nil
}

func (m *integrationAuthManager) GetIntegrationAuth(ctx context.Context, id string) (domain.IntegrationAuth, error) {
	if id == "" {
		return domain.IntegrationAuth{}, fmt.Errorf("integration auth ID is required")
	}

	auth, err := m.store.GetIntegrationAuth(ctx, id)
	if err != nil {
		return domain.IntegrationAuth{}, fmt.Errorf("failed to get integration auth %s: %w", id, err)
	}

	return auth, nil
}

func (m *integrationAuthManager) GetRefreshToken(ctx context.Context, auth domain.IntegrationAuth) (string, error) {
	if auth.Refresh.IsZero() {
		return "", ErrNoRefreshToken
	}

	refreshToken, err := m.decrypt(auth.Refresh)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	return refreshToken, nil
}

func (m *integrationAuthManager) GetAccess(ctx context.Context, auth domain.IntegrationAuth) (domain.IntegrationAccess, error) {
	access := domain.IntegrationAccess{
		AccessExpiresAt: auth.AccessExpiresAt,
	}

	if !auth.AccessID.IsZero() {
		accessID, err := m.decrypt(auth.AccessID)
		if err != nil {
			return domain.IntegrationAccess{}, fmt.Errorf("failed to decrypt access id: %w", err)
		}
		access.AccessID = accessID
	}

	if !auth.Access.IsZero() {
		accessToken, err := m.decrypt(auth.Access)
		if err != nil {
			return domain.IntegrationAccess{}, fmt.Errorf("failed to decrypt access token: %w", err)
		}
		access.AccessToken = accessToken
	}

	return access, nil
}

func (m *integrationAuthManager) ListExpiringIntegrationAuths(ctx context.Context, before time.Time) ([]domain.IntegrationAuth, error) {
	return m.store.ListExpiringIntegrationAuths(ctx, before)
}

func (m *integrationAuthManager) encrypt(plaintext string) (domain.EncryptedField, error) {
	c, err := crypto.EncryptSymmetric(plaintext, m.encryptionKey)
	if err != nil {
		return domain.EncryptedField{}, err
	}

	return domain.EncryptedField{
		Ciphertext: c.Ciphertext,
		IV:         c.IV,
		Tag:        c.Tag,
	}, nil
}

func (m *integrationAuthManager) encryptOptional(plaintext string) (domain.EncryptedField, error) {
	if plaintext == "" {
		return domain.EncryptedField{}, nil
	}

	return m.encrypt(plaintext)
}

func (m *integrationAuthManager) decrypt(field domain.EncryptedField) (string, error) {
	return crypto.DecryptSymmetric(crypto.SymmetricCiphertext{
		Ciphertext: field.Ciphertext,
		IV:         field.IV,
		Tag:        field.Tag,
	}, m.encryptionKey)
}
