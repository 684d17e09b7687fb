package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrIntegrationAuthNotFound = errors.New("integration auth not found")
	ErrUnknownIntegration      = errors.New("unknown integration")
)

type IntegrationType string

const (
	IntegrationType_AzureKeyVault    IntegrationType = "azure-key-vault"
	IntegrationType_Heroku           IntegrationType = "heroku"
	IntegrationType_GitLab           IntegrationType = "gitlab"
	IntegrationType_GCPSecretManager IntegrationType = "gcp-secret-manager"
)

// IntegrationTypes lists every integration whose tokens can be refreshed.
var IntegrationTypes = []IntegrationType{
	IntegrationType_AzureKeyVault,
	IntegrationType_Heroku,
	IntegrationType_GitLab,
	IntegrationType_GCPSecretManager,
}

func (t IntegrationType) IsKnown() bool {
	for _, known := range IntegrationTypes {
		if t == known {
			return true
		}
	}

	return false
}

// EncryptedField is a single AES-256-GCM encrypted value as stored at rest.
type EncryptedField struct {
	Ciphertext string `json:"ciphertext" bson:"ciphertext"`
	IV         string `json:"iv" bson:"iv"`
	Tag        string `json:"tag" bson:"tag"`
}

func (f EncryptedField) IsZero() bool {
	return f.Ciphertext == "" && f.IV == "" && f.Tag == ""
}

// IntegrationAuth identifies one authorized integration of a workspace.
// Token fields are only mutated through the IntegrationAuthManager setters.
type IntegrationAuth struct {
	ID              string          `json:"id" bson:"_id"`
	WorkspaceID     string          `json:"workspace_id" bson:"workspace"`
	Integration     IntegrationType `json:"integration" bson:"integration"`
	TeamID          string          `json:"team_id,omitempty" bson:"teamId,omitempty"`
	URL             string          `json:"url,omitempty" bson:"url,omitempty"`
	AccessID        EncryptedField  `json:"-" bson:"accessId"`
	Access          EncryptedField  `json:"-" bson:"access"`
	Refresh         EncryptedField  `json:"-" bson:"refresh"`
	AccessExpiresAt *time.Time      `json:"access_expires_at,omitempty" bson:"accessExpiresAt,omitempty"`
	CreatedAt       time.Time       `json:"created_at" bson:"createdAt"`
	UpdatedAt       time.Time       `json:"updated_at" bson:"updatedAt"`
}

// IsAccessExpired reports whether the stored access token is past its expiry at now.
// Records without an expiry never expire.
func (a IntegrationAuth) IsAccessExpired(now time.Time) bool {
	if a.AccessExpiresAt == nil {
		return false
	}

	return a.AccessExpiresAt.Before(now)
}

type UpdateAccessParams struct {
	IntegrationAuthID string
	AccessID          *EncryptedField
	Access            EncryptedField
	AccessExpiresAt   *time.Time
}

type UpdateRefreshParams struct {
	IntegrationAuthID string
	Refresh           EncryptedField
}

type IntegrationAuthStore interface {
	CreateIntegrationAuth(ctx context.Context, auth IntegrationAuth) (IntegrationAuth, error)
	GetIntegrationAuth(ctx context.Context, id string) (IntegrationAuth, error)
	UpdateAccess(ctx context.Context, p UpdateAccessParams) error
	UpdateRefresh(ctx context.Context, p UpdateRefreshParams) error
	ListExpiringIntegrationAuths(ctx context.Context, before time.Time) ([]IntegrationAuth, error)
}

type CreateIntegrationAuthParams struct {
	WorkspaceID     string
	Integration     IntegrationType
	TeamID          string
	URL             string
	AccessID        string
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt *time.Time
}

// IntegrationAuthManager owns encryption at rest of integration auth tokens.
type IntegrationAuthManager interface {
	IntegrationAuthSetter
	CreateIntegrationAuth(ctx context.Context, p CreateIntegrationAuthParams) (IntegrationAuth, error)
	GetIntegrationAuth(ctx context.Context, id string) (IntegrationAuth, error)
	GetRefreshToken(ctx context.Context, auth IntegrationAuth) (string, error)
	GetAccess(ctx context.Context, auth IntegrationAuth) (IntegrationAccess, error)
	ListExpiringIntegrationAuths(ctx context.Context, before time.Time) ([]IntegrationAuth, error)
}
