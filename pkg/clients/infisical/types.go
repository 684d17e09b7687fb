package infisical

import "github.com/devblin/infisical/pkg/domain"

type GetProjectSecretsRequest struct {
	WorkspaceID string
	Environment string
}

type getProjectSecretsResponse struct {
	Secrets []domain.EncryptedSecret `json:"secrets"`
}

type GetSecretVersionsRequest struct {
	SecretID string
	Offset   int
	Limit    int
}

type getSecretVersionsResponse struct {
	SecretVersions []domain.EncryptedSecretVersion `json:"secretVersions"`
}

type BatchSecretsResponse struct {
	Secrets []domain.EncryptedSecret `json:"secrets"`
}

type getLatestFileKeyResponse struct {
	LatestKey *domain.ProjectKey `json:"latestKey"`
}
