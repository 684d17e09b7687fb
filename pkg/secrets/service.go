package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/devblin/infisical/pkg/clients/infisical"
	"github.com/devblin/infisical/pkg/domain"
	"github.com/devblin/infisical/pkg/query"
	"github.com/rs/zerolog/log"
)

var ErrNoPrivateKey = errors.New("no private key configured")

type ServiceDependencies struct {
	API         infisical.ClientInterface
	Query       *query.Client
	PrivateKeys domain.PrivateKeyProvider
}

type Service struct {
	api         infisical.ClientInterface
	query       *query.Client
	privateKeys domain.PrivateKeyProvider
}

func NewService(deps ServiceDependencies) *Service {
	queryClient := deps.Query
	if queryClient == nil {
		queryClient = query.NewClient(query.ClientConfig{})
	}

	return &Service{
		api:         deps.API,
		query:       queryClient,
		privateKeys: deps.PrivateKeys,
	}
}

type GetProjectSecretsParams struct {
	WorkspaceID string
	Environment string
	FileKey     *domain.ProjectKey
	IsPaused    bool
}

// GetProjectSecrets returns the decrypted shared secrets of an environment.
// It stays disabled until the workspace, environment and file key are known
// and the caller is not paused.
func (s *Service) GetProjectSecrets(ctx context.Context, p GetProjectSecretsParams) ([]domain.DecryptedSecret, error) {
	encrypted, err := query.Fetch(ctx, s.query, query.Query[[]domain.EncryptedSecret]{
		Key:     ProjectSecretsKey(p.WorkspaceID, p.Environment),
		Enabled: p.WorkspaceID != "" && p.Environment != "" && p.FileKey != nil && !p.IsPaused,
		Fetch: func(ctx context.Context) ([]domain.EncryptedSecret, error) {
			return s.api.GetProjectSecrets(ctx, infisical.GetProjectSecretsRequest{
				WorkspaceID: p.WorkspaceID,
				Environment: p.Environment,
			})
		},
	})
	if err != nil {
		return nil, err
	}

	key, err := s.projectKey(ctx, *p.FileKey)
	if err != nil {
		return nil, err
	}

	return DecryptProjectSecrets(encrypted, key)
}

type GetSecretVersionsParams struct {
	SecretID string
	Offset   int
	Limit    int
	FileKey  *domain.ProjectKey
}

func (s *Service) GetSecretVersions(ctx context.Context, p GetSecretVersionsParams) ([]domain.DecryptedSecretVersion, error) {
	encrypted, err := query.Fetch(ctx, s.query, query.Query[[]domain.EncryptedSecretVersion]{
		Key:     SecretVersionsKey(p.SecretID, p.Offset, p.Limit),
		Enabled: p.SecretID != "" && p.FileKey != nil,
		Fetch: func(ctx context.Context) ([]domain.EncryptedSecretVersion, error) {
			return s.api.GetSecretVersions(ctx, infisical.GetSecretVersionsRequest{
				SecretID: p.SecretID,
				Offset:   p.Offset,
				Limit:    p.Limit,
			})
		},
	})
	if err != nil {
		return nil, err
	}

	key, err := s.projectKey(ctx, *p.FileKey)
	if err != nil {
		return nil, err
	}

	return DecryptSecretVersions(encrypted, key)
}

// BatchSecrets submits the operations and, once the server accepted them,
// invalidates the environment's secrets and the workspace snapshot queries.
func (s *Service) BatchSecrets(ctx context.Context, req domain.BatchSecretRequest) (*infisical.BatchSecretsResponse, error) {
	res, err := s.api.BatchSecrets(ctx, req)
	if err != nil {
		return nil, err
	}

	keys := []string{
		ProjectSecretsKey(req.WorkspaceID, req.Environment),
		SnapshotListKey(req.WorkspaceID),
		SnapshotCountKey(req.WorkspaceID),
	}

	if err := s.query.Invalidate(ctx, keys...); err != nil {
		log.Warn().Err(err).Str("workspace_id", req.WorkspaceID).Msg("Failed to invalidate secret queries after batch")
	}

	return res, nil
}

// GetLatestFileKey returns the workspace key wrapped for the current user.
func (s *Service) GetLatestFileKey(ctx context.Context, workspaceID string) (*domain.ProjectKey, error) {
	key, err := query.Fetch(ctx, s.query, query.Query[domain.ProjectKey]{
		Key:     WorkspaceKeyKey(workspaceID),
		Enabled: workspaceID != "",
		Fetch: func(ctx context.Context) (domain.ProjectKey, error) {
			k, err := s.api.GetLatestFileKey(ctx, workspaceID)
			if err != nil {
				return domain.ProjectKey{}, err
			}
			return *k, nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &key, nil
}

func (s *Service) projectKey(ctx context.Context, fileKey domain.ProjectKey) (string, error) {
	if s.privateKeys == nil {
		return "", ErrNoPrivateKey
	}

	privateKey, err := s.privateKeys.PrivateKey(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get private key: %w", err)
	}

	if privateKey == "" {
		return "", ErrNoPrivateKey
	}

	return DecryptProjectKey(fileKey, privateKey)
}

// StaticPrivateKey serves a private key fixed at construction, typically from config.
type StaticPrivateKey string

func (k StaticPrivateKey) PrivateKey(ctx context.Context) (string, error) {
	return string(k), nil
}

type PlainBatchOperation struct {
	Method domain.BatchMethod
	Secret PlainSecret
}

// EncryptBatch turns plaintext operations into a batch request encrypted with
// the workspace key. Deletes only carry the secret id.
func (s *Service) EncryptBatch(ctx context.Context, fileKey domain.ProjectKey, workspaceID, environment string, ops []PlainBatchOperation) (domain.BatchSecretRequest, error) {
	key, err := s.projectKey(ctx, fileKey)
	if err != nil {
		return domain.BatchSecretRequest{}, err
	}

	req := domain.BatchSecretRequest{
		WorkspaceID: workspaceID,
		Environment: environment,
		Requests:    make([]domain.BatchSecretOperation, 0, len(ops)),
	}

	for i, op := range ops {
		if op.Method == domain.BatchMethodDelete {
			req.Requests = append(req.Requests, domain.BatchSecretOperation{
				Method: op.Method,
				Secret: domain.BatchSecret{ID: op.Secret.ID},
			})
			continue
		}

		secret, err := EncryptSecret(op.Secret, key)
		if err != nil {
			return domain.BatchSecretRequest{}, fmt.Errorf("failed to encrypt request %d: %w", i, err)
		}

		req.Requests = append(req.Requests, domain.BatchSecretOperation{
			Method: op.Method,
			Secret: secret,
		})
	}

	return req, nil
}
