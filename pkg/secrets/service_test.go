package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devblin/infisical/pkg/clients/infisical"
	"github.com/devblin/infisical/pkg/crypto"
	"github.com/devblin/infisical/pkg/domain"
	"github.com/devblin/infisical/pkg/query"
	"github.com/devblin/infisical/pkg/query/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	secrets       []domain.EncryptedSecret
	versions      []domain.EncryptedSecretVersion
	fileKey       *domain.ProjectKey
	batchErr      error
	secretCalls   int
	versionCalls  int
	fileKeyCalls  int
	batchRequests []domain.BatchSecretRequest
	lastVersions  infisical.GetSecretVersionsRequest
}

func (f *fakeAPI) GetProjectSecrets(ctx context.Context, req infisical.GetProjectSecretsRequest) ([]domain.EncryptedSecret, error) {
	f.secretCalls++
	return f.secrets, nil
}

func (f *fakeAPI) GetSecretVersions(ctx context.Context, req infisical.GetSecretVersionsRequest) ([]domain.EncryptedSecretVersion, error) {
	f.versionCalls++
	f.lastVersions = req
	return f.versions, nil
}

func (f *fakeAPI) BatchSecrets(ctx context.Context, req domain.BatchSecretRequest) (*infisical.BatchSecretsResponse, error) {
	f.batchRequests = append(f.batchRequests, req)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return &infisical.BatchSecretsResponse{}, nil
}

func (f *fakeAPI) GetLatestFileKey(ctx context.Context, workspaceID string) (*domain.ProjectKey, error) {
	f.fileKeyCalls++
	return f.fileKey, nil
}

type serviceFixture struct {
	api     *fakeAPI
	store   *inmemory.Store
	service *Service
	fileKey *domain.ProjectKey
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	userPublic, userPrivate, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	senderPublic, senderPrivate, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	wrapped, err := crypto.EncryptAsymmetric(testProjectKey, userPublic, senderPrivate)
	require.NoError(t, err)

	fileKey := &domain.ProjectKey{
		ID:           "key-1",
		EncryptedKey: wrapped.Ciphertext,
		Nonce:        wrapped.Nonce,
		Sender:       domain.KeySender{PublicKey: senderPublic},
	}

	api := &fakeAPI{fileKey: fileKey}
	store := inmemory.New()

	service := NewService(ServiceDependencies{
		API:         api,
		Query:       query.NewClient(query.ClientConfig{Store: store}),
		PrivateKeys: StaticPrivateKey(userPrivate),
	})

	return &serviceFixture{api: api, store: store, service: service, fileKey: fileKey}
}

func TestService_GetProjectSecrets_Disabled(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params GetProjectSecretsParams
	}{
		{name: "missing workspace", params: GetProjectSecretsParams{Environment: "dev", FileKey: f.fileKey}},
		{name: "missing environment", params: GetProjectSecretsParams{WorkspaceID: "ws", FileKey: f.fileKey}},
		{name: "missing file key", params: GetProjectSecretsParams{WorkspaceID: "ws", Environment: "dev"}},
		{name: "paused", params: GetProjectSecretsParams{WorkspaceID: "ws", Environment: "dev", FileKey: f.fileKey, IsPaused: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.GetProjectSecrets(ctx, tt.params)
			assert.ErrorIs(t, err, query.ErrQueryDisabled)
		})
	}

	assert.Zero(t, f.api.secretCalls)
}

func TestService_GetProjectSecrets(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.api.secrets = []domain.EncryptedSecret{
		encryptedRecord(t, "s1", domain.SecretTypeShared, "DB_URL", "postgres://", ""),
		encryptedRecord(t, "p1", domain.SecretTypePersonal, "DB_URL", "postgres://me", ""),
	}

	params := GetProjectSecretsParams{WorkspaceID: "ws", Environment: "dev", FileKey: f.fileKey}

	got, err := f.service.GetProjectSecrets(ctx, params)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "DB_URL", got[0].Key)
	assert.Equal(t, "postgres://me", got[0].ValueOverride)

	_, err = f.service.GetProjectSecrets(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.secretCalls)

	entry, ok, err := f.store.Get(ctx, ProjectSecretsKey("ws", "dev"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(entry.Data), "postgres://")
}

func TestService_GetProjectSecrets_NoPrivateKey(t *testing.T) {
	f := newServiceFixture(t)
	service := NewService(ServiceDependencies{API: f.api})

	_, err := service.GetProjectSecrets(context.Background(), GetProjectSecretsParams{WorkspaceID: "ws", Environment: "dev", FileKey: f.fileKey})
	assert.ErrorIs(t, err, ErrNoPrivateKey)
}

func TestService_GetSecretVersions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.GetSecretVersions(ctx, GetSecretVersionsParams{FileKey: f.fileKey})
	assert.ErrorIs(t, err, query.ErrQueryDisabled)

	_, err = f.service.GetSecretVersions(ctx, GetSecretVersionsParams{SecretID: "s1"})
	assert.ErrorIs(t, err, query.ErrQueryDisabled)
	assert.Zero(t, f.api.versionCalls)

	f.api.versions = []domain.EncryptedSecretVersion{encryptedVersion(t, "v1", "old", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}

	got, err := f.service.GetSecretVersions(ctx, GetSecretVersionsParams{SecretID: "s1", Offset: 10, Limit: 5, FileKey: f.fileKey})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].Value)
	assert.Equal(t, 10, f.api.lastVersions.Offset)
	assert.Equal(t, 5, f.api.lastVersions.Limit)

	_, err = f.service.GetSecretVersions(ctx, GetSecretVersionsParams{SecretID: "s1", Offset: 15, Limit: 5, FileKey: f.fileKey})
	require.NoError(t, err)
	assert.Equal(t, 2, f.api.versionCalls)
}

func TestService_BatchSecrets_InvalidatesExactKeys(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	seed := query.Entry{Data: []byte(`[]`)}
	for _, key := range []string{
		ProjectSecretsKey("ws", "dev"),
		ProjectSecretsKey("ws", "prod"),
		SnapshotListKey("ws"),
		SnapshotCountKey("ws"),
		SnapshotListKey("other"),
	} {
		require.NoError(t, f.store.Set(ctx, key, seed, 0))
	}

	_, err := f.service.BatchSecrets(ctx, domain.BatchSecretRequest{WorkspaceID: "ws", Environment: "dev"})
	require.NoError(t, err)

	for key, want := range map[string]bool{
		ProjectSecretsKey("ws", "dev"):  false,
		SnapshotListKey("ws"):           false,
		SnapshotCountKey("ws"):          false,
		ProjectSecretsKey("ws", "prod"): true,
		SnapshotListKey("other"):        true,
	} {
		_, ok, err := f.store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, ok, key)
	}
}

func TestService_BatchSecrets_FailureKeepsCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.api.batchErr = errors.New("rejected")

	key := ProjectSecretsKey("ws", "dev")
	require.NoError(t, f.store.Set(ctx, key, query.Entry{Data: []byte(`[]`)}, 0))

	_, err := f.service.BatchSecrets(ctx, domain.BatchSecretRequest{WorkspaceID: "ws", Environment: "dev"})
	require.Error(t, err)

	_, ok, err := f.store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_GetLatestFileKey(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.GetLatestFileKey(ctx, "")
	assert.ErrorIs(t, err, query.ErrQueryDisabled)

	key, err := f.service.GetLatestFileKey(ctx, "ws")
	require.NoError(t, err)
	assert.Equal(t, f.fileKey.EncryptedKey, key.EncryptedKey)

	_, err = f.service.GetLatestFileKey(ctx, "ws")
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.fileKeyCalls)
}

func TestService_EncryptBatch(t *testing.T) {
	f := newServiceFixture(t)

	req, err := f.service.EncryptBatch(context.Background(), *f.fileKey, "ws", "dev", []PlainBatchOperation{
		{Method: domain.BatchMethodCreate, Secret: PlainSecret{Key: "API_KEY", Value: "abc", Comment: "c"}},
		{Method: domain.BatchMethodDelete, Secret: PlainSecret{ID: "s9", Key: "IGNORED"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "ws", req.WorkspaceID)
	assert.Equal(t, "dev", req.Environment)
	require.Len(t, req.Requests, 2)

	created := req.Requests[0].Secret
	assert.Equal(t, domain.SecretTypeShared, created.Type)
	key, err := crypto.DecryptSymmetric(crypto.SymmetricCiphertext{
		Ciphertext: created.SecretKeyCiphertext,
		IV:         created.SecretKeyIV,
		Tag:        created.SecretKeyTag,
	}, testProjectKey)
	require.NoError(t, err)
	assert.Equal(t, "API_KEY", key)

	assert.Equal(t, domain.BatchSecret{ID: "s9"}, req.Requests[1].Secret)
}
