package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/devblin/infisical/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func field(v string) domain.EncryptedField {
	return domain.EncryptedField{Ciphertext: v, IV: "iv", Tag: "tag"}
}

func TestStore_CreateAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateIntegrationAuth(ctx, domain.IntegrationAuth{
		WorkspaceID: "ws",
		Integration: domain.IntegrationType_Heroku,
		Refresh:     field("r"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := store.GetIntegrationAuth(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = store.GetIntegrationAuth(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrIntegrationAuthNotFound)
}

func TestStore_UpdateAccess(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateIntegrationAuth(ctx, domain.IntegrationAuth{ID: "a1", AccessID: field("id")})
	require.NoError(t, err)

	expiresAt := time.Now().Add(time.Hour)
	require.NoError(t, store.UpdateAccess(ctx, domain.UpdateAccessParams{
		IntegrationAuthID: created.ID,
		Access:            field("access"),
		AccessExpiresAt:   &expiresAt,
	}))

	got, err := store.GetIntegrationAuth(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, field("access"), got.Access)
	assert.Equal(t, field("id"), got.AccessID, "nil access id leaves the stored one untouched")
	require.NotNil(t, got.AccessExpiresAt)
	assert.True(t, expiresAt.Equal(*got.AccessExpiresAt))

	newID := field("id-2")
	require.NoError(t, store.UpdateAccess(ctx, domain.UpdateAccessParams{
		IntegrationAuthID: "a1",
		AccessID:          &newID,
		Access:            field("access-2"),
	}))

	got, err = store.GetIntegrationAuth(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, newID, got.AccessID)
	assert.Nil(t, got.AccessExpiresAt)

	err = store.UpdateAccess(ctx, domain.UpdateAccessParams{IntegrationAuthID: "missing"})
	assert.ErrorIs(t, err, domain.ErrIntegrationAuthNotFound)
}

func TestStore_UpdateRefresh(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.CreateIntegrationAuth(ctx, domain.IntegrationAuth{ID: "a1", Refresh: field("old")})
	require.NoError(t, err)

	require.NoError(t, store.UpdateRefresh(ctx, domain.UpdateRefreshParams{IntegrationAuthID: "a1", Refresh: field("new")}))

	got, err := store.GetIntegrationAuth(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, field("new"), got.Refresh)

	err = store.UpdateRefresh(ctx, domain.UpdateRefreshParams{IntegrationAuthID: "missing"})
	assert.ErrorIs(t, err, domain.ErrIntegrationAuthNotFound)
}

func TestStore_ListExpiringIntegrationAuths(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	for _, auth := range []domain.IntegrationAuth{
		{ID: "later", Refresh: field("r"), AccessExpiresAt: at(5 * time.Minute)},
		{ID: "sooner", Refresh: field("r"), AccessExpiresAt: at(-time.Minute)},
		{ID: "far", Refresh: field("r"), AccessExpiresAt: at(time.Hour)},
		{ID: "no-refresh", AccessExpiresAt: at(time.Minute)},
		{ID: "no-expiry", Refresh: field("r")},
	} {
		_, err := store.CreateIntegrationAuth(ctx, auth)
		require.NoError(t, err)
	}

	auths, err := store.ListExpiringIntegrationAuths(ctx, now.Add(10*time.Minute))
	require.NoError(t, err)

	ids := make([]string, len(auths))
	for i, auth := range auths {
		ids[i] = auth.ID
	}
	assert.Equal(t, []string{"sooner", "later"}, ids)
}
