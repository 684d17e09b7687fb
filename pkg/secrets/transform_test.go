package secrets

import (
	"testing"
	"time"

	"github.com/devblin/infisical/pkg/crypto"
	"github.com/devblin/infisical/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProjectKey = "a1b2c3d4e5f60718293a4b5c6d7e8f90"

func encryptedRecord(t *testing.T, id string, secretType domain.SecretType, key, value, comment string) domain.EncryptedSecret {
	t.Helper()

	payload, err := EncryptSecret(PlainSecret{Type: secretType, Key: key, Value: value, Comment: comment}, testProjectKey)
	require.NoError(t, err)

	return domain.EncryptedSecret{
		ID:                      id,
		Type:                    payload.Type,
		Environment:             "dev",
		SecretKeyCiphertext:     payload.SecretKeyCiphertext,
		SecretKeyIV:             payload.SecretKeyIV,
		SecretKeyTag:            payload.SecretKeyTag,
		SecretValueCiphertext:   payload.SecretValueCiphertext,
		SecretValueIV:           payload.SecretValueIV,
		SecretValueTag:          payload.SecretValueTag,
		SecretCommentCiphertext: payload.SecretCommentCiphertext,
		SecretCommentIV:         payload.SecretCommentIV,
		SecretCommentTag:        payload.SecretCommentTag,
	}
}

func TestDecryptProjectSecrets(t *testing.T) {
	tests := []struct {
		name    string
		records func(t *testing.T) []domain.EncryptedSecret
		check   func(t *testing.T, got []domain.DecryptedSecret)
	}{
		{
			name: "shared duplicates keep the first record",
			records: func(t *testing.T) []domain.EncryptedSecret {
				return []domain.EncryptedSecret{
					encryptedRecord(t, "s1", domain.SecretTypeShared, "A", "1", ""),
					encryptedRecord(t, "s2", domain.SecretTypeShared, "A", "2", ""),
					encryptedRecord(t, "s3", domain.SecretTypeShared, "B", "3", "note"),
				}
			},
			check: func(t *testing.T, got []domain.DecryptedSecret) {
				require.Len(t, got, 2)
				assert.Equal(t, "s1", got[0].ID)
				assert.Equal(t, "A", got[0].Key)
				assert.Equal(t, "1", got[0].Value)
				assert.Equal(t, "s3", got[1].ID)
				assert.Equal(t, "note", got[1].Comment)
				assert.Equal(t, "dev", got[1].Env)
				assert.Empty(t, got[0].OverrideAction)
			},
		},
		{
			name: "personal secret overrides shared with the same key",
			records: func(t *testing.T) []domain.EncryptedSecret {
				return []domain.EncryptedSecret{
					encryptedRecord(t, "p1", domain.SecretTypePersonal, "A", "mine", ""),
					encryptedRecord(t, "s1", domain.SecretTypeShared, "A", "team", ""),
				}
			},
			check: func(t *testing.T, got []domain.DecryptedSecret) {
				require.Len(t, got, 1)
				assert.Equal(t, "s1", got[0].ID)
				assert.Equal(t, "team", got[0].Value)
				assert.Equal(t, "p1", got[0].IDOverride)
				assert.Equal(t, "mine", got[0].ValueOverride)
				assert.Equal(t, domain.OverrideActionModified, got[0].OverrideAction)
			},
		},
		{
			name: "last personal secret wins",
			records: func(t *testing.T) []domain.EncryptedSecret {
				return []domain.EncryptedSecret{
					encryptedRecord(t, "p1", domain.SecretTypePersonal, "A", "first", ""),
					encryptedRecord(t, "s1", domain.SecretTypeShared, "A", "team", ""),
					encryptedRecord(t, "p2", domain.SecretTypePersonal, "A", "second", ""),
				}
			},
			check: func(t *testing.T, got []domain.DecryptedSecret) {
				require.Len(t, got, 1)
				assert.Equal(t, "p2", got[0].IDOverride)
				assert.Equal(t, "second", got[0].ValueOverride)
			},
		},
		{
			name: "personal secret without shared counterpart is dropped",
			records: func(t *testing.T) []domain.EncryptedSecret {
				return []domain.EncryptedSecret{
					encryptedRecord(t, "p1", domain.SecretTypePersonal, "ONLY_MINE", "x", ""),
					encryptedRecord(t, "s1", domain.SecretTypeShared, "B", "y", ""),
				}
			},
			check: func(t *testing.T, got []domain.DecryptedSecret) {
				require.Len(t, got, 1)
				assert.Equal(t, "B", got[0].Key)
				assert.Empty(t, got[0].IDOverride)
			},
		},
		{
			name: "empty input",
			records: func(t *testing.T) []domain.EncryptedSecret {
				return nil
			},
			check: func(t *testing.T, got []domain.DecryptedSecret) {
				assert.Empty(t, got)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecryptProjectSecrets(tt.records(t), testProjectKey)
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestDecryptProjectSecrets_TamperedRecordFailsAll(t *testing.T) {
	good := encryptedRecord(t, "s1", domain.SecretTypeShared, "A", "1", "")
	bad := encryptedRecord(t, "s2", domain.SecretTypeShared, "B", "2", "")

	other, err := crypto.EncryptSymmetric("x", testProjectKey)
	require.NoError(t, err)
	bad.SecretValueTag = other.Tag

	_, err = DecryptProjectSecrets([]domain.EncryptedSecret{good, bad}, testProjectKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
	assert.Contains(t, err.Error(), "s2")
}

func TestDecryptProjectSecrets_WrongKey(t *testing.T) {
	record := encryptedRecord(t, "s1", domain.SecretTypeShared, "A", "1", "")

	_, err := DecryptProjectSecrets([]domain.EncryptedSecret{record}, "ffffffffffffffffffffffffffffffff")
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func encryptedVersion(t *testing.T, id, value string, createdAt time.Time) domain.EncryptedSecretVersion {
	t.Helper()

	c, err := crypto.EncryptSymmetric(value, testProjectKey)
	require.NoError(t, err)

	return domain.EncryptedSecretVersion{
		ID:                    id,
		SecretValueCiphertext: c.Ciphertext,
		SecretValueIV:         c.IV,
		SecretValueTag:        c.Tag,
		CreatedAt:             createdAt,
	}
}

func TestDecryptSecretVersions_SortedNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	versions := []domain.EncryptedSecretVersion{
		encryptedVersion(t, "v1", "one", base),
		encryptedVersion(t, "v3", "three", base.Add(2*time.Hour)),
		encryptedVersion(t, "v2a", "two-a", base.Add(time.Hour)),
		encryptedVersion(t, "v2b", "two-b", base.Add(time.Hour)),
	}

	got, err := DecryptSecretVersions(versions, testProjectKey)
	require.NoError(t, err)
	require.Len(t, got, 4)

	ids := make([]string, len(got))
	for i, v := range got {
		ids[i] = v.ID
	}
	assert.Equal(t, []string{"v3", "v2a", "v2b", "v1"}, ids)
	assert.Equal(t, "three", got[0].Value)
	assert.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Hour)))
}

func TestDecryptSecretVersions_Failure(t *testing.T) {
	version := encryptedVersion(t, "v1", "one", time.Now())
	version.SecretValueCiphertext = "!!"

	_, err := DecryptSecretVersions([]domain.EncryptedSecretVersion{version}, testProjectKey)
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestDecryptProjectKey(t *testing.T) {
	userPublic, userPrivate, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	senderPublic, senderPrivate, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	wrapped, err := crypto.EncryptAsymmetric(testProjectKey, userPublic, senderPrivate)
	require.NoError(t, err)

	key, err := DecryptProjectKey(domain.ProjectKey{
		EncryptedKey: wrapped.Ciphertext,
		Nonce:        wrapped.Nonce,
		Sender:       domain.KeySender{PublicKey: senderPublic},
	}, userPrivate)
	require.NoError(t, err)
	assert.Equal(t, testProjectKey, key)
}
