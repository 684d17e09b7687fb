package secrets

import (
	"fmt"
	"sort"

	"github.com/devblin/infisical/pkg/crypto"
	"github.com/devblin/infisical/pkg/domain"
)

// DecryptProjectKey unwraps the workspace symmetric key with the user's private key.
func DecryptProjectKey(projectKey domain.ProjectKey, privateKey string) (string, error) {
	key, err := crypto.DecryptAsymmetric(crypto.AsymmetricCiphertext{
		Ciphertext: projectKey.EncryptedKey,
		Nonce:      projectKey.Nonce,
	}, projectKey.Sender.PublicKey, privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt project key: %w", err)
	}

	return key, nil
}

type personalOverride struct {
	id    string
	value string
}

// DecryptProjectSecrets decrypts every record and folds personal secrets into
// the shared secret with the same key. Shared keys are deduplicated with the
// first record winning; personal keys with the last record winning. A single
// undecryptable record fails the whole call.
func DecryptProjectSecrets(records []domain.EncryptedSecret, key string) ([]domain.DecryptedSecret, error) {
	shared := make([]domain.DecryptedSecret, 0, len(records))
	personal := make(map[string]personalOverride)
	seen := make(map[string]bool)

	for _, record := range records {
		secretKey, err := decryptField(record.SecretKeyCiphertext, record.SecretKeyIV, record.SecretKeyTag, key)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt key of secret %s: %w", record.ID, err)
		}

		secretValue, err := decryptField(record.SecretValueCiphertext, record.SecretValueIV, record.SecretValueTag, key)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt value of secret %s: %w", record.ID, err)
		}

		secretComment, err := decryptField(record.SecretCommentCiphertext, record.SecretCommentIV, record.SecretCommentTag, key)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt comment of secret %s: %w", record.ID, err)
		}

		if record.Type == domain.SecretTypePersonal {
			personal[secretKey] = personalOverride{id: record.ID, value: secretValue}
			continue
		}

		if seen[secretKey] {
			continue
		}
		seen[secretKey] = true

		shared = append(shared, domain.DecryptedSecret{
			ID:        record.ID,
			Env:       record.Environment,
			Key:       secretKey,
			Value:     secretValue,
			Comment:   secretComment,
			Tags:      record.Tags,
			CreatedAt: record.CreatedAt,
			UpdatedAt: record.UpdatedAt,
		})
	}

	for i := range shared {
		override, ok := personal[shared[i].Key]
		if !ok {
			continue
		}

		shared[i].IDOverride = override.id
		shared[i].ValueOverride = override.value
		shared[i].OverrideAction = domain.OverrideActionModified
	}

	return shared, nil
}

// DecryptSecretVersions decrypts the value of each version, newest first.
func DecryptSecretVersions(versions []domain.EncryptedSecretVersion, key string) ([]domain.DecryptedSecretVersion, error) {
	decrypted := make([]domain.DecryptedSecretVersion, 0, len(versions))

	for _, version := range versions {
		value, err := decryptField(version.SecretValueCiphertext, version.SecretValueIV, version.SecretValueTag, key)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt secret version %s: %w", version.ID, err)
		}

		decrypted = append(decrypted, domain.DecryptedSecretVersion{
			ID:        version.ID,
			CreatedAt: version.CreatedAt,
			Value:     value,
		})
	}

	sort.SliceStable(decrypted, func(i, j int) bool {
		return decrypted[i].CreatedAt.After(decrypted[j].CreatedAt)
	})

	return decrypted, nil
}

type PlainSecret struct {
	ID      string
	Type    domain.SecretType
	Key     string
	Value   string
	Comment string
	Tags    []string
}

// EncryptSecret builds the encrypted payload of a batch create or update.
func EncryptSecret(secret PlainSecret, key string) (domain.BatchSecret, error) {
	secretType := secret.Type
	if secretType == "" {
		secretType = domain.SecretTypeShared
	}

	encryptedKey, err := crypto.EncryptSymmetric(secret.Key, key)
	if err != nil {
		return domain.BatchSecret{}, fmt.Errorf("failed to encrypt secret key: %w", err)
	}

	encryptedValue, err := crypto.EncryptSymmetric(secret.Value, key)
	if err != nil {
		return domain.BatchSecret{}, fmt.Errorf("failed to encrypt secret value: %w", err)
	}

	encryptedComment, err := crypto.EncryptSymmetric(secret.Comment, key)
	if err != nil {
		return domain.BatchSecret{}, fmt.Errorf("failed to encrypt secret comment: %w", err)
	}

	return domain.BatchSecret{
		ID:                      secret.ID,
		Type:                    secretType,
		SecretKeyCiphertext:     encryptedKey.Ciphertext,
		SecretKeyIV:             encryptedKey.IV,
		SecretKeyTag:            encryptedKey.Tag,
		SecretValueCiphertext:   encryptedValue.Ciphertext,
		SecretValueIV:           encryptedValue.IV,
		SecretValueTag:          encryptedValue.Tag,
		SecretCommentCiphertext: encryptedComment.Ciphertext,
		SecretCommentIV:         encryptedComment.IV,
		SecretCommentTag:        encryptedComment.Tag,
		Tags:                    secret.Tags,
	}, nil
}

func decryptField(ciphertext, iv, tag, key string) (string, error) {
	return crypto.DecryptSymmetric(crypto.SymmetricCiphertext{
		Ciphertext: ciphertext,
		IV:         iv,
		Tag:        tag,
	}, key)
}
