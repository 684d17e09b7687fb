package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestSymmetric_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "empty", plaintext: ""},
		{name: "ascii", plaintext: "DATABASE_URL"},
		{name: "unicode", plaintext: "päss wörd ✓"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := EncryptSymmetric(tt.plaintext, testKey)
			require.NoError(t, err)

			iv, err := base64.StdEncoding.DecodeString(encrypted.IV)
			require.NoError(t, err)
			assert.Len(t, iv, ivSize)

			decrypted, err := DecryptSymmetric(encrypted, testKey)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestSymmetric_TamperedTagFails(t *testing.T) {
	encrypted, err := EncryptSymmetric("value", testKey)
	require.NoError(t, err)

	tag, err := base64.StdEncoding.DecodeString(encrypted.Tag)
	require.NoError(t, err)
	tag[0] ^= 0xff
	encrypted.Tag = base64.StdEncoding.EncodeToString(tag)

	_, err = DecryptSymmetric(encrypted, testKey)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSymmetric_WrongKeyFails(t *testing.T) {
	encrypted, err := EncryptSymmetric("value", testKey)
	require.NoError(t, err)

	_, err = DecryptSymmetric(encrypted, "fedcba9876543210fedcba9876543210")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSymmetric_InvalidKeyLength(t *testing.T) {
	_, err := EncryptSymmetric("value", "short")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestGenerateSymmetricKey(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	assert.Len(t, key, SymmetricKeySize)

	_, err = EncryptSymmetric("value", key)
	assert.NoError(t, err)
}

func TestAsymmetric_RoundTrip(t *testing.T) {
	senderPublic, senderPrivate, err := GenerateKeyPair()
	require.NoError(t, err)
	receiverPublic, receiverPrivate, err := GenerateKeyPair()
	require.NoError(t, err)

	encrypted, err := EncryptAsymmetric(testKey, receiverPublic, senderPrivate)
	require.NoError(t, err)

	decrypted, err := DecryptAsymmetric(encrypted, senderPublic, receiverPrivate)
	require.NoError(t, err)
	assert.Equal(t, testKey, decrypted)
}

func TestAsymmetric_WrongReceiverFails(t *testing.T) {
	_, senderPrivate, err := GenerateKeyPair()
	require.NoError(t, err)
	receiverPublic, _, err := GenerateKeyPair()
	require.NoError(t, err)
	otherPublic, otherPrivate, err := GenerateKeyPair()
	require.NoError(t, err)

	encrypted, err := EncryptAsymmetric("secret", receiverPublic, senderPrivate)
	require.NoError(t, err)

	_, err = DecryptAsymmetric(encrypted, otherPublic, otherPrivate)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestAsymmetric_InvalidKey(t *testing.T) {
	_, err := DecryptAsymmetric(AsymmetricCiphertext{
		Ciphertext: base64.StdEncoding.EncodeToString([]byte("x")),
		Nonce:      base64.StdEncoding.EncodeToString(make([]byte, boxNonceSize)),
	}, "not-base64!", "also-not")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
