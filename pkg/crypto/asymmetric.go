package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

const (
	boxKeySize   = 32
	boxNonceSize = 24
)

type AsymmetricCiphertext struct {
	Ciphertext string
	Nonce      string
}

// GenerateKeyPair creates a NaCl box key pair, both halves base64 encoded.
func GenerateKeyPair() (publicKeyBase64, privateKeyBase64 string, err error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key pair: %w", err)
	}

	return base64.StdEncoding.EncodeToString(publicKey[:]), base64.StdEncoding.EncodeToString(privateKey[:]), nil
}

func EncryptAsymmetric(plaintext, receiverPublicKey, senderPrivateKey string) (AsymmetricCiphertext, error) {
	publicKey, err := decodeBoxKey(receiverPublicKey)
	if err != nil {
		return AsymmetricCiphertext{}, fmt.Errorf("failed to decode public key: %w", err)
	}

	privateKey, err := decodeBoxKey(senderPrivateKey)
	if err != nil {
		return AsymmetricCiphertext{}, fmt.Errorf("failed to decode private key: %w", err)
	}

	var nonce [boxNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return AsymmetricCiphertext{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := box.Seal(nil, []byte(plaintext), &nonce, publicKey, privateKey)

	return AsymmetricCiphertext{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		Nonce:      base64.StdEncoding.EncodeToString(nonce[:]),
	}, nil
}

// DecryptAsymmetric opens a NaCl box sealed by senderPublicKey for the holder
// of privateKey.
func DecryptAsymmetric(c AsymmetricCiphertext, senderPublicKey, privateKey string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(c.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding: %v", ErrDecryptionFailed, err)
	}

	nonceBytes, err := base64.StdEncoding.DecodeString(c.Nonce)
	if err != nil {
		return "", fmt.Errorf("%w: invalid nonce encoding: %v", ErrDecryptionFailed, err)
	}

	if len(nonceBytes) != boxNonceSize {
		return "", fmt.Errorf("%w: invalid nonce length %d", ErrDecryptionFailed, len(nonceBytes))
	}

	publicKey, err := decodeBoxKey(senderPublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to decode sender public key: %w", err)
	}

	secretKey, err := decodeBoxKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to decode private key: %w", err)
	}

	var nonce [boxNonceSize]byte
	copy(nonce[:], nonceBytes)

	plaintext, ok := box.Open(nil, sealed, &nonce, publicKey, secretKey)
	if !ok {
		return "", fmt.Errorf("%w: box authentication failed", ErrDecryptionFailed)
	}

	return string(plaintext), nil
}

func decodeBoxKey(base64Key string) (*[boxKeySize]byte, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding: %v", ErrInvalidKey, err)
	}

	if len(keyBytes) != boxKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, boxKeySize, len(keyBytes))
	}

	var key [boxKeySize]byte
	copy(key[:], keyBytes)

	return &key, nil
}
