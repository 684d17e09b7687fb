package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	SymmetricKeySize = 32
	ivSize           = 16
	tagSize          = 16
)

var (
	ErrInvalidKey       = errors.New("invalid key")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// SymmetricCiphertext holds the base64 parts of an AES-256-GCM encryption.
type SymmetricCiphertext struct {
	Ciphertext string
	IV         string
	Tag        string
}

// EncryptSymmetric encrypts plaintext with AES-256-GCM under key, whose raw
// bytes must be exactly 32 long.
func EncryptSymmetric(plaintext string, key string) (SymmetricCiphertext, error) {
	aead, err := newGCM(key, ivSize)
	if err != nil {
		return SymmetricCiphertext{}, err
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return SymmetricCiphertext{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return SymmetricCiphertext{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Tag:        base64.StdEncoding.EncodeToString(tag),
	}, nil
}

// DecryptSymmetric opens an AES-256-GCM ciphertext. A tag mismatch fails closed
// with ErrDecryptionFailed.
func DecryptSymmetric(c SymmetricCiphertext, key string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(c.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding: %v", ErrDecryptionFailed, err)
	}

	iv, err := base64.StdEncoding.DecodeString(c.IV)
	if err != nil {
		return "", fmt.Errorf("%w: invalid iv encoding: %v", ErrDecryptionFailed, err)
	}

	tag, err := base64.StdEncoding.DecodeString(c.Tag)
	if err != nil {
		return "", fmt.Errorf("%w: invalid tag encoding: %v", ErrDecryptionFailed, err)
	}

	if len(iv) == 0 {
		return "", fmt.Errorf("%w: empty iv", ErrDecryptionFailed)
	}

	if len(tag) != tagSize {
		return "", fmt.Errorf("%w: invalid tag length %d", ErrDecryptionFailed, len(tag))
	}

	aead, err := newGCM(key, len(iv))
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

func newGCM(key string, nonceSize int) (cipher.AEAD, error) {
	if len(key) != SymmetricKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, SymmetricKeySize, len(key))
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aead, nil
}

// GenerateSymmetricKey returns a random key in the 32-character hex form used
// for project keys.
func GenerateSymmetricKey() (string, error) {
	raw := make([]byte, SymmetricKeySize/2)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}

	return fmt.Sprintf("%x", raw), nil
}
