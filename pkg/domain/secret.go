package domain

import (
	"context"
	"time"
)

type SecretType string

const (
	SecretTypeShared   SecretType = "shared"
	SecretTypePersonal SecretType = "personal"
)

const OverrideActionModified = "modified"

type SecretTag struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Workspace string `json:"workspace,omitempty"`
}

// EncryptedSecret is a secret record as returned by the API. Immutable once fetched.
type EncryptedSecret struct {
	ID          string     `json:"_id"`
	Version     int        `json:"version"`
	Workspace   string     `json:"workspace"`
	Type        SecretType `json:"type"`
	Environment string     `json:"environment"`
	User        string     `json:"user,omitempty"`

	SecretKeyCiphertext string `json:"secretKeyCiphertext"`
	SecretKeyIV         string `json:"secretKeyIV"`
	SecretKeyTag        string `json:"secretKeyTag"`

	SecretValueCiphertext string `json:"secretValueCiphertext"`
	SecretValueIV         string `json:"secretValueIV"`
	SecretValueTag        string `json:"secretValueTag"`

	SecretCommentCiphertext string `json:"secretCommentCiphertext"`
	SecretCommentIV         string `json:"secretCommentIV"`
	SecretCommentTag        string `json:"secretCommentTag"`

	Tags      []SecretTag `json:"tags"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// DecryptedSecret is the display view of a shared secret, with the personal
// override attached when one exists for the same key.
type DecryptedSecret struct {
	ID        string      `json:"_id"`
	Env       string      `json:"env"`
	Key       string      `json:"key"`
	Value     string      `json:"value"`
	Comment   string      `json:"comment"`
	Tags      []SecretTag `json:"tags"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	IDOverride     string `json:"idOverride,omitempty"`
	ValueOverride  string `json:"valueOverride,omitempty"`
	OverrideAction string `json:"overrideAction,omitempty"`
}

type EncryptedSecretVersion struct {
	ID          string     `json:"_id"`
	Secret      string     `json:"secret"`
	Version     int        `json:"version"`
	Workspace   string     `json:"workspace"`
	Type        SecretType `json:"type"`
	Environment string     `json:"environment"`
	IsDeleted   bool       `json:"isDeleted"`

	SecretKeyCiphertext string `json:"secretKeyCiphertext"`
	SecretKeyIV         string `json:"secretKeyIV"`
	SecretKeyTag        string `json:"secretKeyTag"`

	SecretValueCiphertext string `json:"secretValueCiphertext"`
	SecretValueIV         string `json:"secretValueIV"`
	SecretValueTag        string `json:"secretValueTag"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DecryptedSecretVersion struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Value     string    `json:"value"`
}

type KeySender struct {
	PublicKey string `json:"publicKey"`
}

// ProjectKey is the workspace symmetric key wrapped for the current user.
type ProjectKey struct {
	ID           string    `json:"_id"`
	EncryptedKey string    `json:"encryptedKey"`
	Nonce        string    `json:"nonce"`
	Sender       KeySender `json:"sender"`
	Receiver     string    `json:"receiver,omitempty"`
	Workspace    string    `json:"workspace,omitempty"`
}

type BatchMethod string

const (
	BatchMethodCreate BatchMethod = "POST"
	BatchMethodUpdate BatchMethod = "PATCH"
	BatchMethodDelete BatchMethod = "DELETE"
)

type BatchSecret struct {
	ID   string     `json:"_id,omitempty" yaml:"_id,omitempty"`
	Type SecretType `json:"type,omitempty" yaml:"type,omitempty"`

	SecretKeyCiphertext string `json:"secretKeyCiphertext,omitempty" yaml:"secretKeyCiphertext,omitempty"`
	SecretKeyIV         string `json:"secretKeyIV,omitempty" yaml:"secretKeyIV,omitempty"`
	SecretKeyTag        string `json:"secretKeyTag,omitempty" yaml:"secretKeyTag,omitempty"`

	SecretValueCiphertext string `json:"secretValueCiphertext,omitempty" yaml:"secretValueCiphertext,omitempty"`
	SecretValueIV         string `json:"secretValueIV,omitempty" yaml:"secretValueIV,omitempty"`
	SecretValueTag        string `json:"secretValueTag,omitempty" yaml:"secretValueTag,omitempty"`

	SecretCommentCiphertext string `json:"secretCommentCiphertext,omitempty" yaml:"secretCommentCiphertext,omitempty"`
	SecretCommentIV         string `json:"secretCommentIV,omitempty" yaml:"secretCommentIV,omitempty"`
	SecretCommentTag        string `json:"secretCommentTag,omitempty" yaml:"secretCommentTag,omitempty"`

	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type BatchSecretOperation struct {
	Method BatchMethod `json:"method" yaml:"method"`
	Secret BatchSecret `json:"secret" yaml:"secret"`
}

type BatchSecretRequest struct {
	WorkspaceID string                 `json:"workspaceId" yaml:"workspaceId"`
	Environment string                 `json:"environment" yaml:"environment"`
	Requests    []BatchSecretOperation `json:"requests" yaml:"requests"`
}

// PrivateKeyProvider hands out the current user's base64 NaCl private key.
type PrivateKeyProvider interface {
	PrivateKey(ctx context.Context) (string, error)
}
