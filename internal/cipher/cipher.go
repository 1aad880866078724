// Package cipher wraps the AES-256-GCM primitives in infrastructure/crypto
// with the key handling and error taxonomy the rest of the pipeline expects.
package cipher

import (
	"encoding/base64"
	"fmt"

	lowcrypto "github.com/aerocristobal/label-verify/infrastructure/crypto"
	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
)

const keySize = 32

// Cipher encrypts and decrypts blob-store payloads with a single
// operator-supplied AES-256 key.
type Cipher struct {
	key []byte
}

// New constructs a Cipher from 32 raw key bytes. Any other length is
// rejected immediately rather than deferred to the first Encrypt/Decrypt
// call.
func New(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, apperrors.InvalidKey(fmt.Errorf("encryption key must be exactly %d bytes, got %d", keySize, len(key)))
	}
	k := make([]byte, keySize)
	copy(k, key)
	return &Cipher{key: k}, nil
}

// NewFromBase64 decodes a base64-encoded key before constructing a Cipher.
// A malformed encoding or wrong decoded length both surface as InvalidKey.
func NewFromBase64(encoded string) (*Cipher, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.InvalidKey(fmt.Errorf("encryption key is not valid base64: %w", err))
	}
	return New(raw)
}

// Encrypt seals plaintext into nonce‖ciphertext‖tag.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	blob, err := lowcrypto.Encrypt(c.key, plaintext)
	if err != nil {
		return nil, apperrors.EncryptionFailed(err)
	}
	return blob, nil
}

// Decrypt opens a blob produced by Encrypt. Truncated input, tag
// mismatch, or a wrong key all surface uniformly as DecryptFailed so
// callers cannot distinguish "tampered" from "wrong key".
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < 12 {
		return nil, apperrors.DecryptionFailed(nil)
	}
	plaintext, err := lowcrypto.Decrypt(c.key, blob)
	if err != nil {
		return nil, apperrors.DecryptionFailed(err)
	}
	return plaintext, nil
}
