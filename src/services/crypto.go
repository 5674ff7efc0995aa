package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
)

// Encryptor provides AES-256-GCM encryption/decryption for credential fields.
// The key is held in memory for the process lifetime and is read-only after
// construction, so a single instance is safe for concurrent use.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an Encryptor from a standard-base64 32-byte key.
// An empty key fails with ErrEncryptionKeyMissing; a malformed one with
// ErrEncryptionKeyInvalid. Neither error ever carries the key value.
func NewEncryptor(b64Key string) (*Encryptor, error) {
	if b64Key == "" {
		return nil, ErrEncryptionKeyMissing
	}

	key, err := base64.StdEncoding.DecodeString(b64Key)
	if err != nil {
		return nil, ErrEncryptionKeyInvalid
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrEncryptionKeyInvalid, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

// Encrypt encrypts a credential field using AES-256-GCM.
// The result is base64(nonce || ciphertext || tag). A fresh nonce per call
// means equal plaintexts never produce equal ciphertexts, so stored values
// can't be compared for equality. Empty input stays empty (an optional field
// that was never set).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext+tag to nonce
	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered, truncated, or wrong-key ciphertext
// fails with ErrDecryptionFailed; GCM authenticates the ciphertext so a
// forged value can never come back as silent garbage.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	plaintext, err := e.DecryptBytes(ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// DecryptBytes is Decrypt returning a mutable buffer, for callers that zero
// plaintext after use.
func (e *Encryptor) DecryptBytes(ciphertext string) ([]byte, error) {
	if ciphertext == "" {
		return nil, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	nonceSize := e.gcm.NonceSize()
	if len(sealed) < nonceSize+e.gcm.Overhead() {
		return nil, ErrDecryptionFailed
	}

	nonce, encrypted := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// EncryptorProvider constructs the process-wide Encryptor lazily on first
// credential operation. A server with no key configured still boots; the
// failure surfaces only when someone actually touches a credential.
type EncryptorProvider struct {
	keyFn func() string
	once  sync.Once
	enc   *Encryptor
	err   error
}

// NewEncryptorProvider creates a provider that reads the key via keyFn
// exactly once, on first Get
func NewEncryptorProvider(keyFn func() string) *EncryptorProvider {
	return &EncryptorProvider{keyFn: keyFn}
}

// Get returns the shared Encryptor, constructing it on first call
func (p *EncryptorProvider) Get() (*Encryptor, error) {
	p.once.Do(func() {
		p.enc, p.err = NewEncryptor(p.keyFn())
	})
	return p.enc, p.err
}

// Configured reports whether a key is present without constructing the
// Encryptor (used by health reporting)
func (p *EncryptorProvider) Configured() bool {
	return p.keyFn() != ""
}
