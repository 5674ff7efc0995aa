package services

import "errors"

// Sentinel errors for explicit error handling
// These errors allow callers to distinguish between different failure modes
// using errors.Is() instead of string matching

var (
	// ErrInvalidInput indicates malformed request data
	ErrInvalidInput = errors.New("invalid input")

	// ErrCredentialNotFound indicates the credential does not exist for the
	// requesting owner. Ownership mismatches report this same error so an
	// unauthorized caller can't confirm that a credential id exists.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrDuplicateCredential indicates an active credential of this broker
	// type already exists for the owner
	ErrDuplicateCredential = errors.New("active credential of this type already exists")

	// ErrCredentialInactive indicates the credential is deactivated and
	// excluded from use
	ErrCredentialInactive = errors.New("credential is inactive")

	// ErrEncryptionKeyMissing indicates no encryption key is configured
	ErrEncryptionKeyMissing = errors.New("encryption key not configured: set CREDENTIAL_ENCRYPTION_KEY (generate one with `openssl rand -base64 32`)")

	// ErrEncryptionKeyInvalid indicates the configured key is not a base64
	// 32-byte value
	ErrEncryptionKeyInvalid = errors.New("encryption key invalid: CREDENTIAL_ENCRYPTION_KEY must be standard base64 for 32 bytes (generate one with `openssl rand -base64 32`)")

	// ErrDecryptionFailed indicates ciphertext was tampered with or was
	// produced under a different key
	ErrDecryptionFailed = errors.New("decryption failed: ciphertext tampered or wrong key")

	// ErrBrokerUnavailable indicates a network/timeout failure reaching the
	// brokerage API
	ErrBrokerUnavailable = errors.New("broker API unavailable")

	// ErrBrokerAuthRejected indicates the brokerage rejected the key pair
	ErrBrokerAuthRejected = errors.New("broker rejected credentials")

	// ErrUserNotFound indicates the user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidLogin indicates authentication failed
	ErrInvalidLogin = errors.New("invalid email or password")

	// ErrEmailTaken indicates the email is already registered
	ErrEmailTaken = errors.New("email already registered")
)
