package models

import (
	"time"

	"github.com/google/uuid"
)

// BrokerCredential represents a stored brokerage API credential.
// EncryptedAPIKey and EncryptedAPISecret hold ciphertext only; plaintext
// exists solely inside the decrypt-on-demand accessor's scope.
type BrokerCredential struct {
	ID                 uuid.UUID `json:"id"`
	OwnerID            uuid.UUID `json:"owner_id"`
	BrokerType         string    `json:"broker_type"`
	EncryptedAPIKey    string    `json:"-"` // never expose, even encrypted
	EncryptedAPISecret string    `json:"-"` // never expose, even encrypted
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CredentialMetadata is the API-facing projection of a credential.
// It has no secret fields at all, so no serialization path can leak them.
type CredentialMetadata struct {
	ID         uuid.UUID `json:"id"`
	BrokerType string    `json:"broker_type"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Metadata returns the secret-free projection of the credential
func (c *BrokerCredential) Metadata() CredentialMetadata {
	return CredentialMetadata{
		ID:         c.ID,
		BrokerType: c.BrokerType,
		IsActive:   c.IsActive,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// BrokerAccount is the live account descriptor returned by a brokerage API
type BrokerAccount struct {
	AccountNumber  string `json:"account_number"`
	Status         string `json:"status"`
	Currency       string `json:"currency"`
	Cash           string `json:"cash"`
	PortfolioValue string `json:"portfolio_value"`
}

// ValidationResult is the structured outcome of validating a credential
// against its brokerage. External-service failures are reported here,
// never as errors, so plaintext can't leak through an exception trace.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	Reason  string         `json:"reason,omitempty"`
	Account *BrokerAccount `json:"account,omitempty"`
}
