package models

// Validation failure reasons reported by the Validate operation
const (
	// ReasonInvalidCredentials means the brokerage rejected the key pair
	ReasonInvalidCredentials = "invalid_credentials"
	// ReasonBrokerUnreachable means the brokerage API timed out or refused the connection
	ReasonBrokerUnreachable = "broker_unreachable"
	// ReasonUnknownBroker means the credential's broker_type has no registry entry
	ReasonUnknownBroker = "unknown_broker"
)
