package errors

import (
	"fmt"
)

// SessionNotFound creates an error for a lookup against an id with no live session
func SessionNotFound(id string) *GatewayError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("The id: %s is not found!", id)).
		WithDetail("id", id)
}

// AlreadyRegistered creates an error for a second live session under the same id
func AlreadyRegistered(id string) *GatewayError {
	return New(ErrCodeAlreadyRegistered, fmt.Sprintf("session '%s' is already registered", id)).
		WithDetail("id", id)
}

// IllegalTransition creates an error for a lifecycle signal that is not valid in the current state
func IllegalTransition(id, from, signal string) *GatewayError {
	return New(ErrCodeIllegalTransition,
		fmt.Sprintf("session '%s' cannot handle '%s' while %s", id, signal, from)).
		WithDetail("id", id).
		WithDetail("from", from).
		WithDetail("signal", signal)
}

// RecipientNotRegistered creates an error for a direct recipient unknown to the messaging network
func RecipientNotRegistered(recipient string) *GatewayError {
	return New(ErrCodeRecipientNotRegistered, "The number is not registered").
		WithDetail("recipient", recipient)
}

// DeliveryFailed creates an error for a failed send call
func DeliveryFailed(message string, err error) *GatewayError {
	return Wrap(err, ErrCodeDeliveryFailed, message)
}

// GroupEnumerationFailed creates an error for a failed chat or history fetch
func GroupEnumerationFailed(err error) *GatewayError {
	return Wrap(err, ErrCodeGroupEnumeration, "Failed to fetch groups.")
}

// StoreCorrupt creates an error for persisted session data that cannot be decoded
func StoreCorrupt(path string, err error) *GatewayError {
	return Wrap(err, ErrCodeStoreCorrupt, fmt.Sprintf("session store is corrupt: %s", path)).
		WithDetail("path", path)
}

// StoreUnwritable creates an error for a failed write of the session collection
func StoreUnwritable(path string, err error) *GatewayError {
	return Wrap(err, ErrCodeStoreUnwritable, fmt.Sprintf("failed to write session store: %s", path)).
		WithDetail("path", path)
}

// InvalidInput creates an error for a malformed request
func InvalidInput(reason string) *GatewayError {
	return New(ErrCodeInvalidInput, reason)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *GatewayError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *GatewayError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}
