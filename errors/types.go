package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Session lookup and lifecycle errors
	ErrCodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeAlreadyRegistered ErrorCode = "ALREADY_REGISTERED"
	ErrCodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"

	// Messaging errors
	ErrCodeRecipientNotRegistered ErrorCode = "RECIPIENT_NOT_REGISTERED"
	ErrCodeDeliveryFailed         ErrorCode = "DELIVERY_FAILED"
	ErrCodeGroupEnumeration       ErrorCode = "GROUP_ENUMERATION_FAILED"

	// Persistence errors
	ErrCodeStoreCorrupt    ErrorCode = "STORE_CORRUPT"
	ErrCodeStoreUnwritable ErrorCode = "STORE_UNWRITABLE"

	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeShuttingDown ErrorCode = "SHUTTING_DOWN"
)

// GatewayError represents a structured error with context
type GatewayError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *GatewayError) WithDetail(key string, value interface{}) *GatewayError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *GatewayError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new GatewayError
func New(code ErrorCode, message string) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a GatewayError
func Wrap(err error, code ErrorCode, message string) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific GatewayError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	gwErr, ok := err.(*GatewayError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return gwErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	gwErr, ok := err.(*GatewayError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return gwErr.Code
}

// As returns the first GatewayError in err's chain.
func As(err error) (*GatewayError, bool) {
	for e := err; e != nil; {
		if g, ok := e.(*GatewayError); ok {
			return g, true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return nil, false
}

// Message returns the human-readable message of a GatewayError, or err.Error()
// for any other error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if gwErr, ok := As(err); ok {
		return gwErr.Message
	}
	return err.Error()
}
