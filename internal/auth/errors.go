package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication operations.
var (
	// ErrMissingCredential indicates that no credential was supplied.
	ErrMissingCredential = errors.New("no credential provided")

	// ErrInvalidCredential indicates that a credential was supplied but
	// rejected by its provider.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrProviderNotFound indicates that no provider is registered under the
	// requested name. This is a configuration defect, not a caller error.
	ErrProviderNotFound = errors.New("authentication provider not found")

	// ErrCapabilityUnsupported indicates that the resolved provider does not
	// implement the requested optional capability.
	ErrCapabilityUnsupported = errors.New("capability not supported by provider")

	// ErrLookupFailed indicates that a subject lookup failed for a reason
	// other than the subject being absent.
	ErrLookupFailed = errors.New("subject lookup failed")

	// ErrCreateFailed indicates that subject creation failed at the provider.
	ErrCreateFailed = errors.New("subject creation failed")

	// ErrDeleteFailed indicates that subject deletion failed at the provider.
	ErrDeleteFailed = errors.New("subject deletion failed")
)

// CredentialError wraps a provider failure while preserving the underlying
// cause for server-side logging. It matches ErrInvalidCredential so gates can
// classify it without inspecting the cause, which must never be echoed to the
// caller.
type CredentialError struct {
	// Provider is the registered name of the provider that rejected the
	// credential.
	Provider string

	// Cause is the provider or oracle error.
	Cause error
}

// Error implements the error interface.
func (e *CredentialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: invalid credential: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("%s: invalid credential", e.Provider)
}

// Unwrap returns the underlying cause.
func (e *CredentialError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches ErrInvalidCredential.
func (e *CredentialError) Is(target error) bool {
	return target == ErrInvalidCredential
}

// NewCredentialError creates a CredentialError for the given provider.
func NewCredentialError(provider string, cause error) *CredentialError {
	return &CredentialError{Provider: provider, Cause: cause}
}
