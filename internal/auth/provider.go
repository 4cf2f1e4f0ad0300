package auth

import "context"

// Provider implements a single credential-verification scheme. All providers
// support verification and lookup; creation and deletion are optional
// capabilities (see UserCreator and UserDeleter).
type Provider interface {
	// Name returns the name under which the provider is registered. The
	// Provider field of every Identity it produces must equal this name.
	Name() string

	// Verify checks a raw credential and returns the identity it proves.
	// A rejected credential yields an error matching ErrInvalidCredential.
	Verify(ctx context.Context, credential string) (*Identity, error)

	// LookupByID resolves a subject id to an identity. A subject that does
	// not exist is reported as absent (false) with a nil error; only
	// unexpected failures return an error, matching ErrLookupFailed.
	LookupByID(ctx context.Context, id string) (*Identity, bool, error)
}

// CreateOptions carries optional attributes for subject creation.
type CreateOptions struct {
	DisplayName   string
	Role          string
	EmailVerified bool
}

// UserCreator is the optional subject-creation capability.
type UserCreator interface {
	CreateUser(ctx context.Context, email, secret string, opts CreateOptions) (*Identity, error)
}

// UserDeleter is the optional subject-deletion capability.
type UserDeleter interface {
	DeleteUser(ctx context.Context, id string) error
}
