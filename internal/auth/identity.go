package auth

import (
	"context"
	"time"
)

// Default provider names. The provider set is closed at startup; these are
// the names under which the built-in providers register.
const (
	ProviderFirebase = "firebase"
	ProviderAPIToken = "api-token"
)

// RoleUser is the role assumed when a credential carries none.
const RoleUser = "user"

// RoleAPIUser is the role assigned to identities synthesized from API keys.
const RoleAPIUser = "api-user"

// Identity is the verified representation of a caller, independent of
// transport. It is created by a provider, attached to the request context by
// the authentication gate, and discarded at end of request.
type Identity struct {
	// ID is the provider-assigned subject identifier.
	ID string `json:"id"`

	// Email may be empty for non-email-bearing credentials.
	Email string `json:"email,omitempty"`

	// EmailVerified indicates whether the email has been verified.
	EmailVerified bool `json:"email_verified,omitempty"`

	// Role is the caller's role; empty means RoleUser.
	Role string `json:"role,omitempty"`

	// TenantID is populated only when the credential itself encodes tenant
	// scope, as API keys do.
	TenantID string `json:"tenant_id,omitempty"`

	// Provider is the registered name of the provider that produced this
	// identity. It must exactly match the registry entry.
	Provider string `json:"provider"`

	// ProviderID is the provider-specific subject id, often equal to ID.
	ProviderID string `json:"provider_id"`

	// Metadata carries optional account timestamps.
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Metadata holds optional account timestamps reported by a provider.
type Metadata struct {
	CreatedAt    time.Time `json:"created_at,omitempty"`
	LastSignInAt time.Time `json:"last_sign_in_at,omitempty"`
}

// EffectiveRole returns the identity's role, defaulting to RoleUser.
func (i *Identity) EffectiveRole() string {
	if i.Role == "" {
		return RoleUser
	}
	return i.Role
}

// HasRole reports whether the identity's effective role matches role.
func (i *Identity) HasRole(role string) bool {
	return i.EffectiveRole() == role
}

type identityContextKey struct{}

// ContextWithIdentity adds an identity to the context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
