// Package firebase implements the federated-identity authentication
// provider. Cryptographic token verification is delegated to an Oracle, the
// client for the external identity backend; this package maps oracle claims
// onto the Identity shape.
package firebase

import (
	"context"
	"fmt"
	"time"

	"github.com/virelia/tenantgate/internal/auth"
	"github.com/virelia/tenantgate/internal/observability"
)

// Claims is the set of subject attributes reported by the identity backend.
type Claims struct {
	Subject       string    `json:"sub"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified,omitempty"`
	Role          string    `json:"role,omitempty"`
	TenantID      string    `json:"tenant_id,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	LastSignInAt  time.Time `json:"last_sign_in_at,omitempty"`
}

// Oracle is the client for the federated identity backend.
type Oracle interface {
	// VerifyBearerToken cryptographically verifies a raw bearer token and
	// returns its claims.
	VerifyBearerToken(ctx context.Context, raw string) (*Claims, error)

	// GetSubjectByID resolves a subject id. A subject that does not exist is
	// reported as absent (false) with a nil error.
	GetSubjectByID(ctx context.Context, id string) (*Claims, bool, error)

	// CreateSubject provisions a new subject.
	CreateSubject(ctx context.Context, email, secret string, opts auth.CreateOptions) (*Claims, error)

	// DeleteSubject removes a subject.
	DeleteSubject(ctx context.Context, id string) error
}

// Provider verifies federated bearer tokens through an Oracle.
type Provider struct {
	name   string
	oracle Oracle
	logger observability.Logger
}

// Option is a functional option for the provider.
type Option func(*Provider)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithName overrides the registered provider name.
func WithName(name string) Option {
	return func(p *Provider) {
		p.name = name
	}
}

// New creates the federated-identity provider.
func New(oracle Oracle, opts ...Option) *Provider {
	p := &Provider{
		name:   auth.ProviderFirebase,
		oracle: oracle,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the registered provider name.
func (p *Provider) Name() string {
	return p.name
}

// Verify checks a raw bearer token against the oracle. Any oracle failure
// (bad signature, expired, malformed) is reported as an invalid credential
// with the oracle's detail preserved as the cause.
func (p *Provider) Verify(ctx context.Context, credential string) (*auth.Identity, error) {
	claims, err := p.oracle.VerifyBearerToken(ctx, credential)
	if err != nil {
		return nil, auth.NewCredentialError(p.name, err)
	}
	return p.identityFromClaims(claims), nil
}

// LookupByID resolves a subject id through the oracle. A subject the oracle
// does not know is absent, not a failure; any other oracle error is a lookup
// failure.
func (p *Provider) LookupByID(ctx context.Context, id string) (*auth.Identity, bool, error) {
	claims, found, err := p.oracle.GetSubjectByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("%w: subject %s: %v", auth.ErrLookupFailed, id, err)
	}
	if !found {
		return nil, false, nil
	}
	return p.identityFromClaims(claims), true, nil
}

// CreateUser provisions a subject at the identity backend.
func (p *Provider) CreateUser(ctx context.Context, email, secret string, opts auth.CreateOptions) (*auth.Identity, error) {
	claims, err := p.oracle.CreateSubject(ctx, email, secret, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrCreateFailed, err)
	}
	p.logger.Info("subject created",
		observability.String("provider", p.name),
		observability.String("subject", claims.Subject),
	)
	return p.identityFromClaims(claims), nil
}

// DeleteUser removes a subject from the identity backend.
func (p *Provider) DeleteUser(ctx context.Context, id string) error {
	if err := p.oracle.DeleteSubject(ctx, id); err != nil {
		return fmt.Errorf("%w: subject %s: %v", auth.ErrDeleteFailed, id, err)
	}
	p.logger.Info("subject deleted",
		observability.String("provider", p.name),
		observability.String("subject", id),
	)
	return nil
}

// identityFromClaims maps oracle claims onto the Identity shape.
func (p *Provider) identityFromClaims(claims *Claims) *auth.Identity {
	identity := &auth.Identity{
		ID:            claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Role:          claims.Role,
		TenantID:      claims.TenantID,
		Provider:      p.name,
		ProviderID:    claims.Subject,
	}
	if !claims.CreatedAt.IsZero() || !claims.LastSignInAt.IsZero() {
		identity.Metadata = &auth.Metadata{
			CreatedAt:    claims.CreatedAt,
			LastSignInAt: claims.LastSignInAt,
		}
	}
	return identity
}

// Ensure Provider implements the full capability set.
var (
	_ auth.Provider    = (*Provider)(nil)
	_ auth.UserCreator = (*Provider)(nil)
	_ auth.UserDeleter = (*Provider)(nil)
)
