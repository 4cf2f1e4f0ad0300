// Package apikey implements credential verification for static,
// tenant-scoped API keys. Keys are long-lived secrets handed to machine
// callers; a verified key maps to a synthetic identity carrying the
// api-user role and the key's tenant scope.
package apikey

import (
	"context"
	"fmt"
	"time"

	"github.com/virelia/tenantgate/internal/auth"
	"github.com/virelia/tenantgate/internal/observability"
)

// Key is a stored API key record. The raw secret itself is never stored;
// lookups match against its digest.
type Key struct {
	ID        string
	Name      string
	TenantID  string
	ExpiresAt time.Time
	CreatedAt time.Time
	Active    bool
}

// Expired reports whether the key's expiry, if set, has passed.
func (k *Key) Expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt)
}

// Store resolves a raw API key to its stored record.
type Store interface {
	// FindActiveKey returns the key matching the raw secret. Absence is
	// (nil, false, nil); an error means the store itself failed.
	FindActiveKey(ctx context.Context, raw string) (*Key, bool, error)
}

// Provider verifies static API keys against a Store.
//
// LookupByID always reports absence: API keys carry no user directory, so
// there is no record to resolve an identifier against. Callers that need
// lookup must route through a directory-backed provider.
type Provider struct {
	name   string
	store  Store
	logger observability.Logger
	now    func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider's logger.
func WithLogger(logger observability.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithName overrides the registered provider name.
func WithName(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.name = name
		}
	}
}

// NewProvider builds an API-key provider backed by store.
func NewProvider(store Store, opts ...Option) *Provider {
	p := &Provider{
		name:   auth.ProviderAPIToken,
		store:  store,
		logger: observability.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider's registered name.
func (p *Provider) Name() string { return p.name }

// Verify resolves a raw API key to its synthetic identity.
func (p *Provider) Verify(ctx context.Context, credential string) (*auth.Identity, error) {
	if credential == "" {
		return nil, auth.NewCredentialError(p.name, fmt.Errorf("empty key"))
	}

	key, found, err := p.store.FindActiveKey(ctx, credential)
	if err != nil {
		p.logger.Error("api key lookup failed",
			observability.String("provider", p.name),
			observability.Error(err))
		return nil, fmt.Errorf("%w: %v", auth.ErrLookupFailed, err)
	}
	if !found {
		p.logger.Warn("unknown api key presented",
			observability.String("provider", p.name),
			observability.String("key", auth.Redact(credential)))
		return nil, auth.NewCredentialError(p.name, fmt.Errorf("unknown key"))
	}
	if !key.Active {
		return nil, auth.NewCredentialError(p.name, fmt.Errorf("key %s is deactivated", key.ID))
	}
	if key.Expired(p.now()) {
		return nil, auth.NewCredentialError(p.name, fmt.Errorf("key %s expired at %s", key.ID, key.ExpiresAt.Format(time.RFC3339)))
	}

	return p.identityForKey(key), nil
}

// LookupByID reports absence for every identifier. See the Provider doc.
func (p *Provider) LookupByID(_ context.Context, _ string) (*auth.Identity, bool, error) {
	return nil, false, nil
}

func (p *Provider) identityForKey(key *Key) *auth.Identity {
	return &auth.Identity{
		ID:            key.ID,
		Email:         fmt.Sprintf("api-key-%s@tenant-%s", key.Name, key.TenantID),
		EmailVerified: true,
		Role:          auth.RoleAPIUser,
		TenantID:      key.TenantID,
		Provider:      p.name,
		ProviderID:    key.ID,
		Metadata: &auth.Metadata{
			CreatedAt: key.CreatedAt,
		},
	}
}

var _ auth.Provider = (*Provider)(nil)
