package auth

import (
	"context"
	"fmt"

	"github.com/virelia/tenantgate/internal/observability"
)

// Service dispatches authentication operations to a provider resolved from
// the registry. It is a pure dispatch layer: no caching, no retries. Retry
// and backoff policy belong to the provider's backing client.
type Service struct {
	registry        *Registry
	defaultProvider string
	logger          observability.Logger
}

// ServiceOption is a functional option for the service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(logger observability.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDefaultProvider sets the provider used when callers pass an empty
// provider name.
func WithDefaultProvider(name string) ServiceOption {
	return func(s *Service) {
		s.defaultProvider = name
	}
}

// NewService creates a new authentication service over the given registry.
func NewService(registry *Registry, opts ...ServiceOption) *Service {
	s := &Service{
		registry:        registry,
		defaultProvider: ProviderFirebase,
		logger:          observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolve returns the provider for name, falling back to the default when
// name is empty.
func (s *Service) resolve(name string) (Provider, error) {
	if name == "" {
		name = s.defaultProvider
	}
	p, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// Verify dispatches credential verification to the named provider.
func (s *Service) Verify(ctx context.Context, credential, providerName string) (*Identity, error) {
	p, err := s.resolve(providerName)
	if err != nil {
		return nil, err
	}
	return p.Verify(ctx, credential)
}

// LookupByID dispatches a subject lookup to the named provider. Absence is
// reported as (nil, false, nil), not as an error.
func (s *Service) LookupByID(ctx context.Context, id, providerName string) (*Identity, bool, error) {
	p, err := s.resolve(providerName)
	if err != nil {
		return nil, false, err
	}
	return p.LookupByID(ctx, id)
}

// CreateUser dispatches subject creation to the named provider. Providers
// without the capability yield ErrCapabilityUnsupported.
func (s *Service) CreateUser(ctx context.Context, email, secret string, opts CreateOptions, providerName string) (*Identity, error) {
	p, err := s.resolve(providerName)
	if err != nil {
		return nil, err
	}
	creator, ok := p.(UserCreator)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not support create", ErrCapabilityUnsupported, p.Name())
	}
	return creator.CreateUser(ctx, email, secret, opts)
}

// DeleteUser dispatches subject deletion to the named provider. Providers
// without the capability yield ErrCapabilityUnsupported.
func (s *Service) DeleteUser(ctx context.Context, id, providerName string) error {
	p, err := s.resolve(providerName)
	if err != nil {
		return err
	}
	deleter, ok := p.(UserDeleter)
	if !ok {
		return fmt.Errorf("%w: %s does not support delete", ErrCapabilityUnsupported, p.Name())
	}
	return deleter.DeleteUser(ctx, id)
}
