package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/virelia/tenantgate/internal/auth"
	"github.com/virelia/tenantgate/internal/observability"
)

var (
	// ErrUserNotFound means the authenticated identity has no local user
	// record, so no membership question can even be asked.
	ErrUserNotFound = errors.New("user not found")

	// ErrAccessDenied means the user exists but is not a member of the
	// requested tenant.
	ErrAccessDenied = errors.New("tenant access denied")
)

// Summary is the cached projection of a tenant a user belongs to.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// User is the local record an external identity resolves to.
type User struct {
	ID                string
	ProviderSubjectID string
	Email             string
	DisplayName       string
	Role              string
	CreatedAt         time.Time
}

// UserStore resolves external identities to local user records.
type UserStore interface {
	// FindByProviderSubjectID returns the user owning the given external
	// subject. Absence is (nil, false, nil).
	FindByProviderSubjectID(ctx context.Context, subjectID string) (*User, bool, error)
}

// TenantStore reads tenant membership from the source of truth.
type TenantStore interface {
	ListForUser(ctx context.Context, userID string) ([]Summary, error)
}

// Checker answers whether an authenticated identity may act on a tenant.
// Membership reads go through the cache; misses fall back to the store and
// repopulate it. Two concurrent misses for the same user may both hit the
// store, which is harmless.
type Checker struct {
	users   UserStore
	tenants TenantStore
	cache   MembershipCache
	logger  observability.Logger
	metrics *Metrics
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithCheckerLogger sets the checker's logger.
func WithCheckerLogger(logger observability.Logger) CheckerOption {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCheckerMetrics sets the checker's metrics collector.
func WithCheckerMetrics(m *Metrics) CheckerOption {
	return func(c *Checker) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewChecker builds a Checker over the given stores and cache.
func NewChecker(users UserStore, tenants TenantStore, cache MembershipCache, opts ...CheckerOption) *Checker {
	c := &Checker{
		users:   users,
		tenants: tenants,
		cache:   cache,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authorize resolves identity to a local user and verifies membership in
// tenantID. It returns the user on success, ErrUserNotFound when no local
// record exists, and ErrAccessDenied when the user is not a member.
func (c *Checker) Authorize(ctx context.Context, identity *auth.Identity, tenantID string) (*User, error) {
	user, memberships, err := c.Memberships(ctx, identity)
	if err != nil {
		return nil, err
	}

	for _, t := range memberships {
		if t.ID == tenantID {
			if c.metrics != nil {
				c.metrics.RecordDecision(decisionAllowed)
			}
			return user, nil
		}
	}

	c.logger.Info("tenant access denied",
		observability.String("user_id", user.ID),
		observability.String("tenant_id", tenantID))
	if c.metrics != nil {
		c.metrics.RecordDecision(decisionDenied)
	}
	return nil, fmt.Errorf("%w: user %s, tenant %s", ErrAccessDenied, user.ID, tenantID)
}

// Memberships resolves identity to a local user and returns the user's
// tenant set, served from cache when fresh.
func (c *Checker) Memberships(ctx context.Context, identity *auth.Identity) (*User, []Summary, error) {
	if identity == nil {
		return nil, nil, ErrUserNotFound
	}

	user, found, err := c.users.FindByProviderSubjectID(ctx, identity.ProviderID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve user: %w", err)
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: subject %s", ErrUserNotFound, identity.ProviderID)
	}

	memberships, err := c.membershipsForUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, memberships, nil
}

func (c *Checker) membershipsForUser(ctx context.Context, userID string) ([]Summary, error) {
	cached, hit, err := c.cache.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read membership cache: %w", err)
	}
	if hit {
		if c.metrics != nil {
			c.metrics.RecordCacheLookup(true)
		}
		return cached, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(false)
	}

	memberships, err := c.tenants.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if err := c.cache.Set(ctx, userID, memberships); err != nil {
		c.logger.Warn("membership cache write failed",
			observability.String("user_id", userID),
			observability.Error(err))
	}
	return memberships, nil
}

// Invalidate drops the cached membership set for userID so the next check
// rereads the store. Call it after any membership change.
func (c *Checker) Invalidate(ctx context.Context, userID string) error {
	if err := c.cache.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate memberships: %w", err)
	}
	return nil
}
