package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virelia/tenantgate/internal/auth"
)

type fakeUserStore struct {
	users map[string]*User
	err   error
}

func (s *fakeUserStore) FindByProviderSubjectID(_ context.Context, subjectID string) (*User, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	user, ok := s.users[subjectID]
	return user, ok, nil
}

type fakeTenantStore struct {
	memberships map[string][]Summary
	err         error
	calls       int
}

func (s *fakeTenantStore) ListForUser(_ context.Context, userID string) ([]Summary, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.memberships[userID], nil
}

func checkerFixture(clock *fakeClock) (*Checker, *fakeTenantStore) {
	users := &fakeUserStore{users: map[string]*User{
		"sub-1": {ID: "u1", ProviderSubjectID: "sub-1", Email: "alex@example.com"},
	}}
	tenants := &fakeTenantStore{memberships: map[string][]Summary{
		"u1": {
			{ID: "t1", Name: "Acme", Slug: "acme"},
			{ID: "t2", Name: "Globex", Slug: "globex"},
		},
	}}
	cache := NewMemoryCache(5*time.Minute, WithClock(clock.Now))
	return NewChecker(users, tenants, cache), tenants
}

func identityFor(subject string) *auth.Identity {
	return &auth.Identity{ID: subject, ProviderID: subject, Provider: auth.ProviderFirebase}
}

func TestChecker_Authorize(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	t.Run("member is allowed", func(t *testing.T) {
		t.Parallel()

		checker, _ := checkerFixture(clock)
		user, err := checker.Authorize(ctx, identityFor("sub-1"), "t1")
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
	})

	t.Run("non-member is denied", func(t *testing.T) {
		t.Parallel()

		checker, _ := checkerFixture(clock)
		_, err := checker.Authorize(ctx, identityFor("sub-1"), "t3")
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("unknown subject", func(t *testing.T) {
		t.Parallel()

		checker, _ := checkerFixture(clock)
		_, err := checker.Authorize(ctx, identityFor("sub-unknown"), "t1")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("nil identity", func(t *testing.T) {
		t.Parallel()

		checker, _ := checkerFixture(clock)
		_, err := checker.Authorize(ctx, nil, "t1")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		t.Parallel()

		users := &fakeUserStore{users: map[string]*User{
			"sub-1": {ID: "u1", ProviderSubjectID: "sub-1"},
		}}
		tenants := &fakeTenantStore{err: errors.New("connection reset")}
		checker := NewChecker(users, tenants, NewMemoryCache(5*time.Minute))

		_, err := checker.Authorize(ctx, identityFor("sub-1"), "t1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAccessDenied)
		assert.NotErrorIs(t, err, ErrUserNotFound)
	})
}

func TestChecker_CacheBehavior(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("checks inside ttl share one fetch", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
		checker, tenants := checkerFixture(clock)

		_, err := checker.Authorize(ctx, identityFor("sub-1"), "t1")
		require.NoError(t, err)
		_, err = checker.Authorize(ctx, identityFor("sub-1"), "t2")
		require.NoError(t, err)

		assert.Equal(t, 1, tenants.calls)
	})

	t.Run("check past ttl refetches", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
		checker, tenants := checkerFixture(clock)

		_, err := checker.Authorize(ctx, identityFor("sub-1"), "t1")
		require.NoError(t, err)

		clock.Advance(6 * time.Minute)

		_, err = checker.Authorize(ctx, identityFor("sub-1"), "t1")
		require.NoError(t, err)
		assert.Equal(t, 2, tenants.calls)
	})

	t.Run("revocation is invisible until invalidated", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
		checker, tenants := checkerFixture(clock)

		_, err := checker.Authorize(ctx, identityFor("sub-1"), "t2")
		require.NoError(t, err)

		// Membership revoked at the source of truth.
		tenants.memberships["u1"] = []Summary{{ID: "t1", Name: "Acme", Slug: "acme"}}

		_, err = checker.Authorize(ctx, identityFor("sub-1"), "t2")
		assert.NoError(t, err, "stale cache still answers until ttl or invalidation")

		require.NoError(t, checker.Invalidate(ctx, "u1"))

		_, err = checker.Authorize(ctx, identityFor("sub-1"), "t2")
		assert.ErrorIs(t, err, ErrAccessDenied)
	})
}

func TestChecker_Memberships(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	checker, _ := checkerFixture(clock)

	user, memberships, err := checker.Memberships(context.Background(), identityFor("sub-1"))
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	require.Len(t, memberships, 2)
	assert.Equal(t, "t1", memberships[0].ID)
}
