package tenant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virelia/tenantgate/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// injectIdentity is a test middleware standing in for an authentication gate.
func injectIdentity(identity *auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.ContextWithIdentity(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func gateRouter(t *testing.T, checker *Checker, identity *auth.Identity) *gin.Engine {
	t.Helper()

	router := gin.New()
	group := router.Group("/")
	if identity != nil {
		group.Use(injectIdentity(identity))
	}
	group.Use(RequireMembership(GateConfig{Checker: checker}))
	group.GET("/resource", func(c *gin.Context) {
		if user, ok := UserFromContext(c.Request.Context()); ok {
			c.JSON(http.StatusOK, gin.H{"user_id": user.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": ""})
	})
	return router
}

func doScoped(router *gin.Engine, tenantID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	if tenantID != "" {
		req.Header.Set(DefaultScopeHeader, tenantID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequireMembership(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	t.Run("member scope is allowed", func(t *testing.T) {
		checker, _ := checkerFixture(clock)
		router := gateRouter(t, checker, identityFor("sub-1"))

		rec := doScoped(router, "t1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"user_id":"u1"`)
	})

	t.Run("non-member scope is forbidden", func(t *testing.T) {
		checker, _ := checkerFixture(clock)
		router := gateRouter(t, checker, identityFor("sub-1"))

		rec := doScoped(router, "t3")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), auth.ReasonAccessDenied)
	})

	t.Run("no scope header passes through", func(t *testing.T) {
		checker, tenants := checkerFixture(clock)
		router := gateRouter(t, checker, identityFor("sub-1"))

		rec := doScoped(router, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, tenants.calls, "unscoped requests never consult the store")
	})

	t.Run("unknown subject is unauthorized", func(t *testing.T) {
		checker, _ := checkerFixture(clock)
		router := gateRouter(t, checker, identityFor("sub-ghost"))

		rec := doScoped(router, "t1")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), auth.ReasonUserNotFound)
	})

	t.Run("missing identity defers to the authentication gate", func(t *testing.T) {
		checker, tenants := checkerFixture(clock)
		router := gateRouter(t, checker, nil)

		rec := doScoped(router, "t1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, tenants.calls, "no membership question is asked without an identity")
	})

	t.Run("store failure is an internal error", func(t *testing.T) {
		users := &fakeUserStore{users: map[string]*User{
			"sub-1": {ID: "u1", ProviderSubjectID: "sub-1"},
		}}
		tenants := &fakeTenantStore{err: errors.New("connection reset")}
		checker := NewChecker(users, tenants, NewMemoryCache(5*time.Minute))
		router := gateRouter(t, checker, identityFor("sub-1"))

		rec := doScoped(router, "t1")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), auth.ReasonInternalError)
		assert.NotContains(t, rec.Body.String(), "connection reset", "store detail stays server-side")
	})

	t.Run("custom scope header", func(t *testing.T) {
		checker, _ := checkerFixture(clock)
		router := gin.New()
		router.Use(injectIdentity(identityFor("sub-1")))
		router.Use(RequireMembership(GateConfig{Checker: checker, Header: "X-Org"}))
		router.GET("/resource", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		req.Header.Set("X-Org", "t2")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestUserFromContext(t *testing.T) {
	t.Parallel()

	_, ok := UserFromContext(context.Background())
	require.False(t, ok)

	ctx := ContextWithUser(context.Background(), &User{ID: "u1"})
	user, ok := UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)
}
