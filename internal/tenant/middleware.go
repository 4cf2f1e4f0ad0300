package tenant

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/virelia/tenantgate/internal/auth"
	"github.com/virelia/tenantgate/internal/observability"
)

// DefaultScopeHeader carries the tenant a request wants to act on.
const DefaultScopeHeader = "X-Tenant-Id"

type userContextKey struct{}

// ContextWithUser attaches the resolved local user to ctx.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the local user attached by the membership gate.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// GateConfig configures a tenant membership gate.
type GateConfig struct {
	// Checker answers the membership question.
	Checker *Checker

	// Header names the request header carrying the tenant scope. Empty
	// falls back to DefaultScopeHeader.
	Header string

	Logger observability.Logger
}

// RequireMembership returns a gin middleware that rejects requests whose
// tenant scope the authenticated identity may not act on. Requests without
// a scope header pass through untouched; handlers that demand a scope
// enforce that themselves. It must run after an authentication gate.
func RequireMembership(cfg GateConfig) gin.HandlerFunc {
	header := cfg.Header
	if header == "" {
		header = DefaultScopeHeader
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		tenantID := c.GetHeader(header)
		if tenantID == "" {
			c.Next()
			return
		}

		// No identity means the request never passed an authentication gate.
		// That gate owns the rejection; this one only answers the membership
		// question and must run after it.
		identity, ok := auth.IdentityFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		user, err := cfg.Checker.Authorize(c.Request.Context(), identity, tenantID)
		switch {
		case errors.Is(err, ErrUserNotFound):
			logger.WithContext(c.Request.Context()).Warn("authenticated subject has no user record",
				observability.String("subject", identity.ProviderID),
				observability.String("provider", identity.Provider),
			)
			abortWithReason(c, http.StatusUnauthorized, auth.ReasonUserNotFound, "unknown user")
			return
		case errors.Is(err, ErrAccessDenied):
			abortWithReason(c, http.StatusForbidden, auth.ReasonAccessDenied, "not a member of the requested tenant")
			return
		case err != nil:
			logger.WithContext(c.Request.Context()).Error("tenant membership check failed",
				observability.String("tenant_id", tenantID),
				observability.Error(err),
			)
			abortWithReason(c, http.StatusInternalServerError, auth.ReasonInternalError, "membership check failed")
			return
		}

		ctx := ContextWithUser(c.Request.Context(), user)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortWithReason(c *gin.Context, status int, reason, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   reason,
		"message": message,
	})
}
