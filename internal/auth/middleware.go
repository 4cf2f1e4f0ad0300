package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/virelia/tenantgate/internal/observability"
)

// Machine-readable rejection reason codes carried in error responses.
const (
	ReasonMissingCredential = "missing_credential"
	ReasonInvalidCredential = "invalid_credential"
	ReasonUserNotFound      = "user_not_found"
	ReasonAccessDenied      = "access_denied"
	ReasonForbidden         = "forbidden"
	ReasonInternalError     = "internal_error"
)

// GateConfig configures a request authentication gate. One gate instance
// serves exactly one credential scheme.
type GateConfig struct {
	// Service performs the verification dispatch.
	Service *Service

	// Provider is the registered provider name this gate verifies against.
	Provider string

	// Extract pulls the raw credential from the request.
	Extract Extractor

	Logger  observability.Logger
	Metrics *Metrics
}

// RequireAuth returns a gin middleware that authenticates every request with
// the configured provider. A missing credential is rejected without
// consulting the service; an invalid one is rejected after exactly one
// verification attempt. On success the identity is attached to the request
// context for downstream consumption.
func RequireAuth(cfg GateConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics("")
	}

	return func(c *gin.Context) {
		start := time.Now()

		credential, ok := cfg.Extract(c.Request)
		if !ok {
			// Distinguishable from an invalid credential in telemetry; the
			// service is not consulted on this path.
			logger.WithContext(c.Request.Context()).Debug("credential missing",
				observability.String("provider", cfg.Provider),
				observability.String("path", c.Request.URL.Path),
			)
			metrics.RecordRequest(cfg.Provider, "missing", time.Since(start))
			metrics.RecordFailure(cfg.Provider, ReasonMissingCredential)
			abortWithReason(c, http.StatusUnauthorized, ReasonMissingCredential, "authentication required")
			return
		}

		identity, err := cfg.Service.Verify(c.Request.Context(), credential, cfg.Provider)
		if err != nil {
			// Internal detail stays server-side; the caller sees only the
			// reason code. Only the redacted digest identifies the credential.
			logger.WithContext(c.Request.Context()).Warn("credential rejected",
				observability.String("provider", cfg.Provider),
				observability.String("path", c.Request.URL.Path),
				observability.String("credential", Redact(credential)),
				observability.Error(err),
			)
			metrics.RecordRequest(cfg.Provider, "failure", time.Since(start))
			metrics.RecordFailure(cfg.Provider, failureReason(err))
			if errors.Is(err, ErrProviderNotFound) {
				// A gate pointed at an unregistered provider is a deployment
				// defect, not a caller mistake.
				abortWithReason(c, http.StatusInternalServerError, ReasonInternalError, "authentication unavailable")
				return
			}
			abortWithReason(c, http.StatusUnauthorized, ReasonInvalidCredential, "invalid credential")
			return
		}

		metrics.RecordRequest(cfg.Provider, "success", time.Since(start))

		ctx := ContextWithIdentity(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole returns a gin middleware that rejects authenticated requests
// whose identity lacks the given role. It must run after an authentication
// gate.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c.Request.Context())
		if !ok {
			abortWithReason(c, http.StatusUnauthorized, ReasonMissingCredential, "authentication required")
			return
		}
		if !identity.HasRole(role) {
			abortWithReason(c, http.StatusForbidden, ReasonForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

// failureReason classifies a verification error for metrics labels.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredential):
		return ReasonInvalidCredential
	case errors.Is(err, ErrProviderNotFound):
		return "provider_not_found"
	default:
		return ReasonInternalError
	}
}

// abortWithReason terminates the request with a machine-readable reason code.
func abortWithReason(c *gin.Context, status int, reason, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   reason,
		"message": message,
	})
}
