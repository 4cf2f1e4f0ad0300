// Package server wires the authentication and tenant gates into the HTTP
// surface: a bearer-token management API under /v1 and an API-key ingest
// surface under /ingest.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/virelia/tenantgate/internal/auth"
	"github.com/virelia/tenantgate/internal/auth/apikey"
	"github.com/virelia/tenantgate/internal/config"
	"github.com/virelia/tenantgate/internal/observability"
	"github.com/virelia/tenantgate/internal/tenant"
)

// UserDirectory persists local user records.
type UserDirectory interface {
	Create(ctx context.Context, user *tenant.User) error
	Delete(ctx context.Context, userID string) error
}

// TenantAdmin mutates tenants and their memberships.
type TenantAdmin interface {
	Create(ctx context.Context, name, slug string) (*tenant.Summary, error)
	AddMember(ctx context.Context, tenantID, userID string) error
	RemoveMember(ctx context.Context, tenantID, userID string) error
}

// APIKeyAdmin mints and revokes tenant-scoped API keys.
type APIKeyAdmin interface {
	Create(ctx context.Context, tenantID, name string, expiresAt time.Time) (string, *apikey.Key, error)
	Deactivate(ctx context.Context, tenantID, keyID string) (bool, error)
	ListByTenant(ctx context.Context, tenantID string) ([]apikey.Key, error)
}

// Deps carries everything the server needs.
type Deps struct {
	Config      *config.Config
	Logger      observability.Logger
	Auth        *auth.Service
	AuthMetrics *auth.Metrics
	Checker     *tenant.Checker
	Users       UserDirectory
	Tenants     TenantAdmin
	APIKeys     APIKeyAdmin
}

// Server is the HTTP front of the service.
type Server struct {
	deps   Deps
	logger observability.Logger
	engine *gin.Engine
	http   *http.Server
}

// New builds a Server with its routes registered.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	s := &Server{
		deps:   deps,
		logger: logger,
		engine: engine,
		http: &http.Server{
			Addr:         deps.Config.Server.Addr,
			Handler:      engine,
			ReadTimeout:  deps.Config.Server.ReadTimeout.Duration(),
			WriteTimeout: deps.Config.Server.WriteTimeout.Duration(),
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	cfg := s.deps.Config

	s.engine.GET("/healthz", s.handleHealth)
	if cfg.Metrics.Enabled {
		s.engine.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Management surface: bearer tokens from the federated identity
	// provider, tenant scope checked against stored memberships.
	v1 := s.engine.Group("/v1")
	v1.Use(auth.RequireAuth(auth.GateConfig{
		Service:  s.deps.Auth,
		Provider: auth.ProviderFirebase,
		Extract:  auth.BearerExtractor(),
		Logger:   s.logger,
		Metrics:  s.deps.AuthMetrics,
	}))
	v1.Use(tenant.RequireMembership(tenant.GateConfig{
		Checker: s.deps.Checker,
		Header:  cfg.Tenant.Header,
		Logger:  s.logger,
	}))

	v1.GET("/me", s.handleMe)
	v1.GET("/tenants", s.handleListTenants)
	v1.POST("/tenants", s.handleCreateTenant)
	v1.POST("/tenants/:id/members", s.handleAddMember)
	v1.DELETE("/tenants/:id/members/:userID", s.handleRemoveMember)
	v1.POST("/apikeys", s.handleCreateAPIKey)
	v1.GET("/apikeys", s.handleListAPIKeys)
	v1.DELETE("/apikeys/:id", s.handleDeleteAPIKey)

	admin := v1.Group("")
	admin.Use(auth.RequireRole("admin"))
	admin.POST("/users", s.handleCreateUser)
	admin.GET("/users/:id", s.handleLookupUser)
	admin.DELETE("/users/:id", s.handleDeleteUser)

	// Ingest surface: static API keys in a query parameter. The key itself
	// names its tenant, so scope is checked against the identity instead of
	// stored memberships.
	ingest := s.engine.Group("/ingest")
	ingest.Use(auth.RequireAuth(auth.GateConfig{
		Service:  s.deps.Auth,
		Provider: auth.ProviderAPIToken,
		Extract:  auth.QueryExtractor(cfg.Auth.APIKey.QueryParam),
		Logger:   s.logger,
		Metrics:  s.deps.AuthMetrics,
	}))
	ingest.Use(requireIdentityScope(cfg.Tenant.Header))

	ingest.POST("/events", s.handleIngestEvent)
}

// requireIdentityScope rejects requests whose tenant scope header names a
// tenant other than the one bound into the identity. A missing header
// defaults to the identity's own tenant.
func requireIdentityScope(header string) gin.HandlerFunc {
	if header == "" {
		header = tenant.DefaultScopeHeader
	}
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   auth.ReasonMissingCredential,
				"message": "authentication required",
			})
			return
		}
		if scope := c.GetHeader(header); scope != "" && scope != identity.TenantID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   auth.ReasonAccessDenied,
				"message": "credential is not scoped to the requested tenant",
			})
			return
		}
		c.Next()
	}
}

// requestLogger assigns each request an id and logs one line after it
// completes.
func requestLogger(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := observability.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", requestID)

		c.Next()

		logger.WithContext(c.Request.Context()).Info("request",
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.Int("status", c.Writer.Status()),
			observability.Duration("duration", time.Since(start)),
		)
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening",
		observability.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
