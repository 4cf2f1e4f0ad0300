package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/virelia/tenantgate/internal/auth"
	"github.com/virelia/tenantgate/internal/auth/apikey"
	"github.com/virelia/tenantgate/internal/observability"
	"github.com/virelia/tenantgate/internal/tenant"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type identityResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role"`
	Provider      string `json:"provider"`
}

type meResponse struct {
	Identity identityResponse `json:"identity"`
	UserID   string           `json:"user_id,omitempty"`
	Tenants  []tenant.Summary `json:"tenants"`
}

// handleMe reports the caller's identity and tenant memberships.
func (s *Server) handleMe(c *gin.Context) {
	identity, _ := auth.IdentityFromContext(c.Request.Context())

	resp := meResponse{
		Identity: identityResponse{
			ID:            identity.ID,
			Email:         identity.Email,
			EmailVerified: identity.EmailVerified,
			Role:          identity.EffectiveRole(),
			Provider:      identity.Provider,
		},
		Tenants: []tenant.Summary{},
	}

	user, memberships, err := s.deps.Checker.Memberships(c.Request.Context(), identity)
	switch {
	case errors.Is(err, tenant.ErrUserNotFound):
		// An authenticated subject with no local record still gets its
		// identity back, just with an empty tenant set.
	case err != nil:
		s.fail(c, err, "resolve memberships")
		return
	default:
		resp.UserID = user.ID
		resp.Tenants = memberships
	}

	c.JSON(http.StatusOK, resp)
}

// handleListTenants returns the tenants the caller is a member of.
func (s *Server) handleListTenants(c *gin.Context) {
	identity, _ := auth.IdentityFromContext(c.Request.Context())

	_, memberships, err := s.deps.Checker.Memberships(c.Request.Context(), identity)
	if errors.Is(err, tenant.ErrUserNotFound) {
		abort(c, http.StatusUnauthorized, auth.ReasonUserNotFound, "unknown user")
		return
	}
	if err != nil {
		s.fail(c, err, "list tenants")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": memberships})
}

type createTenantRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// handleCreateTenant creates a tenant with the caller as its first member.
func (s *Server) handleCreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	identity, _ := auth.IdentityFromContext(c.Request.Context())
	user, _, err := s.deps.Checker.Memberships(c.Request.Context(), identity)
	if errors.Is(err, tenant.ErrUserNotFound) {
		abort(c, http.StatusUnauthorized, auth.ReasonUserNotFound, "unknown user")
		return
	}
	if err != nil {
		s.fail(c, err, "resolve caller")
		return
	}

	summary, err := s.deps.Tenants.Create(c.Request.Context(), req.Name, req.Slug)
	if err != nil {
		s.fail(c, err, "create tenant")
		return
	}
	if err := s.deps.Tenants.AddMember(c.Request.Context(), summary.ID, user.ID); err != nil {
		s.fail(c, err, "add creator membership")
		return
	}
	if err := s.deps.Checker.Invalidate(c.Request.Context(), user.ID); err != nil {
		s.logger.Warn("membership invalidation failed",
			observability.String("user_id", user.ID),
			observability.Error(err))
	}

	c.JSON(http.StatusCreated, summary)
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// handleAddMember adds a user to the tenant named in the path. The caller
// must already have scoped the request to that tenant.
func (s *Server) handleAddMember(c *gin.Context) {
	tenantID := c.Param("id")
	if !s.scopedTo(c, tenantID) {
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := s.deps.Tenants.AddMember(c.Request.Context(), tenantID, req.UserID); err != nil {
		s.fail(c, err, "add member")
		return
	}
	s.invalidateMemberships(c, req.UserID)
	c.Status(http.StatusNoContent)
}

// handleRemoveMember revokes a user's membership in the tenant named in the
// path. The cache entry is invalidated so the revocation takes effect on
// the next check rather than after the TTL.
func (s *Server) handleRemoveMember(c *gin.Context) {
	tenantID := c.Param("id")
	if !s.scopedTo(c, tenantID) {
		return
	}
	userID := c.Param("userID")

	if err := s.deps.Tenants.RemoveMember(c.Request.Context(), tenantID, userID); err != nil {
		s.fail(c, err, "remove member")
		return
	}
	s.invalidateMemberships(c, userID)
	c.Status(http.StatusNoContent)
}

type createAPIKeyRequest struct {
	Name      string `json:"name" binding:"required"`
	ExpiresIn string `json:"expires_in"`
}

type apiKeyResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	TenantID  string     `json:"tenant_id"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// handleCreateAPIKey mints a key for the scoped tenant. The raw secret
// appears in this response and nowhere else.
func (s *Server) handleCreateAPIKey(c *gin.Context) {
	tenantID, ok := s.requireScope(c)
	if !ok {
		return
	}

	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var expiresAt time.Time
	if req.ExpiresIn != "" {
		ttl, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || ttl <= 0 {
			abort(c, http.StatusBadRequest, "invalid_request", "expires_in must be a positive duration")
			return
		}
		expiresAt = time.Now().Add(ttl)
	}

	raw, key, err := s.deps.APIKeys.Create(c.Request.Context(), tenantID, req.Name, expiresAt)
	if err != nil {
		s.fail(c, err, "create api key")
		return
	}

	resp := keyResponse(key)
	c.JSON(http.StatusCreated, gin.H{
		"key":    resp,
		"secret": raw,
	})
}

// handleListAPIKeys lists the scoped tenant's keys. Secrets are not stored
// and cannot be listed.
func (s *Server) handleListAPIKeys(c *gin.Context) {
	tenantID, ok := s.requireScope(c)
	if !ok {
		return
	}

	keys, err := s.deps.APIKeys.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		s.fail(c, err, "list api keys")
		return
	}

	out := make([]apiKeyResponse, 0, len(keys))
	for i := range keys {
		out = append(out, keyResponse(&keys[i]))
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

// handleDeleteAPIKey revokes a key within the scoped tenant.
func (s *Server) handleDeleteAPIKey(c *gin.Context) {
	tenantID, ok := s.requireScope(c)
	if !ok {
		return
	}

	found, err := s.deps.APIKeys.Deactivate(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		s.fail(c, err, "deactivate api key")
		return
	}
	if !found {
		abort(c, http.StatusNotFound, "not_found", "unknown api key")
		return
	}
	c.Status(http.StatusNoContent)
}

type createUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// handleCreateUser provisions a subject at the identity provider and a
// matching local record.
func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	identity, err := s.deps.Auth.CreateUser(c.Request.Context(), req.Email, req.Password, auth.CreateOptions{
		DisplayName: req.DisplayName,
		Role:        req.Role,
	}, "")
	if errors.Is(err, auth.ErrCapabilityUnsupported) {
		abort(c, http.StatusNotImplemented, "capability_unsupported", "provider cannot create users")
		return
	}
	if err != nil {
		s.fail(c, err, "create subject")
		return
	}

	user := &tenant.User{
		ProviderSubjectID: identity.ProviderID,
		Email:             identity.Email,
		DisplayName:       req.DisplayName,
		Role:              identity.EffectiveRole(),
	}
	if err := s.deps.Users.Create(c.Request.Context(), user); err != nil {
		s.fail(c, err, "create user record")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":    user.ID,
		"subject_id": identity.ProviderID,
		"email":      user.Email,
		"role":       user.Role,
	})
}

// handleLookupUser resolves a provider subject id through the identity
// provider. The optional provider query parameter selects a non-default one.
func (s *Server) handleLookupUser(c *gin.Context) {
	identity, found, err := s.deps.Auth.LookupByID(c.Request.Context(), c.Param("id"), c.Query("provider"))
	if errors.Is(err, auth.ErrProviderNotFound) {
		abort(c, http.StatusBadRequest, "invalid_request", "unknown provider")
		return
	}
	if err != nil {
		s.fail(c, err, "lookup subject")
		return
	}
	if !found {
		abort(c, http.StatusNotFound, "not_found", "unknown subject")
		return
	}

	c.JSON(http.StatusOK, identityResponse{
		ID:            identity.ID,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Role:          identity.EffectiveRole(),
		Provider:      identity.Provider,
	})
}

type deleteUserRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
}

// handleDeleteUser removes the provider subject and the local record, and
// drops any cached memberships.
func (s *Server) handleDeleteUser(c *gin.Context) {
	userID := c.Param("id")

	var req deleteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err := s.deps.Auth.DeleteUser(c.Request.Context(), req.SubjectID, "")
	if errors.Is(err, auth.ErrCapabilityUnsupported) {
		abort(c, http.StatusNotImplemented, "capability_unsupported", "provider cannot delete users")
		return
	}
	if err != nil {
		s.fail(c, err, "delete subject")
		return
	}

	if err := s.deps.Users.Delete(c.Request.Context(), userID); err != nil {
		s.fail(c, err, "delete user record")
		return
	}
	s.invalidateMemberships(c, userID)
	c.Status(http.StatusNoContent)
}

type ingestEventRequest struct {
	Type    string         `json:"type" binding:"required"`
	Payload map[string]any `json:"payload"`
}

// handleIngestEvent accepts a machine-submitted event for the key's
// tenant.
func (s *Server) handleIngestEvent(c *gin.Context) {
	identity, _ := auth.IdentityFromContext(c.Request.Context())

	var req ingestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.logger.WithContext(c.Request.Context()).Info("event accepted",
		observability.String("tenant_id", identity.TenantID),
		observability.String("type", req.Type),
		observability.String("key_id", identity.ID),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"tenant_id": identity.TenantID,
		"type":      req.Type,
	})
}

func keyResponse(key *apikey.Key) apiKeyResponse {
	resp := apiKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		TenantID:  key.TenantID,
		Active:    key.Active,
		CreatedAt: key.CreatedAt,
	}
	if !key.ExpiresAt.IsZero() {
		expiresAt := key.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

// scopedTo verifies the request's tenant scope matches tenantID.
func (s *Server) scopedTo(c *gin.Context, tenantID string) bool {
	scope := c.GetHeader(s.deps.Config.Tenant.Header)
	if scope == "" {
		abort(c, http.StatusBadRequest, "invalid_request", "tenant scope header required")
		return false
	}
	if scope != tenantID {
		abort(c, http.StatusForbidden, auth.ReasonAccessDenied, "request scope does not match the target tenant")
		return false
	}
	return true
}

// requireScope returns the scoped tenant id, rejecting unscoped requests.
func (s *Server) requireScope(c *gin.Context) (string, bool) {
	scope := c.GetHeader(s.deps.Config.Tenant.Header)
	if scope == "" {
		abort(c, http.StatusBadRequest, "invalid_request", "tenant scope header required")
		return "", false
	}
	return scope, true
}

func (s *Server) invalidateMemberships(c *gin.Context, userID string) {
	if err := s.deps.Checker.Invalidate(c.Request.Context(), userID); err != nil {
		s.logger.Warn("membership invalidation failed",
			observability.String("user_id", userID),
			observability.Error(err))
	}
}

// fail logs the detailed error and answers with an opaque internal_error.
func (s *Server) fail(c *gin.Context, err error, op string) {
	s.logger.WithContext(c.Request.Context()).Error(op+" failed",
		observability.Error(err))
	abort(c, http.StatusInternalServerError, auth.ReasonInternalError, "internal error")
}

func abort(c *gin.Context, status int, reason, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   reason,
		"message": message,
	})
}
