package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/virelia/tenantgate/internal/auth"
	"github.com/virelia/tenantgate/internal/observability"
)

// OracleConfig holds settings for the identity-backend client.
type OracleConfig struct {
	// Issuer is the expected token issuer.
	Issuer string

	// Audience is the expected token audience; empty skips the check.
	Audience string

	// JWKSURL is the issuer's JSON Web Key Set endpoint.
	JWKSURL string

	// AdminURL is the base URL of the backend's subject-administration API.
	// Empty disables lookup/create/delete.
	AdminURL string

	// HTTPClient overrides the client used for JWKS and admin calls.
	HTTPClient *http.Client
}

// TokenOracle verifies bearer tokens against the issuer's JWKS and performs
// subject administration through the backend's admin API.
type TokenOracle struct {
	cfg    OracleConfig
	keys   jwk.Set
	client *http.Client
	logger observability.Logger
}

// NewTokenOracle creates an oracle whose key set auto-refreshes from the
// configured JWKS endpoint. The context bounds the lifetime of the refresh
// loop.
func NewTokenOracle(ctx context.Context, cfg OracleConfig, logger observability.Logger) (*TokenOracle, error) {
	if cfg.Issuer == "" || cfg.JWKSURL == "" {
		return nil, fmt.Errorf("issuer and JWKS URL are required")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL,
		jwk.WithHTTPClient(client),
		jwk.WithMinRefreshInterval(15*time.Minute),
	); err != nil {
		return nil, fmt.Errorf("register JWKS endpoint: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}

	return &TokenOracle{
		cfg:    cfg,
		keys:   jwk.NewCachedSet(cache, cfg.JWKSURL),
		client: client,
		logger: logger,
	}, nil
}

// VerifyBearerToken verifies a raw token's signature against the cached key
// set and validates issuer, audience, and time claims.
func (o *TokenOracle) VerifyBearerToken(ctx context.Context, raw string) (*Claims, error) {
	options := []jwt.ParseOption{
		jwt.WithContext(ctx),
		jwt.WithKeySet(o.keys),
		jwt.WithIssuer(o.cfg.Issuer),
		jwt.WithValidate(true),
	}
	if o.cfg.Audience != "" {
		options = append(options, jwt.WithAudience(o.cfg.Audience))
	}

	token, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	claims := &Claims{
		Subject:       token.Subject(),
		Email:         stringClaim(token, "email"),
		EmailVerified: boolClaim(token, "email_verified"),
		Role:          stringClaim(token, "role"),
		TenantID:      stringClaim(token, "tenant_id"),
	}
	return claims, nil
}

// GetSubjectByID queries the admin API for a subject. A 404 is absence, not
// a failure.
func (o *TokenOracle) GetSubjectByID(ctx context.Context, id string) (*Claims, bool, error) {
	if o.cfg.AdminURL == "" {
		return nil, false, fmt.Errorf("admin API not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.AdminURL+"/subjects/"+id, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("query subject: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var claims Claims
		if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
			return nil, false, fmt.Errorf("decode subject: %w", err)
		}
		return &claims, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("query subject: unexpected status %d", resp.StatusCode)
	}
}

// createSubjectRequest is the admin API payload for subject creation.
type createSubjectRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	DisplayName   string `json:"display_name,omitempty"`
	Role          string `json:"role,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// CreateSubject provisions a subject through the admin API.
func (o *TokenOracle) CreateSubject(ctx context.Context, email, secret string, opts auth.CreateOptions) (*Claims, error) {
	if o.cfg.AdminURL == "" {
		return nil, fmt.Errorf("admin API not configured")
	}

	payload, err := json.Marshal(createSubjectRequest{
		Email:         email,
		Password:      secret,
		DisplayName:   opts.DisplayName,
		Role:          opts.Role,
		EmailVerified: opts.EmailVerified,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.AdminURL+"/subjects", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("create subject: unexpected status %d", resp.StatusCode)
	}

	var claims Claims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decode subject: %w", err)
	}
	return &claims, nil
}

// DeleteSubject removes a subject through the admin API.
func (o *TokenOracle) DeleteSubject(ctx context.Context, id string) error {
	if o.cfg.AdminURL == "" {
		return fmt.Errorf("admin API not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, o.cfg.AdminURL+"/subjects/"+id, nil)
	if err != nil {
		return err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete subject: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// stringClaim reads a string claim, returning "" when absent or mistyped.
func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// boolClaim reads a boolean claim, returning false when absent or mistyped.
func boolClaim(token jwt.Token, name string) bool {
	v, ok := token.Get(name)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Ensure TokenOracle implements Oracle.
var _ Oracle = (*TokenOracle)(nil)
