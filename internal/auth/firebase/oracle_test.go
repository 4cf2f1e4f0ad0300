package firebase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virelia/tenantgate/internal/auth"
	"github.com/virelia/tenantgate/internal/observability"
)

const (
	testIssuer   = "https://issuer.example.com/demo"
	testAudience = "demo"
)

// oracleFixture bundles a signing key, a JWKS server, and an admin server.
type oracleFixture struct {
	signKey jwk.Key
	oracle  *TokenOracle
}

func newOracleFixture(t *testing.T, adminHandler http.Handler) *oracleFixture {
	t.Helper()

	rawKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signKey, err := jwk.FromRaw(rawKey)
	require.NoError(t, err)
	require.NoError(t, signKey.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, signKey.Set(jwk.AlgorithmKey, jwa.RS256))

	pubKey, err := signKey.PublicKey()
	require.NoError(t, err)
	keySet := jwk.NewSet()
	require.NoError(t, keySet.AddKey(pubKey))

	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keySet)
	}))
	t.Cleanup(jwksServer.Close)

	adminURL := ""
	if adminHandler != nil {
		adminServer := httptest.NewServer(adminHandler)
		t.Cleanup(adminServer.Close)
		adminURL = adminServer.URL
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	oracle, err := NewTokenOracle(ctx, OracleConfig{
		Issuer:   testIssuer,
		Audience: testAudience,
		JWKSURL:  jwksServer.URL,
		AdminURL: adminURL,
	}, observability.NopLogger())
	require.NoError(t, err)

	return &oracleFixture{signKey: signKey, oracle: oracle}
}

// signToken builds and signs a token with the fixture's key.
func (f *oracleFixture) signToken(t *testing.T, mutate func(b *jwt.Builder)) string {
	t.Helper()

	b := jwt.NewBuilder().
		Subject("sub-1").
		Issuer(testIssuer).
		Audience([]string{testAudience}).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	if mutate != nil {
		mutate(b)
	}

	token, err := b.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, f.signKey))
	require.NoError(t, err)
	return string(signed)
}

func TestTokenOracle_VerifyBearerToken(t *testing.T) {
	f := newOracleFixture(t, nil)

	t.Run("valid token", func(t *testing.T) {
		raw := f.signToken(t, func(b *jwt.Builder) {
			b.Claim("email", "alex@example.com").
				Claim("email_verified", true).
				Claim("role", "admin").
				Claim("tenant_id", "t1")
		})

		claims, err := f.oracle.VerifyBearerToken(context.Background(), raw)
		require.NoError(t, err)
		assert.Equal(t, "sub-1", claims.Subject)
		assert.Equal(t, "alex@example.com", claims.Email)
		assert.True(t, claims.EmailVerified)
		assert.Equal(t, "admin", claims.Role)
		assert.Equal(t, "t1", claims.TenantID)
	})

	t.Run("expired token", func(t *testing.T) {
		raw := f.signToken(t, func(b *jwt.Builder) {
			b.Expiration(time.Now().Add(-time.Minute))
		})

		_, err := f.oracle.VerifyBearerToken(context.Background(), raw)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		raw := f.signToken(t, func(b *jwt.Builder) {
			b.Issuer("https://other-issuer.example.com")
		})

		_, err := f.oracle.VerifyBearerToken(context.Background(), raw)
		assert.Error(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		raw := f.signToken(t, func(b *jwt.Builder) {
			b.Audience([]string{"other"})
		})

		_, err := f.oracle.VerifyBearerToken(context.Background(), raw)
		assert.Error(t, err)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := f.oracle.VerifyBearerToken(context.Background(), "not.a.jwt")
		assert.Error(t, err)
	})

	t.Run("token signed by unknown key", func(t *testing.T) {
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		signKey, err := jwk.FromRaw(otherKey)
		require.NoError(t, err)
		require.NoError(t, signKey.Set(jwk.KeyIDKey, "rogue"))

		token, err := jwt.NewBuilder().
			Subject("sub-1").
			Issuer(testIssuer).
			Audience([]string{testAudience}).
			Expiration(time.Now().Add(time.Hour)).
			Build()
		require.NoError(t, err)
		signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, signKey))
		require.NoError(t, err)

		_, err = f.oracle.VerifyBearerToken(context.Background(), string(signed))
		assert.Error(t, err)
	})
}

func TestTokenOracle_AdminAPI(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /subjects/sub-1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Claims{Subject: "sub-1", Email: "alex@example.com"})
	})
	mux.HandleFunc("GET /subjects/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("POST /subjects", func(w http.ResponseWriter, r *http.Request) {
		var req createSubjectRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Claims{Subject: "sub-new", Email: req.Email, Role: req.Role})
	})
	mux.HandleFunc("DELETE /subjects/sub-1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /subjects/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	f := newOracleFixture(t, mux)

	t.Run("get existing subject", func(t *testing.T) {
		claims, found, err := f.oracle.GetSubjectByID(context.Background(), "sub-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "alex@example.com", claims.Email)
	})

	t.Run("missing subject is absent", func(t *testing.T) {
		_, found, err := f.oracle.GetSubjectByID(context.Background(), "sub-404")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("create subject", func(t *testing.T) {
		claims, err := f.oracle.CreateSubject(context.Background(), "new@example.com", "s3cret",
			auth.CreateOptions{Role: "admin"})
		require.NoError(t, err)
		assert.Equal(t, "sub-new", claims.Subject)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("delete subject", func(t *testing.T) {
		assert.NoError(t, f.oracle.DeleteSubject(context.Background(), "sub-1"))
		assert.Error(t, f.oracle.DeleteSubject(context.Background(), "sub-404"))
	})

	t.Run("admin API not configured", func(t *testing.T) {
		bare := newOracleFixture(t, nil)
		_, _, err := bare.oracle.GetSubjectByID(context.Background(), "sub-1")
		assert.Error(t, err)
	})
}
