package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Extractor pulls a raw credential out of an HTTP request. Each gate is
// configured with the extractor for its credential scheme.
type Extractor func(r *http.Request) (string, bool)

// BearerExtractor extracts a bearer credential from the Authorization header.
func BearerExtractor() Extractor {
	return func(r *http.Request) (string, bool) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			return "", false
		}

		const prefix = "Bearer "
		if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
			return "", false
		}

		token := strings.TrimSpace(auth[len(prefix):])
		return token, token != ""
	}
}

// QueryExtractor extracts a credential from the named query parameter.
func QueryExtractor(param string) Extractor {
	return func(r *http.Request) (string, bool) {
		value := strings.TrimSpace(r.URL.Query().Get(param))
		return value, value != ""
	}
}

// Redact returns a short digest prefix identifying a credential without
// revealing it. Telemetry must carry only redacted values, never raw
// credential material.
func Redact(credential string) string {
	if credential == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(credential))
	return "sha256:" + hex.EncodeToString(sum[:4])
}
