// Package auth implements the authentication core of tenantgate: the
// provider registry, the dispatching authentication service, credential
// extraction, and the request authentication gates.
//
// Providers implement a single credential-verification scheme behind the
// Provider interface. The set of providers is closed at startup: the
// registry is built once and never mutated, so concurrent lookups need no
// locking. Optional provider capabilities (user creation and deletion) are
// modeled as separate interfaces; the Service checks for them in exactly
// one place and reports absence as ErrCapabilityUnsupported.
//
// The gates attach the verified Identity to the request context. Raw
// credential values never reach logs or responses; use Redact when a
// credential must be referenced in telemetry.
package auth
