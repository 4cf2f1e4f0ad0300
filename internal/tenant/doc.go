// Package tenant resolves which tenants an authenticated identity may act
// on and gates requests that carry a tenant scope.
//
// Membership sets are read through a TTL cache, so a revoked membership can
// remain visible until the cached entry expires. Callers that need the
// change to take effect immediately invalidate the affected user's entry.
package tenant
