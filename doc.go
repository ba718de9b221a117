// Package tenantauth is the authorization core for a multi-tenant
// client portal: argon2id credentials with transparent bcrypt
// migration, JWT access tokens scoped to one organization, rotating
// opaque refresh tokens with reuse detection, and a request gate that
// re-resolves membership and role on every call.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// tenantauth is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (SecurityContext, MetricsSnapshot, the
// directory records). Session encoding, lockout counters, and the
// registration throttle live under internal/ and are never exported.
// Persistence of identities, organizations, and memberships belongs to
// the host application behind [DirectoryProvider].
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Put passwords, hashes, or token secrets into errors, logs, or
//     audit events.
//   - Trust the role claim inside an access token. The gate reads the
//     stored membership; the claim is informational.
//
// # Tenancy contract
//
// An identity is global; an organization is a tenant; a membership is
// the only bridge between them. Every authorized request carries
// exactly one organization scope, and removing the membership removes
// the access, whatever tokens are still in flight.
package tenantauth
