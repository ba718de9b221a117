// Package session provides Redis-backed refresh-session persistence and
// the atomic rotation primitive behind refresh-token reuse detection.
//
// # Binary encoding
//
// Sessions are stored as a compact binary blob (see encoder.go). The
// rotation Lua script parses the blob inside Redis so the
// compare-and-swap happens in one atomic step.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session]
// model. It does NOT interpret access tokens, resolve memberships, or
// enforce authorization policy; those responsibilities belong to the
// engine.
//
// # What this package must NOT do
//
//   - Import tenantauth or jwt (no upward imports).
//   - Make application-level authorization decisions.
//   - Store plaintext refresh secrets in [Session] fields.
package session
