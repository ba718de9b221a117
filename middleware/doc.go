// Package middleware exposes HTTP adapters over the tenantauth request
// gate.
//
// # Guards
//
//   - [Guard]: any member of the token's organization passes.
//   - [RequireRole]: membership plus a minimum role.
//
// Each guard reads the Authorization header, calls Engine.Authorize,
// and injects the resulting SecurityContext into the request context
// where handlers read it back with tenantauth.SecurityFromContext.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authorization logic itself; all decisions are delegated to
// Engine.Authorize, and every rejection is an undifferentiated 401.
package middleware
