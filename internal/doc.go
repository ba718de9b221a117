// Package internal contains helper utilities that are intentionally private to tenantauth,
// including secure random generation and refresh-token encoding.
//
// # Sub-packages
//
//   - lockout: Redis-backed failed-login attempt tracker
//   - regthrottle: registration abuse throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public tenantauth API.
//   - Be imported by any package outside the tenantauth module.
package internal
