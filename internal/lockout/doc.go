// Package lockout tracks consecutive failed login attempts per identity
// and enforces a temporary lock once the configured threshold is hit.
package lockout
