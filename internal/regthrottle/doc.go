// Package regthrottle rate-limits account registration per email
// address and per client IP over fixed windows.
package regthrottle
