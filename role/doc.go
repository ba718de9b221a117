// Package role defines the fixed portal role hierarchy and the dominance
// comparison used by every authorization decision.
package role
