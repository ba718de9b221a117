package password

import (
	"fmt"
	"unicode"
)

// Policy describes the composition rules a new password must satisfy.
// The zero value accepts everything; use DefaultPolicy for the portal
// defaults.
type Policy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy returns the portal's standard composition rules.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:    10,
		MaxLength:    128,
		RequireUpper: true,
		RequireLower: true,
		RequireDigit: true,
	}
}

// Validate checks password against every rule and returns the full list
// of violations, one message per unmet rule, so a signup form can show
// them all at once. An empty slice means the password is acceptable.
// Length is counted in bytes, matching what the hasher consumes.
func (p Policy) Validate(password string) []string {
	var violations []string

	if p.MinLength > 0 && len(password) < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		violations = append(violations, fmt.Sprintf("must be at most %d characters", p.MaxLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if p.RequireUpper && !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if p.RequireLower && !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, "must contain a digit")
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, "must contain a special character")
	}

	return violations
}
