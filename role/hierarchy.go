package role

// Portal roles, weakest to strongest. The set is fixed at compile time;
// tenants cannot define their own roles.
const (
	Member   = "member"
	Finance  = "finance"
	Reviewer = "reviewer"
	Admin    = "admin"
	Owner    = "owner"
)

// hierarchy is the total order. Index is rank.
var hierarchy = [...]string{Member, Finance, Reviewer, Admin, Owner}

// Rank returns the position of role in the hierarchy, or -1 when the
// string is not a known role. Rank -1 loses every comparison, so a
// corrupted or stale role string can never grant access.
func Rank(role string) int {
	for i, r := range hierarchy {
		if r == role {
			return i
		}
	}
	return -1
}

// Valid reports whether role is one of the portal roles.
func Valid(role string) bool {
	return Rank(role) >= 0
}

// AtLeast reports whether actual dominates required. Unknown strings on
// either side fail the check.
func AtLeast(actual, required string) bool {
	ra := Rank(actual)
	rr := Rank(required)
	if ra < 0 || rr < 0 {
		return false
	}
	return ra >= rr
}

// All returns the roles in hierarchy order, weakest first.
func All() []string {
	out := make([]string, len(hierarchy))
	copy(out, hierarchy[:])
	return out
}
