package session

// Session is one refresh lineage: the identity it belongs to, the
// organization the tokens are scoped to, and the hash of the currently
// valid refresh secret. Rotation replaces RefreshHash in place, so the
// SessionID is stable across the lineage and deleting the record
// revokes every token ever minted from it.
//
// Role is the role at issuance time, kept for audit trails. The engine
// re-resolves the membership on refresh and never trusts this field.
type Session struct {
	SessionID  string
	IdentityID string
	OrgID      string

	Role string

	RefreshHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
