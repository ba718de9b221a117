package tenantauth

import (
	"context"
	"time"
)

// IdentityRecord is one person's login credential row. An identity is
// global; organization access always goes through a membership.
type IdentityRecord struct {
	ID                string
	Email             string
	PasswordHash      string
	PasswordAlgorithm string
	CreatedAt         time.Time
}

// OrganizationRecord is one tenant.
type OrganizationRecord struct {
	ID           string
	Name         string
	BillingEmail string
	CreatedAt    time.Time
}

// MembershipRecord joins an identity to an organization with exactly
// one role. The (IdentityID, OrganizationID) pair is unique; the same
// identity may hold different roles in different organizations.
type MembershipRecord struct {
	ID             string
	IdentityID     string
	OrganizationID string
	Role           string
	CreatedAt      time.Time
}

// SecurityContext is what a request carries after passing the gate:
// who, in which organization, with what role. Role comes from the
// membership as stored right now, not from the token.
type SecurityContext struct {
	IdentityID     string
	OrganizationID string
	Role           string
	MembershipID   string
	SessionID      string
}

// DirectoryProvider is the persistence interface the host application
// implements. The engine is the only caller that interprets the
// results; the provider just stores and looks up rows.
//
// Lookup methods must return (or wrap) [ErrIdentityNotFound],
// [ErrOrganizationNotFound], or [ErrMembershipNotFound] when the row is
// absent, so the engine can tell "absent" from "broken". CreateIdentity
// must return [ErrDuplicateEmail] for an email that already exists, and
// CreateMembership [ErrAlreadyMember] for an existing pair.
type DirectoryProvider interface {
	FindIdentityByEmail(ctx context.Context, email string) (IdentityRecord, error)
	FindIdentityByID(ctx context.Context, identityID string) (IdentityRecord, error)
	CreateIdentity(ctx context.Context, identity IdentityRecord) (IdentityRecord, error)
	UpdatePasswordHash(ctx context.Context, identityID, hash, algorithm string) error

	CreateOrganization(ctx context.Context, org OrganizationRecord) (OrganizationRecord, error)
	FindOrganizationByID(ctx context.Context, orgID string) (OrganizationRecord, error)

	CreateMembership(ctx context.Context, membership MembershipRecord) (MembershipRecord, error)
	FindMembership(ctx context.Context, identityID, orgID string) (MembershipRecord, error)
	ListMembershipsForIdentity(ctx context.Context, identityID string) ([]MembershipRecord, error)
	ListMembershipsForOrganization(ctx context.Context, orgID string) ([]MembershipRecord, error)
	UpdateMembershipRole(ctx context.Context, membershipID, role string) error
	DeleteMembership(ctx context.Context, membershipID string) error
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email            string
	Password         string
	OrganizationName string
}

// RegisterResult is returned by [Engine.Register]. Registration
// bootstraps a new organization with the registrant as its owner and
// logs them straight in.
type RegisterResult struct {
	IdentityID     string
	OrganizationID string
	MembershipID   string
	AccessToken    string
	RefreshToken   string
}

// LoginResult is returned by [Engine.Login] and [Engine.Refresh].
type LoginResult struct {
	IdentityID     string
	OrganizationID string
	Role           string
	AccessToken    string
	RefreshToken   string
}

// SecurityReport is a read-only snapshot of the engine's security
// posture, returned by [Engine.SecurityReport].
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	Argon2           PasswordConfigReport
	LockoutThreshold int
	LockoutDuration  time.Duration
	AuditEnabled     bool
	MetricsEnabled   bool
}

// PasswordConfigReport contains the argon2 parameters active in the
// engine. Never includes key material.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}
