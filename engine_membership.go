package tenantauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hexleaf/tenantauth/role"
)

// VerifyMembership resolves the membership joining identityID to orgID.
// An absent pair returns [ErrNotMember]; membership is the only thing
// that grants access to an organization's data.
func (e *Engine) VerifyMembership(ctx context.Context, identityID, orgID string) (MembershipRecord, error) {
	if e == nil || e.directory == nil {
		return MembershipRecord{}, ErrEngineNotReady
	}

	membership, err := e.directory.FindMembership(ctx, identityID, orgID)
	if err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "membership resolution failed",
				slog.String("identity_id", identityID),
				slog.String("org_id", orgID))
			return MembershipRecord{}, ErrNotMember
		}
		return MembershipRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return membership, nil
}

// HasRoleOrHigher reports whether the identity holds requiredRole or a
// role above it in the given organization. Any failure, including a
// backend outage or an unknown role string, reads as false.
func (e *Engine) HasRoleOrHigher(ctx context.Context, identityID, orgID, requiredRole string) bool {
	if e == nil || e.directory == nil {
		return false
	}

	membership, err := e.directory.FindMembership(ctx, identityID, orgID)
	if err != nil {
		if !errors.Is(err, ErrMembershipNotFound) {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "membership lookup failed during role check",
				slog.String("identity_id", identityID),
				slog.String("org_id", orgID))
		}
		return false
	}

	return role.AtLeast(membership.Role, requiredRole)
}

// ListOrganizationsForIdentity returns every membership the identity
// holds, one per organization.
func (e *Engine) ListOrganizationsForIdentity(ctx context.Context, identityID string) ([]MembershipRecord, error) {
	if e == nil || e.directory == nil {
		return nil, ErrEngineNotReady
	}

	memberships, err := e.directory.ListMembershipsForIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return memberships, nil
}

// ListMembersOfOrganization returns the organization's memberships in
// join order, oldest first.
func (e *Engine) ListMembersOfOrganization(ctx context.Context, orgID string) ([]MembershipRecord, error) {
	if e == nil || e.directory == nil {
		return nil, ErrEngineNotReady
	}

	memberships, err := e.directory.ListMembershipsForOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].CreatedAt.Before(memberships[j].CreatedAt)
	})

	return memberships, nil
}

// AddMember joins an existing identity to an organization with the
// given role. The pair must not already exist.
func (e *Engine) AddMember(ctx context.Context, orgID, identityID, roleName string) (MembershipRecord, error) {
	if e == nil || e.directory == nil {
		return MembershipRecord{}, ErrEngineNotReady
	}
	if !role.Valid(roleName) {
		return MembershipRecord{}, newValidationError("role", "unknown role")
	}

	if _, err := e.directory.FindOrganizationByID(ctx, orgID); err != nil {
		if errors.Is(err, ErrOrganizationNotFound) {
			return MembershipRecord{}, err
		}
		return MembershipRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if _, err := e.directory.FindIdentityByID(ctx, identityID); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return MembershipRecord{}, err
		}
		return MembershipRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	membership, err := e.directory.CreateMembership(ctx, MembershipRecord{
		IdentityID:     identityID,
		OrganizationID: orgID,
		Role:           roleName,
		CreatedAt:      e.clock(),
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyMember) {
			return MembershipRecord{}, ErrAlreadyMember
		}
		return MembershipRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.emitAudit(ctx, auditEventMemberAdded, true, identityID, orgID, "", nil, func() map[string]string {
		return map[string]string{
			"role": roleName,
		}
	})

	return membership, nil
}

// ChangeMemberRole updates the member's role. Demoting the last owner
// is refused with [ErrLastOwner].
//
// The role takes effect on the next authorized request: the gate reads
// the stored membership, never the token's role claim.
func (e *Engine) ChangeMemberRole(ctx context.Context, orgID, identityID, newRole string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}
	if !role.Valid(newRole) {
		return newValidationError("role", "unknown role")
	}

	membership, err := e.VerifyMembership(ctx, identityID, orgID)
	if err != nil {
		return err
	}
	if membership.Role == newRole {
		return nil
	}

	if membership.Role == role.Owner && newRole != role.Owner {
		if err := e.requireAnotherOwner(ctx, orgID, membership.ID); err != nil {
			return err
		}
	}

	if err := e.directory.UpdateMembershipRole(ctx, membership.ID, newRole); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.emitAudit(ctx, auditEventMemberRoleChanged, true, identityID, orgID, "", nil, func() map[string]string {
		return map[string]string{
			"old_role": membership.Role,
			"new_role": newRole,
		}
	})

	return nil
}

// RemoveMember deletes the membership, ending the identity's access to
// the organization. Removing the last owner is refused with
// [ErrLastOwner].
func (e *Engine) RemoveMember(ctx context.Context, orgID, identityID string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	membership, err := e.VerifyMembership(ctx, identityID, orgID)
	if err != nil {
		return err
	}

	if membership.Role == role.Owner {
		if err := e.requireAnotherOwner(ctx, orgID, membership.ID); err != nil {
			return err
		}
	}

	if err := e.directory.DeleteMembership(ctx, membership.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.emitAudit(ctx, auditEventMemberRemoved, true, identityID, orgID, "", nil, nil)

	return nil
}

// requireAnotherOwner fails with [ErrLastOwner] unless the organization
// has an owner besides the named membership.
func (e *Engine) requireAnotherOwner(ctx context.Context, orgID, excludeMembershipID string) error {
	memberships, err := e.directory.ListMembershipsForOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	for _, m := range memberships {
		if m.ID != excludeMembershipID && m.Role == role.Owner {
			return nil
		}
	}

	return ErrLastOwner
}
