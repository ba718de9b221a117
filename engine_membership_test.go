package tenantauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hexleaf/tenantauth/role"
)

func seedSecondIdentity(t *testing.T, env *testEnv, email string) IdentityRecord {
	t.Helper()
	identity, err := env.dir.CreateIdentity(context.Background(), IdentityRecord{
		Email:             email,
		PasswordHash:      "unused",
		PasswordAlgorithm: "argon2id",
	})
	if err != nil {
		t.Fatal(err)
	}
	return identity
}

func TestVerifyMembership(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	membership, err := env.engine.VerifyMembership(context.Background(), reg.IdentityID, reg.OrganizationID)
	if err != nil {
		t.Fatalf("VerifyMembership failed: %v", err)
	}
	if membership.Role != role.Owner {
		t.Fatalf("expected owner, got %q", membership.Role)
	}

	if _, err := env.engine.VerifyMembership(context.Background(), reg.IdentityID, "org-other"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestAddMember(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")
	bob := seedSecondIdentity(t, env, "bob@example.com")

	membership, err := env.engine.AddMember(context.Background(), reg.OrganizationID, bob.ID, role.Reviewer)
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if membership.Role != role.Reviewer {
		t.Fatalf("expected reviewer, got %q", membership.Role)
	}

	if _, err := env.engine.AddMember(context.Background(), reg.OrganizationID, bob.ID, role.Member); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	if _, err := env.engine.AddMember(context.Background(), reg.OrganizationID, bob.ID, "superuser"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown role, got %v", err)
	}
	if _, err := env.engine.AddMember(context.Background(), "org-missing", bob.ID, role.Member); !errors.Is(err, ErrOrganizationNotFound) {
		t.Fatalf("expected ErrOrganizationNotFound, got %v", err)
	}
	if _, err := env.engine.AddMember(context.Background(), reg.OrganizationID, "id-missing", role.Member); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestLastOwnerCannotBeDemotedOrRemoved(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	if err := env.engine.ChangeMemberRole(context.Background(), reg.OrganizationID, reg.IdentityID, role.Admin); !errors.Is(err, ErrLastOwner) {
		t.Fatalf("expected ErrLastOwner on demotion, got %v", err)
	}
	if err := env.engine.RemoveMember(context.Background(), reg.OrganizationID, reg.IdentityID); !errors.Is(err, ErrLastOwner) {
		t.Fatalf("expected ErrLastOwner on removal, got %v", err)
	}

	// With a second owner in place both operations go through.
	bob := seedSecondIdentity(t, env, "bob@example.com")
	if _, err := env.engine.AddMember(context.Background(), reg.OrganizationID, bob.ID, role.Owner); err != nil {
		t.Fatal(err)
	}

	if err := env.engine.ChangeMemberRole(context.Background(), reg.OrganizationID, reg.IdentityID, role.Admin); err != nil {
		t.Fatalf("demotion with second owner failed: %v", err)
	}
	if err := env.engine.RemoveMember(context.Background(), reg.OrganizationID, reg.IdentityID); err != nil {
		t.Fatalf("removal with remaining owner failed: %v", err)
	}
}

func TestChangeMemberRoleValidation(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	if err := env.engine.ChangeMemberRole(context.Background(), reg.OrganizationID, reg.IdentityID, "emperor"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := env.engine.ChangeMemberRole(context.Background(), reg.OrganizationID, "id-nobody", role.Member); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	// No-op change is fine, even for the last owner.
	if err := env.engine.ChangeMemberRole(context.Background(), reg.OrganizationID, reg.IdentityID, role.Owner); err != nil {
		t.Fatalf("no-op role change failed: %v", err)
	}
}

func TestListMembersOfOrganizationSorted(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	base := time.Now()
	for i, email := range []string{"c@example.com", "b@example.com"} {
		identity := seedSecondIdentity(t, env, email)
		if _, err := env.dir.CreateMembership(context.Background(), MembershipRecord{
			IdentityID:     identity.ID,
			OrganizationID: reg.OrganizationID,
			Role:           role.Member,
			CreatedAt:      base.Add(time.Duration(i+1) * time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
	}

	members, err := env.engine.ListMembersOfOrganization(context.Background(), reg.OrganizationID)
	if err != nil {
		t.Fatalf("ListMembersOfOrganization failed: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	for i := 1; i < len(members); i++ {
		if members[i].CreatedAt.Before(members[i-1].CreatedAt) {
			t.Fatal("members not sorted by join time")
		}
	}
}

func TestHasRoleOrHigherFailsClosed(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	if !env.engine.HasRoleOrHigher(context.Background(), reg.IdentityID, reg.OrganizationID, role.Member) {
		t.Fatal("owner should satisfy member requirement")
	}
	if env.engine.HasRoleOrHigher(context.Background(), reg.IdentityID, reg.OrganizationID, "superuser") {
		t.Fatal("unknown required role must fail closed")
	}
	if env.engine.HasRoleOrHigher(context.Background(), reg.IdentityID, "org-other", role.Member) {
		t.Fatal("non-member must fail closed")
	}

	env.dir.failFindMembership = true
	if env.engine.HasRoleOrHigher(context.Background(), reg.IdentityID, reg.OrganizationID, role.Member) {
		t.Fatal("backend failure must fail closed")
	}
}
