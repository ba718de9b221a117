package tenantauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hexleaf/tenantauth/password"
	"github.com/hexleaf/tenantauth/role"

	"golang.org/x/crypto/bcrypt"
)

func TestLoginSuccessSingleMembership(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	result, err := env.engine.Login(context.Background(), "alice@example.com", testPassword, "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.IdentityID != reg.IdentityID {
		t.Fatalf("identity mismatch: got %q want %q", result.IdentityID, reg.IdentityID)
	}
	if result.OrganizationID != reg.OrganizationID {
		t.Fatalf("organization mismatch: got %q want %q", result.OrganizationID, reg.OrganizationID)
	}
	if result.Role != role.Owner {
		t.Fatalf("expected owner, got %q", result.Role)
	}
	if _, err := env.engine.Authorize(context.Background(), result.AccessToken, ""); err != nil {
		t.Fatalf("Authorize with fresh token failed: %v", err)
	}
}

func TestLoginEmailIsCaseInsensitive(t *testing.T) {
	env := newTestEngine(t, nil)
	env.register(t, "alice@example.com", testPassword, "Acme")

	if _, err := env.engine.Login(context.Background(), "  Alice@Example.COM ", testPassword, ""); err != nil {
		t.Fatalf("Login with unnormalized email failed: %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEngine(t, nil)
	env.register(t, "alice@example.com", testPassword, "Acme")

	_, unknownErr := env.engine.Login(context.Background(), "nobody@example.com", testPassword, "")
	_, wrongErr := env.engine.Login(context.Background(), "alice@example.com", "wrong-password-1X", "")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("error messages differ: %q vs %q", unknownErr, wrongErr)
	}
}

func TestLoginRequiresOrgWithMultipleMemberships(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	org2, err := env.dir.CreateOrganization(context.Background(), OrganizationRecord{Name: "Beta"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.dir.CreateMembership(context.Background(), MembershipRecord{
		IdentityID:     reg.IdentityID,
		OrganizationID: org2.ID,
		Role:           role.Finance,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.engine.Login(context.Background(), "alice@example.com", testPassword, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without org, got %v", err)
	}

	result, err := env.engine.Login(context.Background(), "alice@example.com", testPassword, org2.ID)
	if err != nil {
		t.Fatalf("Login into second org failed: %v", err)
	}
	if result.Role != role.Finance {
		t.Fatalf("expected finance role in second org, got %q", result.Role)
	}
}

func TestLoginNotMemberOfNamedOrg(t *testing.T) {
	env := newTestEngine(t, nil)
	env.register(t, "alice@example.com", testPassword, "Acme")

	if _, err := env.engine.Login(context.Background(), "alice@example.com", testPassword, "org-unrelated"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

/*
====================================
LOCKOUT
====================================
*/

func TestLockoutAfterMaxFailedAttempts(t *testing.T) {
	env := newTestEngine(t, nil)
	env.register(t, "alice@example.com", testPassword, "Acme")

	for i := 0; i < 5; i++ {
		if _, err := env.engine.Login(context.Background(), "alice@example.com", "wrong-password-1X", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// Sixth attempt is refused before password verification, even with
	// the correct password.
	if _, err := env.engine.Login(context.Background(), "alice@example.com", testPassword, ""); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut, got %v", err)
	}

	env.mr.FastForward(2 * time.Minute)

	if _, err := env.engine.Login(context.Background(), "alice@example.com", testPassword, ""); err != nil {
		t.Fatalf("login after lockout window failed: %v", err)
	}
}

func TestLockoutCounterResetsOnSuccess(t *testing.T) {
	env := newTestEngine(t, nil)
	env.register(t, "alice@example.com", testPassword, "Acme")

	for i := 0; i < 4; i++ {
		_, _ = env.engine.Login(context.Background(), "alice@example.com", "wrong-password-1X", "")
	}
	if _, err := env.engine.Login(context.Background(), "alice@example.com", testPassword, ""); err != nil {
		t.Fatalf("login under threshold failed: %v", err)
	}

	// The slate is clean again: five more attempts before the lock.
	for i := 0; i < 4; i++ {
		_, _ = env.engine.Login(context.Background(), "alice@example.com", "wrong-password-1X", "")
	}
	if _, err := env.engine.Login(context.Background(), "alice@example.com", testPassword, ""); err != nil {
		t.Fatalf("login after reset failed: %v", err)
	}
}

/*
====================================
REFRESH ROTATION AND REUSE
====================================
*/

func TestRefreshRotatesTokens(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	result, err := env.engine.Refresh(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if result.RefreshToken == reg.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if _, err := env.engine.Authorize(context.Background(), result.AccessToken, role.Owner); err != nil {
		t.Fatalf("Authorize with refreshed token failed: %v", err)
	}
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	rotated, err := env.engine.Refresh(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// Replaying the superseded token is the reuse signal.
	if _, err := env.engine.Refresh(context.Background(), reg.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}

	// The whole family is gone, including the legitimate successor.
	if _, err := env.engine.Refresh(context.Background(), rotated.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for revoked family, got %v", err)
	}

	// The outstanding access token still works until it expires; the
	// gate does not consult the session store.
	if _, err := env.engine.Authorize(context.Background(), rotated.AccessToken, ""); err != nil {
		t.Fatalf("Authorize within access TTL failed: %v", err)
	}
	env.clock.Advance(6 * time.Minute)
	if _, err := env.engine.Authorize(context.Background(), rotated.AccessToken, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after access TTL, got %v", err)
	}
}

func TestRefreshMalformedToken(t *testing.T) {
	env := newTestEngine(t, nil)

	if _, err := env.engine.Refresh(context.Background(), "not-a-refresh-token"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
}

func TestRefreshAfterMembershipRevoked(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	env.dir.removeMembershipFor(reg.IdentityID, reg.OrganizationID)

	if _, err := env.engine.Refresh(context.Background(), reg.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	if err := env.dir.UpdateMembershipRole(context.Background(), reg.MembershipID, role.Reviewer); err != nil {
		t.Fatal(err)
	}

	result, err := env.engine.Refresh(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if result.Role != role.Reviewer {
		t.Fatalf("expected refreshed role reviewer, got %q", result.Role)
	}
}

/*
====================================
LOGOUT
====================================
*/

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	sc, err := env.engine.Authorize(context.Background(), reg.AccessToken, "")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}

	if err := env.engine.Logout(context.Background(), sc.SessionID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	// Idempotent.
	if err := env.engine.Logout(context.Background(), sc.SessionID); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}

	if _, err := env.engine.Refresh(context.Background(), reg.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after logout, got %v", err)
	}
}

func TestRevokeEndsSessionByRefreshToken(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	if err := env.engine.Revoke(context.Background(), reg.RefreshToken); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	// Idempotent.
	if err := env.engine.Revoke(context.Background(), reg.RefreshToken); err != nil {
		t.Fatalf("second Revoke failed: %v", err)
	}

	if _, err := env.engine.Refresh(context.Background(), reg.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after revoke, got %v", err)
	}

	if err := env.engine.Revoke(context.Background(), "%%%not-a-token"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for malformed token, got %v", err)
	}
}

func TestLogoutAllEndsEverySession(t *testing.T) {
	env := newTestEngine(t, nil)
	reg := env.register(t, "alice@example.com", testPassword, "Acme")

	second, err := env.engine.Login(context.Background(), "alice@example.com", testPassword, "")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	if err := env.engine.LogoutAll(context.Background(), reg.IdentityID); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}

	for name, token := range map[string]string{"first": reg.RefreshToken, "second": second.RefreshToken} {
		if _, err := env.engine.Refresh(context.Background(), token); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("%s session: expected ErrRefreshInvalid, got %v", name, err)
		}
	}
}

/*
====================================
LEGACY HASH MIGRATION
====================================
*/

func TestLoginMigratesBcryptHash(t *testing.T) {
	env := newTestEngine(t, nil)

	bcryptHash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	identity, err := env.dir.CreateIdentity(context.Background(), IdentityRecord{
		Email:             "legacy@example.com",
		PasswordHash:      string(bcryptHash),
		PasswordAlgorithm: password.AlgorithmBcrypt,
	})
	if err != nil {
		t.Fatal(err)
	}
	org, err := env.dir.CreateOrganization(context.Background(), OrganizationRecord{Name: "Legacy Co"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.dir.CreateMembership(context.Background(), MembershipRecord{
		IdentityID:     identity.ID,
		OrganizationID: org.ID,
		Role:           role.Member,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.engine.Login(context.Background(), "legacy@example.com", testPassword, ""); err != nil {
		t.Fatalf("login with bcrypt credential failed: %v", err)
	}

	migrated, err := env.dir.FindIdentityByID(context.Background(), identity.ID)
	if err != nil {
		t.Fatal(err)
	}
	if migrated.PasswordAlgorithm != password.AlgorithmArgon2id {
		t.Fatalf("expected migrated algorithm argon2id, got %q", migrated.PasswordAlgorithm)
	}
	if migrated.PasswordHash == string(bcryptHash) {
		t.Fatal("stored hash was not replaced")
	}

	// The migrated credential still verifies.
	if _, err := env.engine.Login(context.Background(), "legacy@example.com", testPassword, ""); err != nil {
		t.Fatalf("login after migration failed: %v", err)
	}
}
