package tenantauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hexleaf/tenantauth/internal"
	"github.com/hexleaf/tenantauth/session"
	"github.com/redis/go-redis/v9"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login verifies the email/password pair and, on success, issues an
// access token scoped to one organization plus a rotating refresh token.
//
// When orgID is empty and the identity belongs to exactly one
// organization, that membership is used. With several memberships the
// caller must name the organization explicitly.
//
// Unknown email and wrong password both return [ErrInvalidCredentials];
// a locked identity returns [ErrLockedOut] before the password is even
// looked at.
func (e *Engine) Login(ctx context.Context, email, plaintext, orgID string) (*LoginResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)

	locked, err := e.lockout.IsLockedOut(ctx, email)
	if err != nil {
		// Counter backend down: the gate stays shut.
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if locked {
		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, auditEventLoginLockedOut, false, "", "", "", ErrLockedOut, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return nil, ErrLockedOut
	}

	if plaintext == "" {
		return nil, e.failLogin(ctx, email, "", "empty_password")
	}

	identity, err := e.directory.FindIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, e.failLogin(ctx, email, "", "identity_not_found")
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	verified := e.hasher.Verify(plaintext, identity.PasswordHash, identity.PasswordAlgorithm)
	if !verified.Valid {
		return nil, e.failLogin(ctx, email, identity.ID, "password_mismatch")
	}

	if err := e.lockout.RecordSuccess(ctx, email); err != nil {
		// Best effort. A stale counter only shortens the runway for the
		// next genuine failure streak.
		e.logger.LogAttrs(ctx, slog.LevelWarn, "lockout counter reset failed",
			slog.String("identity_id", identity.ID))
	}

	if e.config.Password.UpgradeOnLogin && verified.NeedsRehash {
		// Rehash persistence is best-effort and must not block login.
		if err := e.directory.UpdatePasswordHash(ctx, identity.ID, verified.NewHash, verified.NewAlgorithm); err != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "password rehash persistence failed",
				slog.String("identity_id", identity.ID))
		} else {
			e.metricInc(MetricPasswordRehash)
		}
	}

	membership, err := e.resolveLoginMembership(ctx, identity.ID, orgID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.ID, orgID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "membership_resolution",
			}
		})
		return nil, err
	}

	access, refresh, sessionID, err := e.issueTokenPair(ctx, identity.ID, membership)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.ID, membership.OrganizationID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "token_issue_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, identity.ID, membership.OrganizationID, sessionID, nil, nil)

	return &LoginResult{
		IdentityID:     identity.ID,
		OrganizationID: membership.OrganizationID,
		Role:           membership.Role,
		AccessToken:    access,
		RefreshToken:   refresh,
	}, nil
}

// failLogin counts one failed attempt and returns the uniform
// credential error.
func (e *Engine) failLogin(ctx context.Context, email, identityID, reason string) error {
	if _, err := e.lockout.RecordFailure(ctx, email); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, identityID, "", "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"email":  email,
			"reason": reason,
		}
	})
	return ErrInvalidCredentials
}

func (e *Engine) resolveLoginMembership(ctx context.Context, identityID, orgID string) (MembershipRecord, error) {
	if orgID != "" {
		membership, err := e.directory.FindMembership(ctx, identityID, orgID)
		if err != nil {
			if errors.Is(err, ErrMembershipNotFound) {
				return MembershipRecord{}, ErrNotMember
			}
			return MembershipRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return membership, nil
	}

	memberships, err := e.directory.ListMembershipsForIdentity(ctx, identityID)
	if err != nil {
		return MembershipRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	switch len(memberships) {
	case 0:
		return MembershipRecord{}, ErrNotMember
	case 1:
		return memberships[0], nil
	default:
		return MembershipRecord{}, newValidationError("organization_id",
			"identity belongs to multiple organizations; one must be specified")
	}
}

// issueTokenPair creates a refresh session and mints the matching
// access token.
func (e *Engine) issueTokenPair(ctx context.Context, identityID string, membership MembershipRecord) (access, refresh, sessionID string, err error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", "", "", err
	}
	sessionID = sid.String()

	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return "", "", "", err
	}

	now := e.clock()
	sess := &session.Session{
		SessionID:   sessionID,
		IdentityID:  identityID,
		OrgID:       membership.OrganizationID,
		Role:        membership.Role,
		RefreshHash: internal.HashRefreshSecret(secret),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(e.config.JWT.RefreshTTL).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess, e.config.JWT.RefreshTTL); err != nil {
		return "", "", "", err
	}

	access, err = e.jwtManager.CreateAccess(identityID, membership.OrganizationID, membership.ID, membership.Role, sessionID)
	if err != nil {
		return "", "", "", err
	}

	refresh, err = internal.EncodeRefreshToken(sessionID, secret)
	if err != nil {
		return "", "", "", err
	}

	return access, refresh, sessionID, nil
}

// Refresh rotates the refresh token and issues a fresh access token.
// Exactly one of any number of concurrent calls with the same token
// wins; the rest see [ErrRefreshReuse], and a replayed older token
// revokes the whole session family.
//
// The membership is re-resolved on every refresh, so a role change
// lands in the next access token and a revoked membership ends the
// session.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	sessionID, providedSecret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "decode_failed",
			}
		})
		return nil, ErrRefreshInvalid
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	sess, err := e.sessionStore.RotateRefreshHash(
		ctx,
		sessionID,
		internal.HashRefreshSecret(providedSecret),
		internal.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			e.metricInc(MetricRefreshReuseDetected)
			e.metricInc(MetricSessionInvalidated)
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", "", sessionID, ErrRefreshReuse, nil)
			return nil, ErrRefreshReuse
		case errors.Is(err, redis.Nil):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", sessionID, ErrRefreshInvalid, func() map[string]string {
				return map[string]string{
					"reason": "session_not_found",
				}
			})
			return nil, ErrRefreshInvalid
		default:
			e.metricInc(MetricRefreshFailure)
			return nil, err
		}
	}

	membership, err := e.directory.FindMembership(ctx, sess.IdentityID, sess.OrgID)
	if err != nil {
		// Membership gone since the session was minted: the session has
		// no business surviving it.
		_ = e.sessionStore.Delete(ctx, sessionID)
		e.metricInc(MetricSessionInvalidated)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.IdentityID, sess.OrgID, sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "membership_revoked",
			}
		})
		return nil, ErrRefreshInvalid
	}

	access, err := e.jwtManager.CreateAccess(sess.IdentityID, membership.OrganizationID, membership.ID, membership.Role, sessionID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	refresh, err := internal.EncodeRefreshToken(sessionID, nextSecret)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, sess.IdentityID, membership.OrganizationID, sessionID, nil, nil)

	return &LoginResult{
		IdentityID:     sess.IdentityID,
		OrganizationID: membership.OrganizationID,
		Role:           membership.Role,
		AccessToken:    access,
		RefreshToken:   refresh,
	}, nil
}

// Logout ends one session. Logging out an already-ended session is a
// no-op.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.sessionStore.Delete(ctx, sessionID)
	if err == nil {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutSession, err == nil, "", "", sessionID, err, nil)
	return err
}

// Revoke ends the session a refresh token belongs to. It is the
// token-holder's form of [Engine.Logout]: the caller presents the
// refresh token itself instead of a session id. Revoking an already
// rotated-away or ended token is a no-op.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	sessionID, _, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return ErrRefreshInvalid
	}

	return e.Logout(ctx, sessionID)
}

// LogoutAll ends every session of an identity across all organizations.
func (e *Engine) LogoutAll(ctx context.Context, identityID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.sessionStore.DeleteAllForIdentity(ctx, identityID)
	if err == nil {
		e.metricInc(MetricLogoutAll)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutAll, err == nil, identityID, "", "", err, nil)
	return err
}
