package tenantauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ChangePassword replaces the identity's credential after verifying the
// current one. The new password must satisfy the configured policy and
// differ from the old one. On success every session of the identity is
// ended; the change itself stands even if that cleanup fails.
func (e *Engine) ChangePassword(ctx context.Context, identityID, oldPassword, newPassword string) error {
	if e == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	if identityID == "" {
		return newValidationError("identity_id", "must not be empty")
	}

	identity, err := e.directory.FindIdentityByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	verified := e.hasher.Verify(oldPassword, identity.PasswordHash, identity.PasswordAlgorithm)
	if !verified.Valid {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, identityID, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "invalid_old_password",
			}
		})
		return ErrInvalidCredentials
	}

	if newPassword == oldPassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, identityID, "", "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	if violations := e.config.Password.Policy.Validate(newPassword); len(violations) > 0 {
		return newValidationError("password", violations...)
	}

	hash, algorithm, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := e.directory.UpdatePasswordHash(ctx, identityID, hash, algorithm); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, identityID, "", "", err, func() map[string]string {
			return map[string]string{
				"reason": "update_failed",
			}
		})
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// The credential has changed; outstanding sessions carry the old
	// trust and have to go.
	if err := e.LogoutAll(ctx, identityID); err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "session invalidation failed after password change",
			slog.String("identity_id", identityID))
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, identityID, "", "", nil, nil)

	return nil
}
