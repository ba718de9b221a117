package tenantauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/hexleaf/tenantauth/internal/lockout"
	"github.com/hexleaf/tenantauth/internal/regthrottle"
	"github.com/hexleaf/tenantauth/jwt"
	"github.com/hexleaf/tenantauth/password"
	"github.com/hexleaf/tenantauth/role"
	"github.com/hexleaf/tenantauth/session"
)

const (
	auditEventLoginSuccess          = "login.success"
	auditEventLoginFailure          = "login.failure"
	auditEventLoginLockedOut        = "login.locked_out"
	auditEventRegisterSuccess       = "register.success"
	auditEventRegisterFailure       = "register.failure"
	auditEventRegisterThrottled     = "register.throttled"
	auditEventRefreshSuccess        = "refresh.success"
	auditEventRefreshInvalid        = "refresh.invalid"
	auditEventRefreshReuseDetected  = "refresh.reuse_detected"
	auditEventAuthorizeRejected     = "authorize.rejected"
	auditEventLogoutSession         = "logout.session"
	auditEventLogoutAll             = "logout.all"
	auditEventPasswordChangeSuccess = "password_change.success"
	auditEventPasswordChangeFailure = "password_change.failure"
	auditEventMemberAdded           = "membership.added"
	auditEventMemberRoleChanged     = "membership.role_changed"
	auditEventMemberRemoved         = "membership.removed"
)

// Engine is the authorization core. Build one with [Builder] at startup
// and share it; all methods are safe for concurrent use.
type Engine struct {
	config       Config
	logger       *slog.Logger
	clock        func() time.Time
	directory    DirectoryProvider
	sessionStore *session.Store
	lockout      *lockout.Tracker
	regThrottle  *regthrottle.Throttle
	audit        *auditDispatcher
	metrics      *Metrics
	hasher       *password.Hasher
	jwtManager   *jwt.Manager
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters and
// histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// emitAudit builds and dispatches one audit event. metadata is a
// closure so the map is only allocated when auditing is on.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, identityID, orgID, sessionID string, cause error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:  e.clock(),
		EventType:  eventType,
		IdentityID: identityID,
		OrgID:      orgID,
		SessionID:  sessionID,
		IP:         clientIPFromContext(ctx),
		Success:    success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}

// Authorize is the single entry point for request authorization. It
// verifies the access token, re-resolves the membership named by the
// token's identity and organization claims, and checks the stored role
// against requiredRole (empty means any member).
//
// Every rejection returns [ErrUnauthorized]. The reason goes to the log
// and the audit trail only, so callers cannot distinguish a forged
// token from a revoked membership.
func (e *Engine) Authorize(ctx context.Context, accessToken, requiredRole string) (*SecurityContext, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := e.clock()
		defer func() {
			e.metrics.Observe(MetricAuthorizeLatency, e.clock().Sub(start))
		}()
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		return nil, e.rejectRequest(ctx, "", "", "", "token_invalid", err)
	}

	membership, err := e.directory.FindMembership(ctx, claims.UID, claims.OID)
	if err != nil {
		e.metricInc(MetricMembershipDenied)
		return nil, e.rejectRequest(ctx, claims.UID, claims.OID, claims.SID, "membership_missing", err)
	}

	if requiredRole != "" && !role.AtLeast(membership.Role, requiredRole) {
		return nil, e.rejectRequest(ctx, claims.UID, claims.OID, claims.SID, "role_insufficient", nil)
	}

	e.metricInc(MetricAuthorizeAccepted)

	return &SecurityContext{
		IdentityID:     claims.UID,
		OrganizationID: claims.OID,
		Role:           membership.Role,
		MembershipID:   membership.ID,
		SessionID:      claims.SID,
	}, nil
}

// rejectRequest records the internal reason and returns the uniform
// gate error.
func (e *Engine) rejectRequest(ctx context.Context, identityID, orgID, sessionID, reason string, cause error) error {
	e.metricInc(MetricAuthorizeRejected)
	e.logger.LogAttrs(ctx, slog.LevelWarn, "request rejected",
		slog.String("reason", reason),
		slog.String("identity_id", identityID),
		slog.String("org_id", orgID),
	)
	e.emitAudit(ctx, auditEventAuthorizeRejected, false, identityID, orgID, sessionID, cause, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return ErrUnauthorized
}
