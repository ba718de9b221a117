package tenantauth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is the single error the request gate returns for
	// every rejection, whatever the internal cause. Detail goes to the
	// log and the audit trail, never to the caller.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login for unknown email and
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLockedOut is returned when the identity has exceeded the
	// failed-attempt threshold.
	ErrLockedOut = errors.New("account temporarily locked")
	// ErrValidation marks input errors safe to show to end users. Use
	// errors.Is against it; the concrete value is a *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration marks startup misconfiguration.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrRegistrationDisabled is returned by Register when the flow is off.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrRegistrationThrottled is returned when the abuse throttle trips.
	ErrRegistrationThrottled = errors.New("registration rate limited")
	// ErrRefreshInvalid is returned for malformed, unknown, or expired
	// refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when a superseded refresh token is
	// replayed. The session family is already revoked at that point.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrNotMember is returned by membership CRUD when the (identity,
	// organization) pair does not exist. The gate never surfaces it.
	ErrNotMember = errors.New("not a member of organization")
	// ErrAlreadyMember is returned by AddMember when the pair exists.
	ErrAlreadyMember = errors.New("already a member of organization")
	// ErrLastOwner is returned when a change would leave an organization
	// with no owner.
	ErrLastOwner = errors.New("organization requires at least one owner")
	// ErrPasswordReuse is returned by ChangePassword when the new
	// password equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrDuplicateEmail is returned by Register for an email that
	// already has an identity.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrIdentityNotFound is returned by DirectoryProvider lookups for
	// an absent identity.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrOrganizationNotFound is returned by DirectoryProvider lookups
	// for an absent organization.
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrMembershipNotFound is returned by DirectoryProvider lookups for
	// an absent membership.
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrEngineNotReady is returned by operations on an engine whose
	// Build failed or that has been closed.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrBackendUnavailable wraps Redis or directory transport failures
	// surfaced by non-gate operations.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// ValidationError carries the per-field violation list for an input the
// caller can fix. It unwraps to [ErrValidation].
type ValidationError struct {
	Field      string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field string, violations ...string) error {
	return &ValidationError{Field: field, Violations: violations}
}
