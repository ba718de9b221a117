package tenantauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hexleaf/tenantauth/role"
)

const maxEmailLength = 254

// Register creates an identity, bootstraps a fresh organization with
// the registrant as its owner, and logs them straight in.
//
// Input problems come back as a [ValidationError]; a duplicate email is
// [ErrDuplicateEmail]; tripping the abuse throttle is
// [ErrRegistrationThrottled].
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Registration.Enabled {
		return nil, ErrRegistrationDisabled
	}

	email := normalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if violations := e.config.Password.Policy.Validate(req.Password); len(violations) > 0 {
		return nil, newValidationError("password", violations...)
	}

	orgName := strings.TrimSpace(req.OrganizationName)
	if orgName == "" {
		return nil, newValidationError("organization_name", "must not be empty")
	}

	ip := clientIPFromContext(ctx)
	allowed, err := e.regThrottle.Allow(ctx, email, ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !allowed {
		e.metricInc(MetricRegisterThrottled)
		e.emitAudit(ctx, auditEventRegisterThrottled, false, "", "", "", ErrRegistrationThrottled, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return nil, ErrRegistrationThrottled
	}

	hash, algorithm, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	identity, err := e.directory.CreateIdentity(ctx, IdentityRecord{
		Email:             email,
		PasswordHash:      hash,
		PasswordAlgorithm: algorithm,
		CreatedAt:         e.clock(),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", "", ErrDuplicateEmail, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	org, err := e.directory.CreateOrganization(ctx, OrganizationRecord{
		Name:         orgName,
		BillingEmail: email,
		CreatedAt:    e.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	membership, err := e.directory.CreateMembership(ctx, MembershipRecord{
		IdentityID:     identity.ID,
		OrganizationID: org.ID,
		Role:           role.Owner,
		CreatedAt:      e.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	access, refresh, sessionID, err := e.issueTokenPair(ctx, identity.ID, membership)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, identity.ID, org.ID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "token_issue_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, identity.ID, org.ID, sessionID, nil, nil)

	return &RegisterResult{
		IdentityID:     identity.ID,
		OrganizationID: org.ID,
		MembershipID:   membership.ID,
		AccessToken:    access,
		RefreshToken:   refresh,
	}, nil
}

func validateEmail(email string) error {
	if email == "" {
		return newValidationError("email", "must not be empty")
	}
	if len(email) > maxEmailLength {
		return newValidationError("email", "too long")
	}

	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return newValidationError("email", "must be a valid address")
	}

	return nil
}
