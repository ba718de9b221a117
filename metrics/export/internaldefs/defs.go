package internaldefs

import (
	"github.com/hexleaf/tenantauth"
)

// CounterDef binds one engine counter to its exported metric name.
type CounterDef struct {
	ID   tenantauth.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine histogram to its exported metric name.
type HistogramDef struct {
	ID   tenantauth.MetricID
	Name string
	Help string
}

// CounterDefs is the shared counter catalog. Both exporters render from
// it so metric names never diverge between backends.
var CounterDefs = []CounterDef{
	{ID: tenantauth.MetricLoginSuccess, Name: "tenantauth_login_success_total", Help: "Successful login attempts."},
	{ID: tenantauth.MetricLoginFailure, Name: "tenantauth_login_failure_total", Help: "Failed login attempts."},
	{ID: tenantauth.MetricLoginLockedOut, Name: "tenantauth_login_locked_out_total", Help: "Login attempts refused by the lockout tracker."},
	{ID: tenantauth.MetricRegisterSuccess, Name: "tenantauth_register_success_total", Help: "Successful registrations."},
	{ID: tenantauth.MetricRegisterDuplicate, Name: "tenantauth_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: tenantauth.MetricRegisterThrottled, Name: "tenantauth_register_throttled_total", Help: "Registrations refused by the abuse throttle."},
	{ID: tenantauth.MetricRefreshSuccess, Name: "tenantauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: tenantauth.MetricRefreshFailure, Name: "tenantauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: tenantauth.MetricRefreshReuseDetected, Name: "tenantauth_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: tenantauth.MetricAuthorizeAccepted, Name: "tenantauth_authorize_accepted_total", Help: "Requests accepted by the authorization gate."},
	{ID: tenantauth.MetricAuthorizeRejected, Name: "tenantauth_authorize_rejected_total", Help: "Requests rejected by the authorization gate."},
	{ID: tenantauth.MetricMembershipDenied, Name: "tenantauth_membership_denied_total", Help: "Gate rejections caused by a missing membership."},
	{ID: tenantauth.MetricPasswordRehash, Name: "tenantauth_password_rehash_total", Help: "Credentials transparently rehashed on login."},
	{ID: tenantauth.MetricPasswordChangeSuccess, Name: "tenantauth_password_change_success_total", Help: "Successful password changes."},
	{ID: tenantauth.MetricPasswordChangeInvalidOld, Name: "tenantauth_password_change_invalid_old_total", Help: "Password change attempts with invalid old password."},
	{ID: tenantauth.MetricPasswordChangeReuseRejected, Name: "tenantauth_password_change_reuse_rejected_total", Help: "Password change attempts rejected for reuse."},
	{ID: tenantauth.MetricLogout, Name: "tenantauth_logout_total", Help: "Single-session logout operations."},
	{ID: tenantauth.MetricLogoutAll, Name: "tenantauth_logout_all_total", Help: "Logout-all operations."},
	{ID: tenantauth.MetricSessionCreated, Name: "tenantauth_session_created_total", Help: "Created refresh sessions."},
	{ID: tenantauth.MetricSessionInvalidated, Name: "tenantauth_session_invalidated_total", Help: "Invalidated refresh sessions."},
}

// HistogramDefs is the shared histogram catalog.
var HistogramDefs = []HistogramDef{
	{ID: tenantauth.MetricAuthorizeLatency, Name: "tenantauth_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's fixed millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are attribute-safe renderings of the bounds for
// backends that reject dots in label values.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets widens a snapshot slice into the fixed bucket array,
// tolerating short or missing slices.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
