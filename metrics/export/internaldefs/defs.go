package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed logins."},
	{ID: goSession.MetricCheckCacheHit, Name: "gosession_check_cache_hit_total", Help: "Identity checks answered from the verdict cache."},
	{ID: goSession.MetricCheckCacheMiss, Name: "gosession_check_cache_miss_total", Help: "Identity checks that called the backend."},
	{ID: goSession.MetricCheckAuthenticated, Name: "gosession_check_authenticated_total", Help: "Backend identity checks that returned a user."},
	{ID: goSession.MetricCheckUnauthenticated, Name: "gosession_check_unauthenticated_total", Help: "Backend identity checks that returned no user."},
	{ID: goSession.MetricCheckError, Name: "gosession_check_error_total", Help: "Backend identity checks that failed."},
	{ID: goSession.MetricRefreshStarted, Name: "gosession_refresh_started_total", Help: "Refresh rounds started."},
	{ID: goSession.MetricRefreshCoalesced, Name: "gosession_refresh_coalesced_total", Help: "Callers that joined an in-flight refresh."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refresh rounds."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed refresh rounds."},
	{ID: goSession.MetricRequestRetried, Name: "gosession_request_retried_total", Help: "Requests retried after a refresh."},
	{ID: goSession.MetricRequestForbidden, Name: "gosession_request_forbidden_total", Help: "Requests answered with 403."},
	{ID: goSession.MetricCSRFAttached, Name: "gosession_csrf_attached_total", Help: "Requests sent with a CSRF header."},
	{ID: goSession.MetricCSRFMissing, Name: "gosession_csrf_missing_total", Help: "Requests needing CSRF with no token cookie."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logouts."},
	{ID: goSession.MetricSessionReset, Name: "gosession_session_reset_total", Help: "Sessions cleared without an explicit logout."},
	{ID: goSession.MetricGuardAllowed, Name: "gosession_guard_allowed_total", Help: "Route guard admissions."},
	{ID: goSession.MetricGuardRedirected, Name: "gosession_guard_redirected_total", Help: "Route guard redirects to login."},
	{ID: goSession.MetricGuardRoleMismatch, Name: "gosession_guard_role_mismatch_total", Help: "Route guard role mismatches."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRequestLatency, Name: "gosession_request_latency_seconds", Help: "Request pipeline round-trip latency."},
}

// AuditDroppedName is the counter for audit events dropped on a full buffer.
const AuditDroppedName = "gosession_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// snapshot bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// without native histograms.
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

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
