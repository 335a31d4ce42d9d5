package internaldefs

import (
	"github.com/empower-grid/gridauth"
)

// CounterDef binds an engine counter to its exported metric name.
type CounterDef struct {
	ID   gridauth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported metric name.
type HistogramDef struct {
	ID   gridauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in emission order.
var CounterDefs = []CounterDef{
	{ID: gridauth.MetricLoginSuccess, Name: "gridauth_login_success_total", Help: "Successful wallet logins."},
	{ID: gridauth.MetricLoginFailure, Name: "gridauth_login_failure_total", Help: "Rejected login attempts."},
	{ID: gridauth.MetricChallengeIssued, Name: "gridauth_challenge_issued_total", Help: "Issued login challenges."},
	{ID: gridauth.MetricChallengeReplay, Name: "gridauth_challenge_replay_total", Help: "Consume attempts on already-used nonces."},
	{ID: gridauth.MetricSignatureRejected, Name: "gridauth_signature_rejected_total", Help: "Failed signature verifications."},
	{ID: gridauth.MetricRefreshSuccess, Name: "gridauth_refresh_success_total", Help: "Successful token rotations."},
	{ID: gridauth.MetricRefreshFailure, Name: "gridauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: gridauth.MetricRefreshReuseDetected, Name: "gridauth_refresh_reuse_detected_total", Help: "Refresh submissions with a stale token."},
	{ID: gridauth.MetricRateLimitHit, Name: "gridauth_rate_limit_hit_total", Help: "Quota checks that denied a request."},
	{ID: gridauth.MetricSessionCreated, Name: "gridauth_session_created_total", Help: "Created sessions."},
	{ID: gridauth.MetricSessionInvalidated, Name: "gridauth_session_invalidated_total", Help: "Sessions destroyed by logout."},
	{ID: gridauth.MetricIdentityRegistered, Name: "gridauth_identity_registered_total", Help: "Identities auto-created on first login."},
	{ID: gridauth.MetricBlacklistedTokenUse, Name: "gridauth_blacklisted_token_use_total", Help: "Validations of revoked tokens."},
}

// HistogramDefs lists every exported histogram in emission order.
var HistogramDefs = []HistogramDef{
	{ID: gridauth.MetricValidateLatency, Name: "gridauth_validate_latency_seconds", Help: "Token validation latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's millisecond thresholds.
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

// HistogramBoundSuffix are name-safe forms of [HistogramBounds] for backends
// that reject special characters in instrument names.
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

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed bucket
// count exporters emit.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
