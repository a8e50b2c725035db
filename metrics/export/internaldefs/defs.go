package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricAccessSigned, Name: "authcore_access_signed_total", Help: "Access tokens signed."},
	{ID: authcore.MetricRefreshSigned, Name: "authcore_refresh_signed_total", Help: "Refresh tokens signed."},
	{ID: authcore.MetricClaimRejected, Name: "authcore_claim_rejected_total", Help: "Sign calls rejected for a missing claim."},
	{ID: authcore.MetricAccessVerifySuccess, Name: "authcore_access_verify_success_total", Help: "Access tokens accepted."},
	{ID: authcore.MetricAccessVerifyFailure, Name: "authcore_access_verify_failure_total", Help: "Access tokens rejected."},
	{ID: authcore.MetricRefreshVerifySuccess, Name: "authcore_refresh_verify_success_total", Help: "Refresh tokens accepted."},
	{ID: authcore.MetricRefreshVerifyFailure, Name: "authcore_refresh_verify_failure_total", Help: "Refresh tokens rejected."},
	{ID: authcore.MetricPasswordHashed, Name: "authcore_password_hashed_total", Help: "Password hashes created."},
	{ID: authcore.MetricPasswordVerifySuccess, Name: "authcore_password_verify_success_total", Help: "Password verifications that matched."},
	{ID: authcore.MetricPasswordVerifyFailure, Name: "authcore_password_verify_failure_total", Help: "Password verifications that did not match."},
	{ID: authcore.MetricOpaqueTokenHashed, Name: "authcore_opaque_token_hashed_total", Help: "Opaque token hashes created."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Completed gateway logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed gateway callbacks."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Gateway logouts."},
	{ID: authcore.MetricRefreshRotated, Name: "authcore_refresh_rotated_total", Help: "Refresh exchanges that rotated the pair."},
	{ID: authcore.MetricRefreshRejected, Name: "authcore_refresh_rejected_total", Help: "Refresh exchanges rejected."},
	{ID: authcore.MetricAPITokenIssued, Name: "authcore_api_token_issued_total", Help: "API tokens issued."},
	{ID: authcore.MetricAPITokenAuthSuccess, Name: "authcore_api_token_auth_success_total", Help: "API token authentications accepted."},
	{ID: authcore.MetricAPITokenAuthFailure, Name: "authcore_api_token_auth_failure_total", Help: "API token authentications rejected."},
	{ID: authcore.MetricAPITokenRevoked, Name: "authcore_api_token_revoked_total", Help: "API tokens revoked."},
	{ID: authcore.MetricRateLimited, Name: "authcore_rate_limited_total", Help: "Requests refused by a rate limit."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricVerifyLatency, Name: "authcore_verify_latency_seconds", Help: "Token verification latency."},
	{ID: authcore.MetricPasswordVerifyLatency, Name: "authcore_password_verify_latency_seconds", Help: "Password verification latency."},
}

// HistogramBounds are the bucket upper bounds in seconds as rendered in the
// le label. They mirror the engine's fixed buckets.
var HistogramBounds = []string{
	"0.0001",
	"0.001",
	"0.005",
	"0.025",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSeconds holds the finite bounds of HistogramBounds.
var HistogramBoundSeconds = []float64{0.0001, 0.001, 0.005, 0.025, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
