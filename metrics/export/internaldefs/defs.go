package internaldefs

import (
	"github.com/MrEthical07/authflow"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricCodeIssued, Name: "authflow_code_issued_total", Help: "Verification codes minted."},
	{ID: authflow.MetricCodeConsumed, Name: "authflow_code_consumed_total", Help: "Verification codes redeemed."},
	{ID: authflow.MetricCodeRejected, Name: "authflow_code_rejected_total", Help: "Redemptions refused as unknown, consumed, invalidated, expired or mismatched."},
	{ID: authflow.MetricCodeRateLimited, Name: "authflow_code_rate_limited_total", Help: "Code deliveries refused by the send throttle."},
	{ID: authflow.MetricCodeDeliveryFailure, Name: "authflow_code_delivery_failure_total", Help: "Code deliveries the email sender failed."},
	{ID: authflow.MetricLoginSuccess, Name: "authflow_login_success_total", Help: "Logins that ended in a session."},
	{ID: authflow.MetricLoginFailure, Name: "authflow_login_failure_total", Help: "Failed login steps."},
	{ID: authflow.MetricSecondFactorRequired, Name: "authflow_second_factor_required_total", Help: "Password steps that required a second factor."},
	{ID: authflow.MetricTotpNotImplemented, Name: "authflow_totp_not_implemented_total", Help: "TOTP steps refused as not implemented."},
	{ID: authflow.MetricSessionCreated, Name: "authflow_session_created_total", Help: "Sessions issued."},
	{ID: authflow.MetricRegistrationSuccess, Name: "authflow_registration_success_total", Help: "Accounts registered."},
	{ID: authflow.MetricRegistrationDuplicate, Name: "authflow_registration_duplicate_total", Help: "Registrations rejected for a taken address."},
	{ID: authflow.MetricEmailVerified, Name: "authflow_email_verified_total", Help: "Addresses verified."},
	{ID: authflow.MetricHookFailure, Name: "authflow_hook_failure_total", Help: "Caller hooks that returned an error."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricStepLatency, Name: "authflow_step_latency_seconds", Help: "Authenticate step latency."},
}

// HistogramBounds are the bucket upper bounds in seconds, matching the
// engine's millisecond buckets.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates raw to the engine's eight buckets.
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
