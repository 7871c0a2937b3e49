// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunEmailStep, RunPasswordStep, RunCodeStep, RunRegister,
// RunVerifyEmail, RunResend) accepts the shared [Deps] struct of function
// fields and returns results without side-effects beyond those dependencies.
// Tests swap individual fields for fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate the user store, the verification and session
// services, the password comparer, the send throttle, the email sender, audit
// and metrics. They do NOT own any of these resources; ownership stays with
// the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authflow (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through Deps.
package flows
